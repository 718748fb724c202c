// Copyright 2025 SnapEvent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package media obtains decodable video and audio from remote sources.
// This file fetches page metadata (Open Graph tags and the document title)
// for URL inputs. The metadata text is one of the orchestrator's fusion
// signals and the fallback when the video path fails outright.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// metadataBodyLimit bounds how much of a page is read; the interesting
// tags live in <head>.
const metadataBodyLimit = 1 << 20

// PageMetadata is the parsed head metadata of a source page.
type PageMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// Text renders the metadata as a single textual signal for interpretation.
func (m *PageMetadata) Text() string {
	var b strings.Builder
	if m.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", m.Title)
	}
	if m.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", m.Description)
	}
	if m.SiteName != "" {
		fmt.Fprintf(&b, "Site: %s\n", m.SiteName)
	}
	return strings.TrimSpace(b.String())
}

// IsEmpty reports whether nothing useful was parsed.
func (m *PageMetadata) IsEmpty() bool {
	return m.Title == "" && m.Description == "" && m.SiteName == ""
}

// MetadataFetcher retrieves and parses page metadata with a bounded HTTP
// client.
type MetadataFetcher struct {
	client *http.Client
}

func NewMetadataFetcher(timeout time.Duration) *MetadataFetcher {
	return &MetadataFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads the page and parses its head metadata. The caller's
// context bounds the whole call.
func (f *MetadataFetcher) Fetch(ctx context.Context, pageURL string) (*PageMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "event-extract/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("metadata fetch returned status %d", resp.StatusCode)
	}

	return parseMetadata(io.LimitReader(resp.Body, metadataBodyLimit)), nil
}

func parseMetadata(r io.Reader) *PageMetadata {
	meta := &PageMetadata{}
	tokenizer := html.NewTokenizer(r)
	inTitle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return meta
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = true
			case "meta":
				var property, name, content string
				for _, attr := range token.Attr {
					switch attr.Key {
					case "property":
						property = attr.Val
					case "name":
						name = attr.Val
					case "content":
						content = attr.Val
					}
				}
				switch {
				case property == "og:title" && content != "":
					meta.Title = content
				case (property == "og:description" || name == "description") && content != "" && meta.Description == "":
					meta.Description = content
				case property == "og:site_name" && content != "":
					meta.SiteName = content
				}
			case "body":
				// Head is over; nothing else to parse.
				return meta
			}
		case html.TextToken:
			if inTitle && meta.Title == "" {
				meta.Title = strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if token := tokenizer.Token(); token.Data == "title" {
				inTitle = false
			}
		}
	}
}
