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

// Package model defines the core data structures for the extraction
// pipeline. This file defines the DraftEvent, the common shape every
// extraction source produces, and the SourceAnalysis wrapper that tags a
// draft with the source that produced it.
//
// All DraftEvent fields are optional pointers: no field is required while
// drafts are flowing through the pipeline, and required-ness is only
// enforced by the caller after fusion. A nil field means "the source said
// nothing", which is distinct from an empty string.
package model

import "strings"

// Source identifies which extraction track produced a SourceAnalysis.
type Source string

const (
	SourceFrame      Source = "frame"
	SourceTranscript Source = "transcript"
	SourceMetadata   Source = "metadata"
	SourceCombined   Source = "combined"
)

// DraftEvent is a partially-filled structured event record produced by one
// extraction source. Date is a calendar date string ("2006-01-02"); Time and
// EndTime are local times ("15:04:05").
type DraftEvent struct {
	Title       *string `json:"title,omitempty"`
	Date        *string `json:"date,omitempty"`
	Time        *string `json:"time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	Location    *string `json:"location,omitempty"`
	Description *string `json:"description,omitempty"`
	EventType   *string `json:"event_type,omitempty"`
	VenueType   *string `json:"venue_type,omitempty"`
}

// SourceAnalysis is a DraftEvent tagged with the track that produced it.
// Multiple SourceAnalysis values exist concurrently per request; none
// outlives the request that created them.
type SourceAnalysis struct {
	Source Source      `json:"source"`
	Draft  *DraftEvent `json:"draft,omitempty"`
	// RawText preserves any free text the track gathered (frame OCR text,
	// transcript, page description) so the combined pass can re-read it.
	RawText string `json:"raw_text,omitempty"`
}

// EmptyAnalysis is the substitute value for a track that timed out or
// failed. Partial information from sibling tracks is never discarded
// because one track produced an EmptyAnalysis.
func EmptyAnalysis(source Source) SourceAnalysis {
	return SourceAnalysis{Source: source}
}

// IsComplete reports whether a draft carries both a title and a date, the
// completeness test that decides which candidate is authoritative during
// fusion.
func (d *DraftEvent) IsComplete() bool {
	return hasValue(d.Title) && hasValue(d.Date)
}

// IsEmpty reports whether every field of the draft is unset.
func (d *DraftEvent) IsEmpty() bool {
	return !hasValue(d.Title) && !hasValue(d.Date) && !hasValue(d.Time) &&
		!hasValue(d.EndTime) && !hasValue(d.Location) && !hasValue(d.Description) &&
		!hasValue(d.EventType) && !hasValue(d.VenueType)
}

func hasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// StringPtr returns a pointer to s, or nil when s is blank. Extraction
// sources use it so that "the model returned an empty string" collapses to
// "the field is unset".
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
