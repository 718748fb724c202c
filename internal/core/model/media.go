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
// pipeline. This file holds the transient media shapes produced by the
// ingestor. These objects live for exactly one extraction request and are
// fully discarded at its end; nothing in this package is persisted.
package model

import (
	"log/slog"
	"os"
	"sync"
)

// MediaFrame is a single still image sampled from a video, with the
// timestamp it was captured at. The timestamp is always within
// [0, DurationSeconds) of the owning IngestResult.
type MediaFrame struct {
	TimestampSeconds float64
	Image            []byte
}

// IngestResult is the output of one ingest run: the sampled frames, an
// optional extracted audio file, and the probed media duration. It is owned
// exclusively by the orchestrator for the lifetime of one request.
//
// The audio file is a temp artifact and must be released exactly once on
// every exit path; Release is idempotent so a deferred call is always safe.
type IngestResult struct {
	Frames          []MediaFrame
	AudioPath       string
	DurationSeconds float64

	releaseOnce sync.Once
}

// HasAudio reports whether an audio track was extracted.
func (r *IngestResult) HasAudio() bool {
	return r.AudioPath != ""
}

// Release deletes the extracted audio file. Safe to call more than once and
// on a result without audio.
func (r *IngestResult) Release() {
	r.releaseOnce.Do(func() {
		if r.AudioPath == "" {
			return
		}
		if err := os.Remove(r.AudioPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove extracted audio", "path", r.AudioPath, "error", err)
		}
	})
}

// RunMetadata carries the per-request diagnostics the orchestrator
// surfaces to the caller alongside the merged draft.
type RunMetadata struct {
	FrameCount        int                    `json:"frame_count"`
	HadAudio          bool                   `json:"had_audio"`
	TranscriptExcerpt string                 `json:"transcript_excerpt,omitempty"`
	CodeURL           string                 `json:"code_url,omitempty"`
	WinningSource     Source                 `json:"winning_source,omitempty"`
	TrackDrafts       map[Source]*DraftEvent `json:"track_drafts,omitempty"`
	TrackOutcomes     map[Source]string      `json:"track_outcomes,omitempty"`
}

// ExcerptLimit bounds the transcript excerpt surfaced in RunMetadata.
const ExcerptLimit = 280

// Excerpt truncates s for diagnostic display.
func Excerpt(s string) string {
	if len(s) <= ExcerptLimit {
		return s
	}
	return s[:ExcerptLimit]
}
