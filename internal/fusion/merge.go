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

package fusion

import (
	"github.com/snapevent/go-event-extract/internal/core/model"
)

// Merge combines per-source drafts into the final event. Source priority
// is fixed: a frame draft that carries both a title and a date is
// authoritative and wins ties outright; otherwise a complete metadata
// draft wins; otherwise the combined-pass draft. Lower-priority sources
// only backfill fields the winner left empty, never overwrite.
//
// The returned winning source names which draft seeded the merge, for
// diagnostics. When no draft has any content the result is an empty
// draft and model.SourceCombined.
func Merge(analyses []model.SourceAnalysis) (*model.DraftEvent, model.Source) {
	bySource := make(map[model.Source]*model.DraftEvent, len(analyses))
	for _, a := range analyses {
		if a.Draft != nil && !a.Draft.IsEmpty() {
			bySource[a.Source] = a.Draft
		}
	}

	winner := model.SourceCombined
	for _, s := range []model.Source{model.SourceFrame, model.SourceMetadata, model.SourceCombined} {
		if d, ok := bySource[s]; ok && d.IsComplete() {
			winner = s
			break
		}
	}

	merged := &model.DraftEvent{}
	fill(merged, bySource[winner])
	for _, s := range []model.Source{model.SourceFrame, model.SourceMetadata, model.SourceCombined, model.SourceTranscript} {
		if s == winner {
			continue
		}
		fill(merged, bySource[s])
	}

	normalizeAllDay(merged)
	return merged, winner
}

// fill copies each field of src into dst only where dst has none.
func fill(dst, src *model.DraftEvent) {
	if src == nil {
		return
	}
	if dst.Title == nil {
		dst.Title = src.Title
	}
	if dst.Date == nil {
		dst.Date = src.Date
	}
	if dst.Time == nil {
		dst.Time = src.Time
	}
	if dst.EndTime == nil {
		dst.EndTime = src.EndTime
	}
	if dst.Location == nil {
		dst.Location = src.Location
	}
	if dst.Description == nil {
		dst.Description = src.Description
	}
	if dst.EventType == nil {
		dst.EventType = src.EventType
	}
	if dst.VenueType == nil {
		dst.VenueType = src.VenueType
	}
}

// normalizeAllDay clears a dangling end time. An event with no start time
// is all-day, and an all-day event with an end time renders as a
// multi-day span in most calendar clients, which is almost never what a
// flyer meant.
func normalizeAllDay(d *model.DraftEvent) {
	if d.Time == nil && d.EndTime != nil {
		d.EndTime = nil
	}
}
