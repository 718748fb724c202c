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

package fusion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snapevent/go-event-extract/internal/core/model"
	"github.com/snapevent/go-event-extract/internal/fusion"
)

func analysis(source model.Source, draft *model.DraftEvent) model.SourceAnalysis {
	return model.SourceAnalysis{Source: source, Draft: draft}
}

func TestMergeFrameWinsOverMetadata(t *testing.T) {
	frame := &model.DraftEvent{
		Title: model.StringPtr("Jazz Night"),
		Date:  model.StringPtr("2026-03-14"),
		Time:  model.StringPtr("20:00:00"),
	}
	metadata := &model.DraftEvent{
		Title: model.StringPtr("Some Other Event"),
		Date:  model.StringPtr("2026-03-15"),
	}

	merged, winner := fusion.Merge([]model.SourceAnalysis{
		analysis(model.SourceMetadata, metadata),
		analysis(model.SourceFrame, frame),
	})

	assert.Equal(t, model.SourceFrame, winner)
	assert.Equal(t, "Jazz Night", *merged.Title)
	assert.Equal(t, "2026-03-14", *merged.Date)
}

func TestMergeBackfillsWithoutOverwriting(t *testing.T) {
	frame := &model.DraftEvent{
		Title: model.StringPtr("Jazz Night"),
		Date:  model.StringPtr("2026-03-14"),
	}
	transcript := &model.DraftEvent{
		Location:    model.StringPtr("The Blue Door Lounge"),
		Description: model.StringPtr("Live jazz, doors at 7pm."),
		Date:        model.StringPtr("2026-03-20"),
	}

	merged, winner := fusion.Merge([]model.SourceAnalysis{
		analysis(model.SourceFrame, frame),
		analysis(model.SourceTranscript, transcript),
	})

	assert.Equal(t, model.SourceFrame, winner)
	assert.Equal(t, "2026-03-14", *merged.Date)
	assert.Equal(t, "The Blue Door Lounge", *merged.Location)
	assert.Equal(t, "Live jazz, doors at 7pm.", *merged.Description)
}

func TestMergeIncompleteFrameLosesToCompleteMetadata(t *testing.T) {
	frame := &model.DraftEvent{Title: model.StringPtr("Jazz Night")}
	metadata := &model.DraftEvent{
		Title: model.StringPtr("Jazz Night at The Blue Door"),
		Date:  model.StringPtr("2026-03-14"),
	}

	merged, winner := fusion.Merge([]model.SourceAnalysis{
		analysis(model.SourceFrame, frame),
		analysis(model.SourceMetadata, metadata),
	})

	assert.Equal(t, model.SourceMetadata, winner)
	assert.Equal(t, "Jazz Night at The Blue Door", *merged.Title)
}

func TestMergeAllDayEventClearsDanglingEndTime(t *testing.T) {
	combined := &model.DraftEvent{
		Title:   model.StringPtr("Street Fair"),
		Date:    model.StringPtr("2026-06-01"),
		EndTime: model.StringPtr("17:00:00"),
	}

	merged, _ := fusion.Merge([]model.SourceAnalysis{
		analysis(model.SourceCombined, combined),
	})

	assert.Nil(t, merged.Time)
	assert.Nil(t, merged.EndTime)
}

func TestMergeKeepsEndTimeWhenStartTimeKnown(t *testing.T) {
	combined := &model.DraftEvent{
		Title:   model.StringPtr("Street Fair"),
		Date:    model.StringPtr("2026-06-01"),
		Time:    model.StringPtr("10:00:00"),
		EndTime: model.StringPtr("17:00:00"),
	}

	merged, _ := fusion.Merge([]model.SourceAnalysis{
		analysis(model.SourceCombined, combined),
	})

	assert.Equal(t, "17:00:00", *merged.EndTime)
}

func TestMergeIsIdempotent(t *testing.T) {
	inputs := []model.SourceAnalysis{
		analysis(model.SourceFrame, &model.DraftEvent{
			Title: model.StringPtr("Jazz Night"),
			Date:  model.StringPtr("2026-03-14"),
		}),
		analysis(model.SourceTranscript, &model.DraftEvent{
			Location: model.StringPtr("The Blue Door Lounge"),
		}),
	}

	first, _ := fusion.Merge(inputs)
	second, _ := fusion.Merge([]model.SourceAnalysis{analysis(model.SourceFrame, first)})
	assert.Equal(t, first, second)
}

func TestMergeEmptyInputsYieldEmptyDraft(t *testing.T) {
	merged, winner := fusion.Merge([]model.SourceAnalysis{
		model.EmptyAnalysis(model.SourceFrame),
		model.EmptyAnalysis(model.SourceTranscript),
	})
	assert.True(t, merged.IsEmpty())
	assert.Equal(t, model.SourceCombined, winner)
}

func TestMergeNeverFabricatesDate(t *testing.T) {
	merged, _ := fusion.Merge([]model.SourceAnalysis{
		analysis(model.SourceTranscript, &model.DraftEvent{
			Title:    model.StringPtr("Open Mic"),
			Location: model.StringPtr("Corner Cafe"),
		}),
	})
	assert.Nil(t, merged.Date)
	assert.False(t, merged.IsComplete())
}
