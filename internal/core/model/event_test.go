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

package model_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snapevent/go-event-extract/internal/core/model"
)

func TestDraftEventCompleteness(t *testing.T) {
	draft := &model.DraftEvent{}
	assert.True(t, draft.IsEmpty())
	assert.False(t, draft.IsComplete())

	draft.Title = model.StringPtr("Jazz Night")
	assert.False(t, draft.IsEmpty())
	assert.False(t, draft.IsComplete())

	draft.Date = model.StringPtr("2026-03-14")
	assert.True(t, draft.IsComplete())

	// Whitespace-only values do not count as content.
	blank := &model.DraftEvent{Title: model.StringPtr("   ")}
	assert.True(t, blank.IsEmpty())
}

func TestDraftEventOmitsUnknownFieldsInJSON(t *testing.T) {
	draft := &model.DraftEvent{
		Title: model.StringPtr("Jazz Night"),
		Date:  model.StringPtr("2026-03-14"),
	}
	data, err := json.Marshal(draft)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "Jazz Night")
	assert.NotContains(t, string(data), "location")
	assert.NotContains(t, string(data), "null")
}

func TestIngestResultReleaseIsIdempotent(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "audio.wav")
	assert.NoError(t, os.WriteFile(audioPath, []byte("wav"), 0o644))

	result := &model.IngestResult{AudioPath: audioPath}
	assert.True(t, result.HasAudio())

	result.Release()
	_, err := os.Stat(audioPath)
	assert.True(t, os.IsNotExist(err))

	// A second release must not panic or error on the missing file.
	result.Release()
}

func TestIngestResultWithoutAudio(t *testing.T) {
	result := &model.IngestResult{}
	assert.False(t, result.HasAudio())
	result.Release()
}

func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("a", model.ExcerptLimit*2)
	assert.Len(t, model.Excerpt(long), model.ExcerptLimit)
	assert.Equal(t, "short", model.Excerpt("short"))
}

func TestExampleEventIsComplete(t *testing.T) {
	example := model.GetExampleEvent()
	assert.True(t, example.IsComplete())
	data, err := json.Marshal(example)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "title")
}
