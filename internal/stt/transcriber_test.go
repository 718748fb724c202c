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

package stt_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/media"
	"github.com/snapevent/go-event-extract/internal/stt"
	"github.com/snapevent/go-event-extract/internal/testutil"
)

type fakeBackend struct {
	text  string
	err   error
	calls int
}

func (f *fakeBackend) TranscribeFile(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func writeAudioStub(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	assert.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func newTestTranscriber(t *testing.T, backend stt.Backend) *stt.Transcriber {
	t.Helper()
	cfg := testutil.GetConfig()
	runner, err := media.NewRunner("/nonexistent/ffmpeg", "/nonexistent/ffprobe")
	assert.NoError(t, err)
	return stt.NewTranscriber(backend, runner, cfg.Transcriber)
}

func TestTranscribeSingleShot(t *testing.T) {
	backend := &fakeBackend{text: "  welcome to jazz night  "}
	transcriber := newTestTranscriber(t, backend)

	text := transcriber.Transcribe(context.Background(), writeAudioStub(t, 1024))
	assert.Equal(t, "welcome to jazz night", text)
	assert.Equal(t, 1, backend.calls)
}

func TestTranscribeMissingFileDegradesToEmpty(t *testing.T) {
	backend := &fakeBackend{text: "should never be called"}
	transcriber := newTestTranscriber(t, backend)

	text := transcriber.Transcribe(context.Background(), "/nonexistent/audio.wav")
	assert.Equal(t, "", text)
	assert.Equal(t, 0, backend.calls)
}

func TestTranscribeBackendFailureDegradesToEmpty(t *testing.T) {
	// The single shot fails and the chunked fallback cannot segment with a
	// broken ffmpeg path, so the transcriber degrades to an empty result
	// instead of surfacing the error.
	backend := &fakeBackend{err: errors.New("model unavailable")}
	transcriber := newTestTranscriber(t, backend)

	text := transcriber.Transcribe(context.Background(), writeAudioStub(t, 1024))
	assert.Equal(t, "", text)
	assert.Equal(t, 1, backend.calls)
}

// fakeSegmenter hands back pre-made chunk files without running ffmpeg.
type fakeSegmenter struct {
	chunks []string
}

func (f *fakeSegmenter) SegmentAudio(_ context.Context, _ string, _ int) ([]string, error) {
	return f.chunks, nil
}

// chunkBackend returns a fixed transcript per chunk path, delaying each
// call so chunk completion order differs from chunk index order.
type chunkBackend struct {
	texts  map[string]string
	delays map[string]time.Duration
}

func (b *chunkBackend) TranscribeFile(_ context.Context, path string) (string, error) {
	if d := b.delays[path]; d > 0 {
		time.Sleep(d)
	}
	return b.texts[path], nil
}

func TestTranscribeChunkedReassemblesInIndexOrder(t *testing.T) {
	dir := t.TempDir()
	words := []string{"the", "gala", "starts", "friday"}
	chunks := make([]string, len(words))
	texts := make(map[string]string, len(words))
	delays := make(map[string]time.Duration, len(words))
	for i, w := range words {
		path := filepath.Join(dir, "chunk-"+w+".wav")
		assert.NoError(t, os.WriteFile(path, []byte("wav"), 0o644))
		chunks[i] = path
		texts[path] = w
		// Earlier chunks finish last.
		delays[path] = time.Duration(len(words)-i) * 20 * time.Millisecond
	}

	cfg := config.Transcriber{SingleShotMaxBytes: 16, ChunkSeconds: 30, Workers: 4}
	transcriber := stt.NewTranscriber(&chunkBackend{texts: texts, delays: delays}, &fakeSegmenter{chunks: chunks}, cfg)

	text := transcriber.Transcribe(context.Background(), writeAudioStub(t, 1024))
	assert.Equal(t, "the gala starts friday", text)

	// Every chunk file was removed as soon as its call returned.
	for _, path := range chunks {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	}
}
