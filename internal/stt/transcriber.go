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

// Package stt converts an audio track to text. Small files go through a
// single synchronous call; large files (or a failed single shot) are split
// into fixed 30-second chunks kept safely under the transcription
// service's per-call duration limit, transcribed concurrently by a worker
// pool, and reassembled in chunk-index order. Transcript order matters for
// the text extraction downstream, even though chunk execution order does
// not.
//
// Transcription never fails the caller's flow: every internal failure
// degrades to an empty transcript.
package stt

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/core/cor"
)

// Backend transcribes one audio file per call. The production backend is
// interpret.SpeechTranscriber; tests inject fakes.
type Backend interface {
	TranscribeFile(ctx context.Context, audioPath string) (string, error)
}

// Segmenter splits an audio file into bounded-duration chunk files. The
// production segmenter is media.Runner; tests inject fakes.
type Segmenter interface {
	SegmentAudio(ctx context.Context, input string, chunkSeconds int) ([]string, error)
}

// Transcriber is the chunking speech-to-text front end.
type Transcriber struct {
	cor.BaseCommand
	backend   Backend
	segmenter Segmenter
	cfg       config.Transcriber
}

func NewTranscriber(backend Backend, segmenter Segmenter, cfg config.Transcriber) *Transcriber {
	if cfg.SingleShotMaxBytes <= 0 {
		cfg.SingleShotMaxBytes = 10 << 20
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 30
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	return &Transcriber{
		BaseCommand: *cor.NewBaseCommand("chunked-transcriber"),
		backend:     backend,
		segmenter:   segmenter,
		cfg:         cfg,
	}
}

// Transcribe converts the audio file to text. The result may be empty and
// the method never returns an error; missing or unreadable audio, backend
// failures, and timeouts all degrade to "".
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) string {
	ctx, span := t.Tracer.Start(ctx, "transcribe")
	defer span.End()

	info, err := os.Stat(audioPath)
	if err != nil {
		slog.Warn("transcription skipped, audio not readable", "path", audioPath, "error", err)
		return ""
	}

	if info.Size() <= t.cfg.SingleShotMaxBytes {
		text, err := t.backend.TranscribeFile(ctx, audioPath)
		if err == nil {
			t.GetSuccessCounter().Add(ctx, 1)
			return strings.TrimSpace(text)
		}
		slog.Warn("single-shot transcription failed, falling back to chunks", "error", err)
	}

	text := t.transcribeChunked(ctx, audioPath)
	if text == "" {
		t.GetErrorCounter().Add(ctx, 1)
	} else {
		t.GetSuccessCounter().Add(ctx, 1)
	}
	return text
}

type chunkJob struct {
	index int
	path  string
}

type chunkResult struct {
	index int
	text  string
}

// transcribeChunked splits the audio, fans the chunks out to the backend,
// and concatenates the transcripts in chunk-index order. Each chunk file
// is removed as soon as its transcription call returns, success or
// failure, to bound disk usage during the fan-out.
func (t *Transcriber) transcribeChunked(ctx context.Context, audioPath string) string {
	chunks, err := t.segmenter.SegmentAudio(ctx, audioPath, t.cfg.ChunkSeconds)
	if err != nil {
		slog.Warn("audio segmentation failed", "error", err)
		return ""
	}

	jobs := make(chan chunkJob, len(chunks))
	results := make(chan chunkResult, len(chunks))

	workers := t.cfg.Workers
	if workers > len(chunks) {
		workers = len(chunks)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				text, err := t.backend.TranscribeFile(ctx, j.path)
				os.Remove(j.path)
				if err != nil {
					slog.Warn("chunk transcription failed", "chunk", j.index, "error", err)
					continue
				}
				results <- chunkResult{index: j.index, text: text}
			}
		}()
	}

	for i, path := range chunks {
		jobs <- chunkJob{index: i, path: path}
	}
	close(jobs)
	wg.Wait()
	close(results)

	ordered := make([]string, len(chunks))
	for r := range results {
		ordered[r.index] = strings.TrimSpace(r.text)
	}

	parts := make([]string, 0, len(ordered))
	for _, p := range ordered {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
