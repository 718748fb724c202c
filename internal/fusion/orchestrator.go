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

// Package fusion runs the extraction tracks for one request in parallel,
// each under its own deadline, and merges their drafts into the final
// event. A slow or failed track degrades to an empty analysis instead of
// failing the request; the request only errors when no track produced any
// usable signal.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/core/cor"
	"github.com/snapevent/go-event-extract/internal/core/model"
	"github.com/snapevent/go-event-extract/internal/media"
)

// ErrNoSignal is returned when every track came back empty and there is
// nothing to build an event from.
var ErrNoSignal = errors.New("no usable signal in any extraction track")

// InputKind selects which extraction path a request takes.
type InputKind string

const (
	InputImage InputKind = "image"
	InputURL   InputKind = "url"
	InputText  InputKind = "text"
)

// Input is one extraction request.
type Input struct {
	Kind  InputKind
	URL   string
	Text  string
	Image []byte
}

// Result is the merged event plus per-track diagnostics.
type Result struct {
	Event    *model.DraftEvent
	Analyses []model.SourceAnalysis
	Meta     model.RunMetadata
}

// Ingestor turns a media URL into sampled frames and an optional audio
// track.
type Ingestor interface {
	Ingest(ctx context.Context, sourceURL string, frameCount int, wantAudio bool) (*model.IngestResult, error)
}

// CodeDecoder scans an image for a QR code and returns the encoded URL,
// or "" when none decodes.
type CodeDecoder interface {
	Decode(imageBytes []byte) string
}

// Transcriber converts an audio file to text, degrading to "" on failure.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) string
}

// Interpreter extracts a draft event from each input shape.
type Interpreter interface {
	InterpretImage(ctx context.Context, imageBytes []byte) (*model.DraftEvent, error)
	InterpretFrames(ctx context.Context, frames [][]byte) (*model.DraftEvent, error)
	InterpretText(ctx context.Context, text string) (*model.DraftEvent, error)
}

// MetadataFetcher pulls the page metadata of a URL.
type MetadataFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*media.PageMetadata, error)
}

// Orchestrator owns the per-request extraction flow.
type Orchestrator struct {
	cor.BaseCommand
	tracks      config.Tracks
	frameCount  int
	ingestor    Ingestor
	decoder     CodeDecoder
	transcriber Transcriber
	interpreter Interpreter
	metadata    MetadataFetcher
}

func NewOrchestrator(
	cfg *config.Config,
	ingestor Ingestor,
	decoder CodeDecoder,
	transcriber Transcriber,
	interpreter Interpreter,
	metadata MetadataFetcher,
) *Orchestrator {
	return &Orchestrator{
		BaseCommand: *cor.NewBaseCommand("fusion-orchestrator"),
		tracks:      cfg.Tracks,
		frameCount:  cfg.Media.FrameCount,
		ingestor:    ingestor,
		decoder:     decoder,
		transcriber: transcriber,
		interpreter: interpreter,
		metadata:    metadata,
	}
}

// Run executes the extraction path for the input kind and merges the
// track drafts.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Result, error) {
	ctx, span := o.Tracer.Start(ctx, "fusion-run")
	defer span.End()

	var (
		result *Result
		err    error
	)
	switch in.Kind {
	case InputURL:
		result, err = o.runVideo(ctx, in.URL)
	case InputImage:
		result, err = o.runImage(ctx, in.Image)
	case InputText:
		result, err = o.runText(ctx, in.Text)
	default:
		return nil, fmt.Errorf("unknown input kind %q", in.Kind)
	}
	if err != nil {
		o.GetErrorCounter().Add(ctx, 1)
		return nil, err
	}
	o.GetSuccessCounter().Add(ctx, 1)
	return result, nil
}

// runVideo is the full pipeline: ingest and page-metadata fetch run in
// parallel, then the frame, transcript, and metadata tracks race their
// deadlines, then a combined pass reinterprets the concatenated text
// signal. A failed ingest falls back to the metadata-only path when the
// page fetch produced anything. The ingest result is released on every
// exit path, including a result the deadline discarded.
func (o *Orchestrator) runVideo(ctx context.Context, sourceURL string) (*Result, error) {
	var (
		wg     sync.WaitGroup
		ingest Outcome[*model.IngestResult]
		page   *media.PageMetadata
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ingest = RaceCleanup(ctx, o.deadline(o.tracks.IngestSeconds), func(rc context.Context) (*model.IngestResult, error) {
			return o.ingestor.Ingest(rc, sourceURL, o.frameCount, true)
		}, func(res *model.IngestResult) {
			if res != nil {
				res.Release()
			}
		})
	}()
	go func() {
		defer wg.Done()
		meta := Race(ctx, o.deadline(o.tracks.MetadataSeconds), func(rc context.Context) (*media.PageMetadata, error) {
			return o.metadata.Fetch(rc, sourceURL)
		})
		if meta.Status == StatusCompleted {
			page = meta.Value
		}
	}()
	wg.Wait()

	if ingest.Status != StatusCompleted {
		ingestErr := fmt.Errorf("ingest %s: %w", ingest.Status, ingest.Err)
		if page == nil || page.IsEmpty() {
			return nil, ingestErr
		}
		slog.Warn("ingest failed, falling back to page metadata", "url", sourceURL, "error", ingest.Err)
		return o.runMetadataOnly(ctx, page, ingestErr)
	}
	res := ingest.Value
	defer res.Release()

	tracker := newTracker()

	var trackWG sync.WaitGroup
	trackWG.Add(3)

	var transcript string
	go func() {
		defer trackWG.Done()
		frames := make([][]byte, 0, len(res.Frames))
		for _, f := range res.Frames {
			frames = append(frames, f.Image)
		}
		if len(frames) == 0 {
			tracker.skip(model.SourceFrame)
			return
		}
		out := Race(ctx, o.deadline(o.tracks.FrameSeconds), func(rc context.Context) (*model.DraftEvent, error) {
			return o.interpreter.InterpretFrames(rc, frames)
		})
		tracker.record(model.SourceFrame, out, "")
	}()
	go func() {
		defer trackWG.Done()
		if !res.HasAudio() {
			tracker.skip(model.SourceTranscript)
			return
		}
		out := Race(ctx, o.deadline(o.tracks.TranscriptSeconds), func(rc context.Context) (textDraft, error) {
			text := o.transcriber.Transcribe(rc, res.AudioPath)
			if text == "" {
				return textDraft{}, nil
			}
			draft, err := o.interpreter.InterpretText(rc, text)
			return textDraft{text: text, draft: draft}, err
		})
		transcript = out.Value.text
		tracker.record(model.SourceTranscript, liftDraft(out), out.Value.text)
	}()
	go func() {
		defer trackWG.Done()
		if page == nil || page.IsEmpty() {
			tracker.skip(model.SourceMetadata)
			return
		}
		out := Race(ctx, o.deadline(o.tracks.MetadataSeconds), func(rc context.Context) (*model.DraftEvent, error) {
			return o.interpreter.InterpretText(rc, page.Text())
		})
		tracker.record(model.SourceMetadata, out, page.Text())
	}()
	trackWG.Wait()

	o.combinedPass(ctx, tracker)

	result, err := o.finish(tracker)
	if err != nil {
		return nil, err
	}
	result.Meta.FrameCount = len(res.Frames)
	result.Meta.HadAudio = res.HasAudio()
	result.Meta.TranscriptExcerpt = model.Excerpt(transcript)
	return result, nil
}

// runMetadataOnly is the degraded video path taken when ingestion failed
// but the page metadata fetch succeeded: the metadata track and combined
// pass run alone. When even they yield nothing, the original ingest error
// is the one the caller sees.
func (o *Orchestrator) runMetadataOnly(ctx context.Context, page *media.PageMetadata, ingestErr error) (*Result, error) {
	tracker := newTracker()
	tracker.skip(model.SourceFrame)
	tracker.skip(model.SourceTranscript)

	out := Race(ctx, o.deadline(o.tracks.MetadataSeconds), func(rc context.Context) (*model.DraftEvent, error) {
		return o.interpreter.InterpretText(rc, page.Text())
	})
	tracker.record(model.SourceMetadata, out, page.Text())

	o.combinedPass(ctx, tracker)

	result, err := o.finish(tracker)
	if err != nil {
		return nil, ingestErr
	}
	return result, nil
}

// runImage scans the image for a QR code, follows it to page metadata
// when one decodes, and interprets the image pixels directly. The image
// draft takes the frame slot so the merge priority treats flyer text as
// authoritative.
func (o *Orchestrator) runImage(ctx context.Context, imageBytes []byte) (*Result, error) {
	tracker := newTracker()
	codeURL := o.decoder.Decode(imageBytes)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out := Race(ctx, o.deadline(o.tracks.FrameSeconds), func(rc context.Context) (*model.DraftEvent, error) {
			return o.interpreter.InterpretImage(rc, imageBytes)
		})
		tracker.record(model.SourceFrame, out, "")
	}()
	go func() {
		defer wg.Done()
		if codeURL == "" {
			tracker.skip(model.SourceMetadata)
			return
		}
		out := Race(ctx, o.deadline(o.tracks.MetadataSeconds), func(rc context.Context) (textDraft, error) {
			page, err := o.metadata.Fetch(rc, codeURL)
			if err != nil {
				return textDraft{}, err
			}
			if page.IsEmpty() {
				return textDraft{}, nil
			}
			draft, err := o.interpreter.InterpretText(rc, page.Text())
			return textDraft{text: page.Text(), draft: draft}, err
		})
		tracker.record(model.SourceMetadata, liftDraft(out), out.Value.text)
	}()
	wg.Wait()

	o.combinedPass(ctx, tracker)

	result, err := o.finish(tracker)
	if err != nil {
		return nil, err
	}
	result.Meta.CodeURL = codeURL
	return result, nil
}

// runText interprets raw text as a single combined-source track.
func (o *Orchestrator) runText(ctx context.Context, text string) (*Result, error) {
	tracker := newTracker()
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoSignal
	}
	out := Race(ctx, o.deadline(o.tracks.CombinedSeconds), func(rc context.Context) (*model.DraftEvent, error) {
		return o.interpreter.InterpretText(rc, text)
	})
	tracker.record(model.SourceCombined, out, text)
	return o.finish(tracker)
}

// combinedPass reinterprets the concatenation of every non-empty text
// signal, including text from tracks whose own interpretation failed or
// timed out. It only runs when no direct track produced a complete draft;
// a complete frame or metadata draft already decides the merge.
func (o *Orchestrator) combinedPass(ctx context.Context, tracker *trackTracker) {
	if tracker.hasCompleteDraft(model.SourceFrame, model.SourceMetadata) {
		tracker.skip(model.SourceCombined)
		return
	}
	joined := tracker.joinedText()
	if joined == "" {
		tracker.skip(model.SourceCombined)
		return
	}
	out := Race(ctx, o.deadline(o.tracks.CombinedSeconds), func(rc context.Context) (*model.DraftEvent, error) {
		return o.interpreter.InterpretText(rc, joined)
	})
	tracker.record(model.SourceCombined, out, joined)
}

func (o *Orchestrator) finish(tracker *trackTracker) (*Result, error) {
	analyses := tracker.analyses()
	merged, winner := Merge(analyses)
	if merged.IsEmpty() {
		return nil, ErrNoSignal
	}
	return &Result{
		Event:    merged,
		Analyses: analyses,
		Meta: model.RunMetadata{
			WinningSource: winner,
			TrackDrafts:   tracker.drafts(),
			TrackOutcomes: tracker.outcomes(),
		},
	}, nil
}

func (o *Orchestrator) deadline(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 15
	}
	return time.Duration(seconds) * time.Second
}

// textDraft pairs a text signal with the draft interpreted from it, so a
// raced track can hand both back through the race value instead of
// writing shared variables from a possibly still-running loser.
type textDraft struct {
	text  string
	draft *model.DraftEvent
}

func liftDraft(out Outcome[textDraft]) Outcome[*model.DraftEvent] {
	return Outcome[*model.DraftEvent]{Status: out.Status, Value: out.Value.draft, Err: out.Err}
}

// trackTracker collects per-track analyses and outcome labels from
// concurrently running tracks.
type trackTracker struct {
	mu       sync.Mutex
	results  []model.SourceAnalysis
	outcome  map[model.Source]string
	rawTexts []string
}

func newTracker() *trackTracker {
	return &trackTracker{outcome: make(map[model.Source]string)}
}

func (t *trackTracker) record(source model.Source, out Outcome[*model.DraftEvent], rawText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome[source] = out.Status.String()
	// Gathered text survives an interpretation failure; the combined pass
	// still reads it.
	if rawText != "" && source != model.SourceCombined {
		t.rawTexts = append(t.rawTexts, rawText)
	}
	if out.Status != StatusCompleted || out.Value == nil {
		if out.Err != nil {
			slog.Warn("extraction track degraded", "source", source, "status", out.Status.String(), "error", out.Err)
		}
		t.results = append(t.results, model.SourceAnalysis{Source: source, RawText: rawText})
		return
	}
	t.results = append(t.results, model.SourceAnalysis{Source: source, Draft: out.Value, RawText: rawText})
}

func (t *trackTracker) skip(source model.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome[source] = "skipped"
	t.results = append(t.results, model.EmptyAnalysis(source))
}

func (t *trackTracker) hasCompleteDraft(sources ...model.Source) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range t.results {
		for _, s := range sources {
			if a.Source == s && a.Draft != nil && a.Draft.IsComplete() {
				return true
			}
		}
	}
	return false
}

func (t *trackTracker) joinedText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(strings.Join(t.rawTexts, "\n\n"))
}

func (t *trackTracker) analyses() []model.SourceAnalysis {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.SourceAnalysis, len(t.results))
	copy(out, t.results)
	return out
}

func (t *trackTracker) drafts() map[model.Source]*model.DraftEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[model.Source]*model.DraftEvent, len(t.results))
	for _, a := range t.results {
		if a.Draft != nil {
			out[a.Source] = a.Draft
		}
	}
	return out
}

func (t *trackTracker) outcomes() map[model.Source]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[model.Source]string, len(t.outcome))
	for k, v := range t.outcome {
		out[k] = v
	}
	return out
}
