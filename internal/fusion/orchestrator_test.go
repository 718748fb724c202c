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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"

	"github.com/snapevent/go-event-extract/internal/core/model"
	"github.com/snapevent/go-event-extract/internal/fusion"
	"github.com/snapevent/go-event-extract/internal/media"
	"github.com/snapevent/go-event-extract/internal/testutil"
)

const tName = "github.com/snapevent/go-event-extract/tests/fusion"

var (
	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

func TestMain(m *testing.M) {
	if err := testutil.SetupOS(); err != nil {
		panic(err)
	}
	ctx, span := tracer.Start(context.Background(), "fusion-suite")
	logger.InfoContext(ctx, "starting fusion test suite")
	code := m.Run()
	span.End()
	os.Exit(code)
}

type fakeIngestor struct {
	result *model.IngestResult
	err    error
}

func (f *fakeIngestor) Ingest(_ context.Context, _ string, _ int, _ bool) (*model.IngestResult, error) {
	return f.result, f.err
}

type fakeDecoder struct {
	codeURL string
}

func (f *fakeDecoder) Decode(_ []byte) string { return f.codeURL }

type fakeTranscriber struct {
	text string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) string { return f.text }

// fakeInterpreter returns fixed drafts per call shape; the text draft can
// vary by substring to simulate different signals.
type fakeInterpreter struct {
	imageDraft *model.DraftEvent
	frameDraft *model.DraftEvent
	textDrafts map[string]*model.DraftEvent
	textErr    error
}

func (f *fakeInterpreter) InterpretImage(_ context.Context, _ []byte) (*model.DraftEvent, error) {
	return f.imageDraft, nil
}

func (f *fakeInterpreter) InterpretFrames(_ context.Context, _ [][]byte) (*model.DraftEvent, error) {
	return f.frameDraft, nil
}

func (f *fakeInterpreter) InterpretText(_ context.Context, text string) (*model.DraftEvent, error) {
	if f.textErr != nil {
		return nil, f.textErr
	}
	for needle, draft := range f.textDrafts {
		if strings.Contains(text, needle) {
			return draft, nil
		}
	}
	return &model.DraftEvent{}, nil
}

// slowIngestor ignores cancellation and returns its result after a fixed
// delay, like a download that cannot be interrupted mid-transfer.
type slowIngestor struct {
	delay  time.Duration
	result *model.IngestResult
}

func (s *slowIngestor) Ingest(_ context.Context, _ string, _ int, _ bool) (*model.IngestResult, error) {
	time.Sleep(s.delay)
	return s.result, nil
}

// flakyInterpreter fails the first N text interpretations and then defers
// to the embedded fake.
type flakyInterpreter struct {
	fakeInterpreter
	textFailuresLeft int
}

func (f *flakyInterpreter) InterpretText(ctx context.Context, text string) (*model.DraftEvent, error) {
	if f.textFailuresLeft > 0 {
		f.textFailuresLeft--
		return nil, errors.New("model overloaded")
	}
	return f.fakeInterpreter.InterpretText(ctx, text)
}

type fakeFetcher struct {
	page *media.PageMetadata
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (*media.PageMetadata, error) {
	return f.page, f.err
}

func sampleFrames() []model.MediaFrame {
	return []model.MediaFrame{
		{TimestampSeconds: 0, Image: []byte("frame-0")},
		{TimestampSeconds: 10, Image: []byte("frame-10")},
	}
}

func newOrchestrator(
	t *testing.T,
	ingestor fusion.Ingestor,
	decoder fusion.CodeDecoder,
	transcriber fusion.Transcriber,
	interpreter fusion.Interpreter,
	fetcher fusion.MetadataFetcher,
) *fusion.Orchestrator {
	t.Helper()
	return fusion.NewOrchestrator(testutil.GetConfig(), ingestor, decoder, transcriber, interpreter, fetcher)
}

func TestRunVideoFrameTrackWins(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "audio.wav")
	assert.NoError(t, os.WriteFile(audioPath, []byte("wav"), 0o644))

	frameDraft := &model.DraftEvent{
		Title: model.StringPtr("Jazz Night"),
		Date:  model.StringPtr("2026-03-14"),
		Time:  model.StringPtr("20:00:00"),
	}
	transcriptDraft := &model.DraftEvent{
		Title:    model.StringPtr("Some Jazz Show"),
		Location: model.StringPtr("The Blue Door Lounge"),
	}

	orch := newOrchestrator(t,
		&fakeIngestor{result: &model.IngestResult{Frames: sampleFrames(), AudioPath: audioPath, DurationSeconds: 45}},
		&fakeDecoder{},
		&fakeTranscriber{text: "welcome to jazz night at the blue door"},
		&fakeInterpreter{
			frameDraft: frameDraft,
			textDrafts: map[string]*model.DraftEvent{"blue door": transcriptDraft},
		},
		&fakeFetcher{err: errors.New("no page")},
	)

	result, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	assert.NoError(t, err)

	// The complete frame draft is authoritative; the transcript only
	// backfills the missing location.
	assert.Equal(t, model.SourceFrame, result.Meta.WinningSource)
	assert.Equal(t, "Jazz Night", *result.Event.Title)
	assert.Equal(t, "2026-03-14", *result.Event.Date)
	assert.Equal(t, "The Blue Door Lounge", *result.Event.Location)

	assert.Equal(t, 2, result.Meta.FrameCount)
	assert.True(t, result.Meta.HadAudio)
	assert.Contains(t, result.Meta.TranscriptExcerpt, "jazz night")

	// A complete frame draft already decides the merge; no combined pass.
	assert.Equal(t, "skipped", result.Meta.TrackOutcomes[model.SourceCombined])

	// The ingest result was released on the way out.
	_, statErr := os.Stat(audioPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunVideoWithoutAudioSkipsTranscriptTrack(t *testing.T) {
	frameDraft := &model.DraftEvent{
		Title: model.StringPtr("Open Mic"),
		Date:  model.StringPtr("2026-04-02"),
	}

	orch := newOrchestrator(t,
		&fakeIngestor{result: &model.IngestResult{Frames: sampleFrames(), DurationSeconds: 30}},
		&fakeDecoder{},
		&fakeTranscriber{text: "should not be used"},
		&fakeInterpreter{frameDraft: frameDraft},
		&fakeFetcher{err: errors.New("no page")},
	)

	result, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	assert.NoError(t, err)
	assert.False(t, result.Meta.HadAudio)
	assert.Equal(t, "skipped", result.Meta.TrackOutcomes[model.SourceTranscript])
	assert.Equal(t, "Open Mic", *result.Event.Title)
}

func TestRunVideoIngestFailureFailsRequest(t *testing.T) {
	orch := newOrchestrator(t,
		&fakeIngestor{err: &media.IngestError{URL: "https://example.com/v", Reason: media.ReasonUnreachable}},
		&fakeDecoder{},
		&fakeTranscriber{},
		&fakeInterpreter{},
		&fakeFetcher{err: errors.New("no page")},
	)

	_, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	assert.Error(t, err)
}

func TestRunVideoIngestFailureFallsBackToMetadata(t *testing.T) {
	metadataDraft := &model.DraftEvent{
		Title: model.StringPtr("Spring Gala"),
		Date:  model.StringPtr("2026-05-09"),
	}

	orch := newOrchestrator(t,
		&fakeIngestor{err: &media.IngestError{URL: "https://example.com/v", Reason: media.ReasonUnreachable}},
		&fakeDecoder{},
		&fakeTranscriber{},
		&fakeInterpreter{textDrafts: map[string]*model.DraftEvent{"Spring Gala": metadataDraft}},
		&fakeFetcher{page: &media.PageMetadata{Title: "Spring Gala", Description: "Annual fundraiser."}},
	)

	result, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	assert.NoError(t, err)
	assert.Equal(t, "Spring Gala", *result.Event.Title)
	assert.Equal(t, model.SourceMetadata, result.Meta.WinningSource)
	assert.Equal(t, "skipped", result.Meta.TrackOutcomes[model.SourceFrame])
	assert.Equal(t, "skipped", result.Meta.TrackOutcomes[model.SourceTranscript])
}

func TestRunVideoIngestFailureWithUnusableMetadataPropagates(t *testing.T) {
	// Page metadata exists but yields no draft, so the original ingest
	// error surfaces rather than a bare no-signal error.
	orch := newOrchestrator(t,
		&fakeIngestor{err: &media.IngestError{URL: "https://example.com/v", Reason: media.ReasonUnreachable}},
		&fakeDecoder{},
		&fakeTranscriber{},
		&fakeInterpreter{textErr: errors.New("model unavailable")},
		&fakeFetcher{page: &media.PageMetadata{Title: "Spring Gala"}},
	)

	_, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	var ingestErr *media.IngestError
	assert.True(t, errors.As(err, &ingestErr))
}

func TestRunVideoIngestTimeoutReleasesLateResult(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "audio.wav")
	assert.NoError(t, os.WriteFile(audioPath, []byte("wav"), 0o644))

	cfg := testutil.GetConfig()
	delay := time.Duration(cfg.Tracks.IngestSeconds)*time.Second + 500*time.Millisecond

	orch := newOrchestrator(t,
		&slowIngestor{delay: delay, result: &model.IngestResult{Frames: sampleFrames(), AudioPath: audioPath}},
		&fakeDecoder{},
		&fakeTranscriber{},
		&fakeInterpreter{},
		&fakeFetcher{err: errors.New("no page")},
	)

	_, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	assert.Error(t, err)

	// The ingest result that arrived after the deadline is released once
	// the loser finishes; its extracted audio must not stay on disk.
	assert.Eventually(t, func() bool {
		_, statErr := os.Stat(audioPath)
		return os.IsNotExist(statErr)
	}, delay+2*time.Second, 50*time.Millisecond)
}

func TestRunVideoTranscriptTextSurvivesInterpreterFailure(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "audio.wav")
	assert.NoError(t, os.WriteFile(audioPath, []byte("wav"), 0o644))

	combinedDraft := &model.DraftEvent{
		Title: model.StringPtr("Harvest Moon Festival"),
		Date:  model.StringPtr("2026-10-03"),
	}

	orch := newOrchestrator(t,
		&fakeIngestor{result: &model.IngestResult{Frames: sampleFrames(), AudioPath: audioPath, DurationSeconds: 45}},
		&fakeDecoder{},
		&fakeTranscriber{text: "harvest moon festival october third"},
		&flakyInterpreter{
			fakeInterpreter:  fakeInterpreter{frameDraft: &model.DraftEvent{}, textDrafts: map[string]*model.DraftEvent{"harvest moon": combinedDraft}},
			textFailuresLeft: 1,
		},
		&fakeFetcher{err: errors.New("no page")},
	)

	result, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	assert.NoError(t, err)

	// The transcript interpretation failed, but the gathered transcript
	// still fed the combined pass.
	assert.Equal(t, "failed", result.Meta.TrackOutcomes[model.SourceTranscript])
	assert.Equal(t, "completed", result.Meta.TrackOutcomes[model.SourceCombined])
	assert.Equal(t, model.SourceCombined, result.Meta.WinningSource)
	assert.Equal(t, "Harvest Moon Festival", *result.Event.Title)
}

func TestRunVideoMetadataTrackContributes(t *testing.T) {
	metadataDraft := &model.DraftEvent{
		Title: model.StringPtr("Spring Gala"),
		Date:  model.StringPtr("2026-05-09"),
	}

	orch := newOrchestrator(t,
		&fakeIngestor{result: &model.IngestResult{Frames: sampleFrames(), DurationSeconds: 30}},
		&fakeDecoder{},
		&fakeTranscriber{},
		&fakeInterpreter{
			frameDraft: &model.DraftEvent{},
			textDrafts: map[string]*model.DraftEvent{"Spring Gala": metadataDraft},
		},
		&fakeFetcher{page: &media.PageMetadata{Title: "Spring Gala", Description: "Annual fundraiser."}},
	)

	result, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	assert.NoError(t, err)
	assert.Equal(t, model.SourceMetadata, result.Meta.WinningSource)
	assert.Equal(t, "Spring Gala", *result.Event.Title)
}

func TestRunImageFollowsQRCode(t *testing.T) {
	imageDraft := &model.DraftEvent{
		Title: model.StringPtr("Poster Party"),
		Date:  model.StringPtr("2026-07-04"),
	}
	pageDraft := &model.DraftEvent{
		Location: model.StringPtr("Riverside Park"),
	}

	orch := newOrchestrator(t,
		&fakeIngestor{},
		&fakeDecoder{codeURL: "https://events.example.com/party"},
		&fakeTranscriber{},
		&fakeInterpreter{
			imageDraft: imageDraft,
			textDrafts: map[string]*model.DraftEvent{"Riverside": pageDraft},
		},
		&fakeFetcher{page: &media.PageMetadata{Title: "Party", Description: "At Riverside Park."}},
	)

	result, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputImage, Image: []byte("png")})
	assert.NoError(t, err)
	assert.Equal(t, "https://events.example.com/party", result.Meta.CodeURL)
	assert.Equal(t, "Poster Party", *result.Event.Title)
	assert.Equal(t, "Riverside Park", *result.Event.Location)
}

func TestRunImageWithoutCodeStillInterprets(t *testing.T) {
	imageDraft := &model.DraftEvent{
		Title: model.StringPtr("Poster Party"),
		Date:  model.StringPtr("2026-07-04"),
	}

	orch := newOrchestrator(t,
		&fakeIngestor{},
		&fakeDecoder{},
		&fakeTranscriber{},
		&fakeInterpreter{imageDraft: imageDraft},
		&fakeFetcher{err: errors.New("should not be called")},
	)

	result, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputImage, Image: []byte("png")})
	assert.NoError(t, err)
	assert.Equal(t, "", result.Meta.CodeURL)
	assert.Equal(t, "skipped", result.Meta.TrackOutcomes[model.SourceMetadata])
	assert.Equal(t, "Poster Party", *result.Event.Title)
}

func TestRunText(t *testing.T) {
	textDraft := &model.DraftEvent{
		Title: model.StringPtr("Jazz Night"),
		Date:  model.StringPtr("2026-03-14"),
	}

	orch := newOrchestrator(t,
		&fakeIngestor{},
		&fakeDecoder{},
		&fakeTranscriber{},
		&fakeInterpreter{textDrafts: map[string]*model.DraftEvent{"JAZZ NIGHT": textDraft}},
		&fakeFetcher{},
	)

	result, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputText, Text: testutil.GetSampleFlyerText()})
	assert.NoError(t, err)
	assert.Equal(t, "Jazz Night", *result.Event.Title)
	assert.False(t, result.Event.IsEmpty())
}

func TestRunTextBlankInputIsNoSignal(t *testing.T) {
	orch := newOrchestrator(t, &fakeIngestor{}, &fakeDecoder{}, &fakeTranscriber{}, &fakeInterpreter{}, &fakeFetcher{})

	_, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputText, Text: "   "})
	assert.ErrorIs(t, err, fusion.ErrNoSignal)
}

func TestRunNoUsableSignal(t *testing.T) {
	orch := newOrchestrator(t,
		&fakeIngestor{result: &model.IngestResult{Frames: sampleFrames(), DurationSeconds: 30}},
		&fakeDecoder{},
		&fakeTranscriber{},
		&fakeInterpreter{frameDraft: &model.DraftEvent{}},
		&fakeFetcher{err: errors.New("no page")},
	)

	_, err := orch.Run(context.Background(), fusion.Input{Kind: fusion.InputURL, URL: "https://example.com/v"})
	assert.ErrorIs(t, err, fusion.ErrNoSignal)
}

func TestRunUnknownInputKind(t *testing.T) {
	orch := newOrchestrator(t, &fakeIngestor{}, &fakeDecoder{}, &fakeTranscriber{}, &fakeInterpreter{}, &fakeFetcher{})

	_, err := orch.Run(context.Background(), fusion.Input{Kind: "audio"})
	assert.Error(t, err)
}
