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
// This file implements the ingestor, which picks between two strategies by
// source platform:
//
//   - Expiring-stream platforms (short-form social video) hand out stream
//     URLs that die within seconds, so the media is fully downloaded first
//     and sampled locally. The download path runs as a cor chain: fetch →
//     sniff → probe → harvest, with the chain context owning every
//     intermediate temp file.
//   - Stable platforms resolve to one long-lived stream URL, and all
//     sampled frames are extracted remotely from that URL in parallel.
//     Frames that fail or time out are dropped, not retried; partial
//     results are fine as long as one frame survives.
//
// Everything else takes the download path. Only the extracted audio file
// outlives an ingest run; it is owned by the returned IngestResult.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/core/cor"
	"github.com/snapevent/go-event-extract/internal/core/model"
)

// Strategy selects how decodable media is obtained for a source URL.
type Strategy int

const (
	// StrategyDownload fetches the whole file before sampling.
	StrategyDownload Strategy = iota
	// StrategyStream resolves one stream URL and samples it remotely.
	StrategyStream
)

// Ingestor turns a source URL into an IngestResult.
type Ingestor struct {
	cor.BaseCommand
	cfg     config.Media
	runner  *Runner
	workers int
}

// NewIngestor builds an Ingestor with its ffmpeg runner.
func NewIngestor(cfg config.Media, workers int) (*Ingestor, error) {
	runner, err := NewRunner(cfg.FFmpegPath, cfg.FFprobePath)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 4
	}
	return &Ingestor{
		BaseCommand: *cor.NewBaseCommand("media-ingestor"),
		cfg:         cfg,
		runner:      runner,
		workers:     workers,
	}, nil
}

// Runner exposes the ffmpeg runner for collaborators (the transcriber
// shares it for audio segmentation).
func (in *Ingestor) Runner() *Runner {
	return in.runner
}

// StrategyFor classifies a source URL by platform.
func (in *Ingestor) StrategyFor(sourceURL string) Strategy {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return StrategyDownload
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	for _, h := range in.cfg.StableStreamHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return StrategyStream
		}
	}
	// Expiring hosts and unknown hosts both download first; the split only
	// matters for documentation of intent.
	return StrategyDownload
}

// Ingest obtains frames (and optionally audio) from the source URL.
// Failures that leave zero frames return an *IngestError; partial frame
// loss does not.
func (in *Ingestor) Ingest(ctx context.Context, sourceURL string, frameCount int, wantAudio bool) (*model.IngestResult, error) {
	ctx, span := in.Tracer.Start(ctx, "ingest")
	defer span.End()

	if frameCount < 1 {
		frameCount = in.cfg.FrameCount
	}

	var result *model.IngestResult
	var err error
	switch in.StrategyFor(sourceURL) {
	case StrategyStream:
		result, err = in.ingestStream(ctx, sourceURL, frameCount, wantAudio)
	default:
		result, err = in.ingestDownload(ctx, sourceURL, frameCount, wantAudio)
	}
	if err != nil {
		in.GetErrorCounter().Add(ctx, 1)
		return nil, err
	}
	in.GetSuccessCounter().Add(ctx, 1)
	return result, nil
}

// ingestStream resolves a single stream URL and samples it remotely.
func (in *Ingestor) ingestStream(ctx context.Context, sourceURL string, frameCount int, wantAudio bool) (*model.IngestResult, error) {
	streamURL, err := in.resolveStreamURL(ctx, sourceURL)
	if err != nil {
		return nil, &IngestError{URL: sourceURL, Reason: ReasonUnreachable, Err: err}
	}

	probeCtx, probeCancel := context.WithTimeout(ctx, in.cfg.ProbeTimeout())
	duration, err := in.runner.ProbeDuration(probeCtx, streamURL)
	probeCancel()
	if err != nil {
		return nil, &IngestError{URL: sourceURL, Reason: ReasonUnsupported, Err: err}
	}

	timestamps := Sample(duration, frameCount)
	frames := in.extractFrames(ctx, streamURL, timestamps)
	if len(frames) == 0 {
		return nil, &IngestError{URL: sourceURL, Reason: ReasonNoFrames}
	}

	result := &model.IngestResult{Frames: frames, DurationSeconds: duration}
	if wantAudio {
		audioCtx, audioCancel := context.WithTimeout(ctx, in.cfg.FetchTimeout())
		audioPath, err := in.runner.ExtractAudio(audioCtx, streamURL, in.cfg.MaxAudioSeconds)
		audioCancel()
		// Missing audio degrades the transcript track, nothing more.
		if err == nil {
			result.AudioPath = audioPath
		}
	}
	return result, nil
}

// ingestDownload runs the download path as a cor chain. The chain context
// owns the downloaded media file; only the audio survives the run, carried
// out through the IngestResult.
func (in *Ingestor) ingestDownload(ctx context.Context, sourceURL string, frameCount int, wantAudio bool) (*model.IngestResult, error) {
	chain := cor.NewBaseChain("ingest-download")
	chain.AddCommand(newFetchCommand(in.cfg, in.runner))
	chain.AddCommand(newSniffCommand())
	chain.AddCommand(newProbeCommand(in.cfg, in.runner))
	chain.AddCommand(newHarvestCommand(in, frameCount, wantAudio))

	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, sourceURL)

	chain.Execute(chainCtx)

	if chainCtx.HasErrors() {
		for _, err := range chainCtx.GetErrors() {
			var ingErr *IngestError
			if errors.As(err, &ingErr) {
				ingErr.URL = sourceURL
				return nil, ingErr
			}
			return nil, &IngestError{URL: sourceURL, Reason: ReasonUnreachable, Err: err}
		}
	}

	result, ok := chainCtx.Get(cor.CtxIn).(*model.IngestResult)
	if !ok || result == nil {
		return nil, &IngestError{URL: sourceURL, Reason: ReasonNoFrames}
	}
	return result, nil
}

// resolveStreamURL asks yt-dlp for a direct stream URL without downloading.
func (in *Ingestor) resolveStreamURL(ctx context.Context, sourceURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, in.cfg.FetchTimeout())
	defer cancel()

	cmd := exec.CommandContext(fetchCtx, in.cfg.YTDLPPath,
		"-g",
		"--no-playlist",
		"-f", "best[ext=mp4]/best",
		sourceURL)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("stream URL resolution failed: %w (%s)", err, firstLine(stderr.String()))
	}
	streamURL := firstLine(stdout.String())
	if streamURL == "" {
		return "", fmt.Errorf("stream URL resolution returned nothing")
	}
	return streamURL, nil
}

type frameJob struct {
	timestamp float64
}

type frameResult struct {
	timestamp float64
	data      []byte
	err       error
}

// extractFrames pulls all sampled timestamps from the input in parallel.
// Each attempt is bounded by the per-frame timeout and the batch by the
// overall timeout; losers are dropped. The returned frames are sorted by
// timestamp even though extraction completes out of order.
func (in *Ingestor) extractFrames(ctx context.Context, input string, timestamps []float64) []model.MediaFrame {
	batchCtx, cancel := context.WithTimeout(ctx, in.cfg.BatchTimeout())
	defer cancel()

	jobs := make(chan frameJob, len(timestamps))
	results := make(chan frameResult, len(timestamps))

	workers := in.workers
	if workers > len(timestamps) {
		workers = len(timestamps)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				frameCtx, frameCancel := context.WithTimeout(batchCtx, in.cfg.FrameTimeout())
				data, err := in.runner.ExtractFrame(frameCtx, input, j.timestamp)
				frameCancel()
				results <- frameResult{timestamp: j.timestamp, data: data, err: err}
			}
		}()
	}

	for _, ts := range timestamps {
		jobs <- frameJob{timestamp: ts}
	}
	close(jobs)
	wg.Wait()
	close(results)

	frames := make([]model.MediaFrame, 0, len(timestamps))
	for r := range results {
		if r.err != nil {
			continue
		}
		frames = append(frames, model.MediaFrame{TimestampSeconds: r.timestamp, Image: r.data})
	}
	sort.Slice(frames, func(i, j int) bool {
		return frames[i].TimestampSeconds < frames[j].TimestampSeconds
	})
	return frames
}

// downloadMedia fetches the whole media file with yt-dlp and returns the
// local path. The caller owns the file.
func downloadMedia(ctx context.Context, cfg config.Media, runner *Runner, sourceURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout())
	defer cancel()

	localPath := runner.TempPath("download", ".mp4")
	cmd := exec.CommandContext(fetchCtx, cfg.YTDLPPath,
		"--no-playlist",
		"--no-progress",
		"-f", "mp4/best",
		"-o", localPath,
		sourceURL)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("download failed: %w (%s)", err, firstLine(stderr.String()))
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("download produced no file: %w", err)
	}
	return localPath, nil
}
