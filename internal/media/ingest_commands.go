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
// This file defines the cor commands of the download-path ingest chain:
//
//	fetch   - download the whole media file via yt-dlp
//	sniff   - verify the bytes are actually video or audio
//	probe   - read the duration and enforce the download-path cap
//	harvest - sample timestamps, extract frames in parallel, pull audio
//
// The downloaded file is registered as a chain temp file, so the chain
// context deletes it on every exit path. The extracted audio is the one
// artifact that escapes the chain, owned by the produced IngestResult.
package media

import (
	"context"
	"fmt"
	"os"

	"github.com/h2non/filetype"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/core/cor"
	"github.com/snapevent/go-event-extract/internal/core/model"
)

// probedMedia is the intermediate shape piped from probe to harvest.
type probedMedia struct {
	path     string
	duration float64
}

type fetchCommand struct {
	cor.BaseCommand
	cfg    config.Media
	runner *Runner
	fetch  func(ctx context.Context, sourceURL string) (string, error)
}

func newFetchCommand(cfg config.Media, runner *Runner) *fetchCommand {
	return &fetchCommand{BaseCommand: *cor.NewBaseCommand("ingest-fetch"), cfg: cfg, runner: runner}
}

func (c *fetchCommand) Execute(chCtx cor.Context) {
	sourceURL := chCtx.Get(c.GetInputParam()).(string)

	fetch := c.fetch
	if fetch == nil {
		fetch = func(ctx context.Context, u string) (string, error) {
			return downloadMedia(ctx, c.cfg, c.runner, u)
		}
	}

	localPath, err := fetch(chCtx.GetContext(), sourceURL)
	if err != nil {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), &IngestError{Reason: ReasonUnreachable, Err: err})
		return
	}

	chCtx.AddTempFile(localPath)
	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(cor.CtxOut, localPath)
}

type sniffCommand struct {
	cor.BaseCommand
}

func newSniffCommand() *sniffCommand {
	return &sniffCommand{BaseCommand: *cor.NewBaseCommand("ingest-sniff")}
}

func (c *sniffCommand) Execute(chCtx cor.Context) {
	localPath := chCtx.Get(c.GetInputParam()).(string)

	file, err := os.Open(localPath)
	if err != nil {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), &IngestError{Reason: ReasonUnreachable, Err: err})
		return
	}
	defer file.Close()

	head := make([]byte, 261)
	n, _ := file.Read(head)
	head = head[:n]

	if !filetype.IsVideo(head) && !filetype.IsAudio(head) {
		kind, _ := filetype.Match(head)
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), &IngestError{
			Reason: ReasonUnsupported,
			Err:    fmt.Errorf("downloaded media is %q, not audio/video", kind.MIME.Value),
		})
		return
	}

	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(cor.CtxOut, localPath)
}

type probeCommand struct {
	cor.BaseCommand
	cfg    config.Media
	runner *Runner
}

func newProbeCommand(cfg config.Media, runner *Runner) *probeCommand {
	return &probeCommand{BaseCommand: *cor.NewBaseCommand("ingest-probe"), cfg: cfg, runner: runner}
}

func (c *probeCommand) Execute(chCtx cor.Context) {
	localPath := chCtx.Get(c.GetInputParam()).(string)

	probeCtx, cancel := context.WithTimeout(chCtx.GetContext(), c.cfg.ProbeTimeout())
	duration, err := c.runner.ProbeDuration(probeCtx, localPath)
	cancel()
	if err != nil {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), &IngestError{Reason: ReasonUnsupported, Err: err})
		return
	}

	if duration > float64(c.cfg.MaxDownloadSeconds) {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), &IngestError{
			Reason: ReasonOverDuration,
			Err:    fmt.Errorf("media is %.0fs, cap is %ds", duration, c.cfg.MaxDownloadSeconds),
		})
		return
	}

	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(cor.CtxOut, &probedMedia{path: localPath, duration: duration})
}

type harvestCommand struct {
	cor.BaseCommand
	ingestor   *Ingestor
	frameCount int
	wantAudio  bool
}

func newHarvestCommand(ingestor *Ingestor, frameCount int, wantAudio bool) *harvestCommand {
	return &harvestCommand{
		BaseCommand: *cor.NewBaseCommand("ingest-harvest"),
		ingestor:    ingestor,
		frameCount:  frameCount,
		wantAudio:   wantAudio,
	}
}

func (c *harvestCommand) Execute(chCtx cor.Context) {
	probed := chCtx.Get(c.GetInputParam()).(*probedMedia)

	timestamps := Sample(probed.duration, c.frameCount)
	frames := c.ingestor.extractFrames(chCtx.GetContext(), probed.path, timestamps)
	if len(frames) == 0 {
		c.GetErrorCounter().Add(chCtx.GetContext(), 1)
		chCtx.AddError(c.GetName(), &IngestError{Reason: ReasonNoFrames})
		return
	}

	result := &model.IngestResult{Frames: frames, DurationSeconds: probed.duration}
	if c.wantAudio {
		audioCtx, cancel := context.WithTimeout(chCtx.GetContext(), c.ingestor.cfg.FetchTimeout())
		audioPath, err := c.ingestor.runner.ExtractAudio(audioCtx, probed.path, c.ingestor.cfg.MaxAudioSeconds)
		cancel()
		if err == nil {
			result.AudioPath = audioPath
		}
	}

	c.GetSuccessCounter().Add(chCtx.GetContext(), 1)
	chCtx.Add(cor.CtxOut, result)
}
