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
// This file wraps the ffmpeg and ffprobe binaries. All invocations go
// through exec.CommandContext so a lost deadline race kills the process
// rather than leaving it running.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Runner shells out to ffmpeg and ffprobe. Inputs may be local paths or
// remote stream URLs; ffmpeg handles both the same way.
type Runner struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
}

// NewRunner builds a Runner using the configured binary paths. The temp
// directory is created eagerly so concurrent extractions have a home.
func NewRunner(ffmpegPath, ffprobePath string) (*Runner, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	tempDir := filepath.Join(os.TempDir(), "event-extract-media")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media temp directory: %w", err)
	}
	return &Runner{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, tempDir: tempDir}, nil
}

// TempPath returns a uniquely named path inside the runner's temp
// directory. Unique names keep concurrent tracks from colliding in the
// shared temp namespace.
func (r *Runner) TempPath(kind, ext string) string {
	return filepath.Join(r.tempDir, fmt.Sprintf("%s-%s%s", kind, uuid.NewString(), ext))
}

// ProbeDuration returns the media duration in seconds via ffprobe, falling
// back to parsing ffmpeg's banner when ffprobe cannot report it.
func (r *Runner) ProbeDuration(ctx context.Context, input string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err == nil {
		if d, perr := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64); perr == nil && d > 0 {
			return d, nil
		}
	}

	cmd = exec.CommandContext(ctx, r.ffmpegPath, "-i", input, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()
	return parseDurationBanner(stderr.String())
}

func parseDurationBanner(output string) (float64, error) {
	const prefix = "Duration: "
	start := strings.Index(output, prefix)
	if start == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}
	start += len(prefix)
	end := strings.Index(output[start:], ",")
	if end == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}
	parts := strings.Split(output[start:start+end], ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", output[start:start+end])
	}
	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return hours*3600 + minutes*60 + seconds, nil
}

// ExtractFrame decodes one still frame at the given timestamp and returns
// its JPEG bytes. The intermediate file is removed before returning on
// every path.
func (r *Runner) ExtractFrame(ctx context.Context, input string, timestampSeconds float64) ([]byte, error) {
	framePath := r.TempPath("frame", ".jpg")
	defer os.Remove(framePath)

	cmd := exec.CommandContext(ctx, r.ffmpegPath,
		"-ss", fmt.Sprintf("%.2f", timestampSeconds),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "mjpeg",
		"-y", "-hide_banner",
		framePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("frame extraction at %.2fs failed: %w (%s)", timestampSeconds, err, firstLine(stderr.String()))
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("frame extraction at %.2fs produced no data", timestampSeconds)
	}
	return data, nil
}

// ExtractAudio writes the first maxSeconds of the input's audio track as
// mono 16 kHz PCM WAV and returns the file path. The caller owns the file.
func (r *Runner) ExtractAudio(ctx context.Context, input string, maxSeconds int) (string, error) {
	audioPath := r.TempPath("audio", ".wav")
	cmd := exec.CommandContext(ctx, r.ffmpegPath,
		"-i", input,
		"-t", strconv.Itoa(maxSeconds),
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		"-y", "-hide_banner",
		audioPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(audioPath)
		return "", fmt.Errorf("audio extraction failed: %w (%s)", err, firstLine(stderr.String()))
	}
	return audioPath, nil
}

// SegmentAudio splits an audio file into fixed-length chunks and returns
// the chunk paths in time order. The caller owns the chunk files.
func (r *Runner) SegmentAudio(ctx context.Context, input string, chunkSeconds int) ([]string, error) {
	pattern := filepath.Join(r.tempDir, fmt.Sprintf("chunk-%s-%%03d.wav", uuid.NewString()))
	cmd := exec.CommandContext(ctx, r.ffmpegPath,
		"-i", input,
		"-f", "segment",
		"-segment_time", strconv.Itoa(chunkSeconds),
		"-c", "copy",
		"-y", "-hide_banner",
		pattern)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("audio segmentation failed: %w (%s)", err, firstLine(stderr.String()))
	}

	glob := strings.Replace(pattern, "%03d", "*", 1)
	chunks, err := filepath.Glob(glob)
	if err != nil {
		return nil, err
	}
	// %03d names sort lexically in chunk order.
	sort.Strings(chunks)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("audio segmentation produced no chunks")
	}
	return chunks, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
