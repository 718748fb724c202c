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

// Package config defines the application configuration structs, loaded from
// TOML files. A base file supplies defaults and an environment-specific
// file overlays it, so the same binary runs in local, test, and production
// shapes without code changes.
package config

import "time"

// Application holds general application settings.
type Application struct {
	Name           string `toml:"name"`
	ThreadPoolSize int    `toml:"thread_pool_size"`
}

// Server configures the HTTP request layer.
type Server struct {
	Addr                  string `toml:"addr"`
	ReadTimeoutSeconds    int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int    `toml:"write_timeout_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Media configures the ingestor and the external decoding binaries it
// shells out to.
type Media struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	YTDLPPath   string `toml:"ytdlp_path"`

	FrameCount          int `toml:"frame_count"`
	MaxDownloadSeconds  int `toml:"max_download_seconds"`   // hard cap for the download path
	MaxAudioSeconds     int `toml:"max_audio_seconds"`      // audio is truncated to this length
	FrameTimeoutSeconds int `toml:"frame_timeout_seconds"`  // per-frame extraction bound
	BatchTimeoutSeconds int `toml:"batch_timeout_seconds"`  // whole frame batch bound
	ProbeTimeoutSeconds int `toml:"probe_timeout_seconds"`  // duration probe bound
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`  // download / stream-URL resolution bound

	// Platforms whose transient stream URLs expire quickly and must be
	// fully downloaded before sampling.
	ExpiringStreamHosts []string `toml:"expiring_stream_hosts"`
	// Platforms with stable resolvable stream URLs that can be sampled
	// remotely without a full download.
	StableStreamHosts []string `toml:"stable_stream_hosts"`
}

// Transcriber configures the chunked speech-to-text layer.
type Transcriber struct {
	SingleShotMaxBytes int64 `toml:"single_shot_max_bytes"`
	ChunkSeconds       int   `toml:"chunk_seconds"`
	Workers            int   `toml:"workers"`
}

// Tracks holds the per-track deadlines of the fusion orchestrator.
type Tracks struct {
	FrameSeconds      int `toml:"frame_seconds"`
	TranscriptSeconds int `toml:"transcript_seconds"`
	MetadataSeconds   int `toml:"metadata_seconds"`
	CombinedSeconds   int `toml:"combined_seconds"`
	IngestSeconds     int `toml:"ingest_seconds"`
}

// GenAIModel configures one generative model, including the request rate
// the quota-aware wrapper enforces.
type GenAIModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	MaxTokens          int32   `toml:"max_tokens"`
	RateLimit          int     `toml:"rate_limit"` // requests per second
}

// PromptTemplates holds the Go text/template sources for each interpreter
// call shape.
type PromptTemplates struct {
	ImagePrompt      string `toml:"image"`
	FramesPrompt     string `toml:"frames"`
	TextPrompt       string `toml:"text"`
	TranscribePrompt string `toml:"transcribe"`
}

// Config is the top-level configuration aggregate.
type Config struct {
	Application     Application           `toml:"application"`
	Server          Server                `toml:"server"`
	Media           Media                 `toml:"media"`
	Transcriber     Transcriber           `toml:"transcriber"`
	Tracks          Tracks                `toml:"tracks"`
	AgentModels     map[string]GenAIModel `toml:"agent_models"`
	PromptTemplates PromptTemplates       `toml:"prompt_templates"`
}

// NewConfig returns a Config with its maps initialized and the pipeline
// defaults applied; TOML files overlay these values.
func NewConfig() *Config {
	c := &Config{AgentModels: make(map[string]GenAIModel)}
	c.Application.Name = "event-extract"
	c.Application.ThreadPoolSize = 4
	c.Server.Addr = ":8080"
	c.Server.ReadTimeoutSeconds = 20
	c.Server.WriteTimeoutSeconds = 60
	c.Server.RequestTimeoutSeconds = 90
	c.Media.FFmpegPath = "ffmpeg"
	c.Media.FFprobePath = "ffprobe"
	c.Media.YTDLPPath = "yt-dlp"
	c.Media.FrameCount = 8
	c.Media.MaxDownloadSeconds = 600
	c.Media.MaxAudioSeconds = 120
	c.Media.FrameTimeoutSeconds = 10
	c.Media.BatchTimeoutSeconds = 30
	c.Media.ProbeTimeoutSeconds = 10
	c.Media.FetchTimeoutSeconds = 60
	c.Media.ExpiringStreamHosts = []string{"tiktok.com", "instagram.com", "facebook.com", "fb.watch"}
	c.Media.StableStreamHosts = []string{"youtube.com", "youtu.be"}
	c.Transcriber.SingleShotMaxBytes = 10 << 20
	c.Transcriber.ChunkSeconds = 30
	c.Transcriber.Workers = 4
	c.Tracks.FrameSeconds = 15
	c.Tracks.TranscriptSeconds = 20
	c.Tracks.MetadataSeconds = 10
	c.Tracks.CombinedSeconds = 15
	c.Tracks.IngestSeconds = 60
	return c
}

// FrameTimeout is the per-frame extraction bound as a duration.
func (m *Media) FrameTimeout() time.Duration {
	return time.Duration(m.FrameTimeoutSeconds) * time.Second
}

// BatchTimeout is the frame batch bound as a duration.
func (m *Media) BatchTimeout() time.Duration {
	return time.Duration(m.BatchTimeoutSeconds) * time.Second
}

// ProbeTimeout is the duration probe bound as a duration.
func (m *Media) ProbeTimeout() time.Duration {
	return time.Duration(m.ProbeTimeoutSeconds) * time.Second
}

// FetchTimeout bounds downloads and stream URL resolution.
func (m *Media) FetchTimeout() time.Duration {
	return time.Duration(m.FetchTimeoutSeconds) * time.Second
}
