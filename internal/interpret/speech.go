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

// Package interpret turns raw evidence into structured output. This file
// implements the speech-to-text backend the transcriber fans chunks out
// to: each call sends one bounded WAV file inline to the generative model
// and asks for a verbatim transcript.
package interpret

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/core/cor"
)

const defaultTranscribePrompt = `Transcribe the spoken audio verbatim.
Respond with only the transcript text, no commentary. If there is no
intelligible speech, respond with an empty string.`

// SpeechTranscriber transcribes one audio file per call. Chunking to stay
// under the service's per-call duration limit is the caller's concern.
type SpeechTranscriber struct {
	cor.BaseCommand
	model        ContentGenerator
	prompt       string
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retries      metric.Int64Counter
}

func NewSpeechTranscriber(generator ContentGenerator, prompts config.PromptTemplates) *SpeechTranscriber {
	prompt := prompts.TranscribePrompt
	if prompt == "" {
		prompt = defaultTranscribePrompt
	}
	out := &SpeechTranscriber{
		BaseCommand: *cor.NewBaseCommand("speech-transcriber"),
		model:       generator,
		prompt:      prompt,
	}
	out.inputTokens, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.token.input", out.GetName()))
	out.outputTokens, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.token.output", out.GetName()))
	out.retries, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.retry", out.GetName()))
	return out
}

// TranscribeFile returns the verbatim transcript of one audio file.
func (s *SpeechTranscriber) TranscribeFile(ctx context.Context, audioPath string) (string, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		s.GetErrorCounter().Add(ctx, 1)
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: s.prompt},
			{InlineData: &genai.Blob{MIMEType: "audio/wav", Data: data}},
		},
		Role: "user",
	}}

	text, err := GenerateText(ctx, s.model, contents, s.inputTokens, s.outputTokens, s.retries)
	if err != nil {
		s.GetErrorCounter().Add(ctx, 1)
		return "", err
	}
	s.GetSuccessCounter().Add(ctx, 1)
	return text, nil
}
