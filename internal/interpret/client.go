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

// Package interpret turns raw evidence (an image, a batch of frames, free
// text, an audio chunk) into structured output by calling a generative
// model. This file wraps the model client with the two resilience layers
// every call goes through: a token-bucket rate limit so the pipeline never
// exceeds the service quota, and bounded exponential-backoff retry for
// transient failures.
package interpret

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/snapevent/go-event-extract/internal/config"
)

// MaxRetries bounds the retry loop around one generation call.
const MaxRetries = 3

// EnvAPIKey names the environment variable carrying the Gemini API key.
const EnvAPIKey = "GEMINI_API_KEY"

// NewClient builds the generative model client from the environment.
func NewClient(ctx context.Context) (*genai.Client, error) {
	apiKey := os.Getenv(EnvAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set", EnvAPIKey)
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// QuotaAwareModel decorates a generative model with a request rate limit.
type QuotaAwareModel struct {
	GenerateConfig *genai.GenerateContentConfig
	ModelName      string
	Models         *genai.Models
	limiter        *rate.Limiter
}

// NewQuotaAwareModel configures the model from config, including the
// per-second request budget.
func NewQuotaAwareModel(models *genai.Models, cfg config.GenAIModel) *QuotaAwareModel {
	generateConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		MaxOutputTokens: cfg.MaxTokens,
	}
	if cfg.TopP > 0 {
		generateConfig.TopP = genai.Ptr(cfg.TopP)
	}
	if cfg.SystemInstructions != "" {
		generateConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstructions}},
		}
	}

	rps := cfg.RateLimit
	if rps < 1 {
		rps = 1
	}
	return &QuotaAwareModel{
		GenerateConfig: generateConfig,
		ModelName:      cfg.Model,
		Models:         models,
		limiter:        rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// GenerateContent waits for a rate-limit token (respecting the caller's
// deadline) and issues one generation call.
func (q *QuotaAwareModel) GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return q.Models.GenerateContent(ctx, q.ModelName, contents, q.GenerateConfig)
}

// ContentGenerator is the slice of the model surface the interpreter and
// the speech backend consume; tests substitute fakes.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

// GenerateText performs a generation call with retry and returns the
// concatenated candidate text, with markdown fences stripped. Token usage
// and retries are recorded on the supplied counters.
func GenerateText(
	ctx context.Context,
	model ContentGenerator,
	contents []*genai.Content,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
) (string, error) {
	var resp *genai.GenerateContentResponse

	operation := func() error {
		var err error
		resp, err = model.GenerateContent(ctx, contents)
		if err != nil {
			retryCounter.Add(ctx, 1)
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}

	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			out.WriteString(part.Text)
		}
	}

	value := strings.TrimSpace(out.String())
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimPrefix(value, "```")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value), nil
}
