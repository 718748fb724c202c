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
// implements the event interpreter, the capability boundary the
// orchestrator calls with strict per-call timeouts. Each call shape builds
// a templated prompt carrying today's date (so year-less dates on flyers
// resolve) and a few-shot JSON example, sends the evidence as inline
// parts, and parses the model's JSON reply into a DraftEvent.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/core/cor"
	"github.com/snapevent/go-event-extract/internal/core/model"
)

// InterpretationError wraps any failure of one interpreter call. The
// orchestrator absorbs it per track; it never aborts sibling tracks.
type InterpretationError struct {
	Op  string
	Err error
}

func (e *InterpretationError) Error() string {
	return fmt.Sprintf("interpretation failed (%s): %v", e.Op, e.Err)
}

func (e *InterpretationError) Unwrap() error {
	return e.Err
}

const defaultImagePrompt = `Today's date is {{.TODAY}}.
Analyze this event flyer or screenshot and extract the event it announces.
Respond with a single JSON object shaped exactly like this example:
{{.EXAMPLE_JSON}}
Rules: omit any field you cannot determine from the image. Dates are
YYYY-MM-DD; resolve year-less dates to the next occurrence on or after
today. Times are 24-hour HH:MM:SS local. Do not invent information.`

const defaultFramesPrompt = `Today's date is {{.TODAY}}.
These are still frames sampled in time order from a short video announcing
an event. Read any on-screen text and imagery across all frames and extract
the event being announced.
Respond with a single JSON object shaped exactly like this example:
{{.EXAMPLE_JSON}}
Rules: omit any field you cannot determine from the frames. Dates are
YYYY-MM-DD; resolve year-less dates to the next occurrence on or after
today. Times are 24-hour HH:MM:SS local. Do not invent information.`

const defaultTextPrompt = `Today's date is {{.TODAY}}.
Extract the event described by the following text.
---
{{.TEXT}}
---
Respond with a single JSON object shaped exactly like this example:
{{.EXAMPLE_JSON}}
Rules: omit any field you cannot determine from the text. Dates are
YYYY-MM-DD; resolve year-less dates to the next occurrence on or after
today. Times are 24-hour HH:MM:SS local. Do not invent information.`

// EventInterpreter is the production Content Interpreter backed by a
// quota-aware generative model.
type EventInterpreter struct {
	cor.BaseCommand
	model        ContentGenerator
	imageTmpl    *template.Template
	framesTmpl   *template.Template
	textTmpl     *template.Template
	now          func() time.Time
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retries      metric.Int64Counter
}

// NewEventInterpreter parses the prompt templates (config overrides fall
// back to the built-in prompts) and initializes telemetry counters.
func NewEventInterpreter(generator ContentGenerator, prompts config.PromptTemplates) (*EventInterpreter, error) {
	pick := func(override, fallback string) string {
		if override != "" {
			return override
		}
		return fallback
	}

	imageTmpl, err := template.New("image-prompt").Parse(pick(prompts.ImagePrompt, defaultImagePrompt))
	if err != nil {
		return nil, err
	}
	framesTmpl, err := template.New("frames-prompt").Parse(pick(prompts.FramesPrompt, defaultFramesPrompt))
	if err != nil {
		return nil, err
	}
	textTmpl, err := template.New("text-prompt").Parse(pick(prompts.TextPrompt, defaultTextPrompt))
	if err != nil {
		return nil, err
	}

	out := &EventInterpreter{
		BaseCommand: *cor.NewBaseCommand("event-interpreter"),
		model:       generator,
		imageTmpl:   imageTmpl,
		framesTmpl:  framesTmpl,
		textTmpl:    textTmpl,
		now:         time.Now,
	}
	out.inputTokens, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.token.input", out.GetName()))
	out.outputTokens, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.token.output", out.GetName()))
	out.retries, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.retry", out.GetName()))
	return out, nil
}

// InterpretImage extracts a draft event from a single still image.
func (i *EventInterpreter) InterpretImage(ctx context.Context, imageBytes []byte) (*model.DraftEvent, error) {
	prompt, err := i.renderPrompt(i.imageTmpl, "")
	if err != nil {
		return nil, &InterpretationError{Op: "image", Err: err}
	}
	parts := []*genai.Part{{Text: prompt}, imagePart(imageBytes)}
	return i.generateDraft(ctx, "image", parts)
}

// InterpretFrames extracts a draft event from a batch of video frames,
// supplied in capture-time order.
func (i *EventInterpreter) InterpretFrames(ctx context.Context, frames [][]byte) (*model.DraftEvent, error) {
	if len(frames) == 0 {
		return nil, &InterpretationError{Op: "frames", Err: fmt.Errorf("no frames supplied")}
	}
	prompt, err := i.renderPrompt(i.framesTmpl, "")
	if err != nil {
		return nil, &InterpretationError{Op: "frames", Err: err}
	}
	parts := make([]*genai.Part, 0, len(frames)+1)
	parts = append(parts, &genai.Part{Text: prompt})
	for _, frame := range frames {
		parts = append(parts, imagePart(frame))
	}
	return i.generateDraft(ctx, "frames", parts)
}

// InterpretText extracts a draft event from free text.
func (i *EventInterpreter) InterpretText(ctx context.Context, text string) (*model.DraftEvent, error) {
	prompt, err := i.renderPrompt(i.textTmpl, text)
	if err != nil {
		return nil, &InterpretationError{Op: "text", Err: err}
	}
	return i.generateDraft(ctx, "text", []*genai.Part{{Text: prompt}})
}

func (i *EventInterpreter) renderPrompt(tmpl *template.Template, text string) (string, error) {
	exampleJSON, err := json.Marshal(model.GetExampleEvent())
	if err != nil {
		return "", err
	}
	vocabulary := map[string]string{
		"TODAY":        i.now().Format("2006-01-02"),
		"EXAMPLE_JSON": string(exampleJSON),
		"TEXT":         text,
	}
	var doc bytes.Buffer
	if err := tmpl.Execute(&doc, vocabulary); err != nil {
		return "", err
	}
	return doc.String(), nil
}

func (i *EventInterpreter) generateDraft(ctx context.Context, op string, parts []*genai.Part) (*model.DraftEvent, error) {
	contents := []*genai.Content{{Parts: parts, Role: "user"}}

	out, err := GenerateText(ctx, i.model, contents, i.inputTokens, i.outputTokens, i.retries)
	if err != nil {
		i.GetErrorCounter().Add(ctx, 1)
		return nil, &InterpretationError{Op: op, Err: err}
	}

	draft := &model.DraftEvent{}
	if err := json.Unmarshal([]byte(out), draft); err != nil {
		i.GetErrorCounter().Add(ctx, 1)
		return nil, &InterpretationError{Op: op, Err: fmt.Errorf("model returned unparseable JSON: %w", err)}
	}
	i.GetSuccessCounter().Add(ctx, 1)
	return draft, nil
}

func imagePart(data []byte) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: data}}
}
