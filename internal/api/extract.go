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

// Package api exposes the extraction pipeline over HTTP.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/core/model"
	"github.com/snapevent/go-event-extract/internal/fusion"
)

// Runner is the orchestrator surface the handlers need.
type Runner interface {
	Run(ctx context.Context, in fusion.Input) (*fusion.Result, error)
}

// ExtractRequest is the POST /api/v1/extract body. Exactly one of url,
// text, or image_base64 must carry the input named by input_type.
type ExtractRequest struct {
	InputType   string `json:"input_type" binding:"required"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64"`
}

// ExtractResponse is the extraction result. NeedsReview flags drafts the
// pipeline could not fully ground; the pipeline never invents a date or
// title, so missing ones are surfaced for a human rather than defaulted.
type ExtractResponse struct {
	Event       *model.DraftEvent    `json:"event"`
	NeedsReview bool                 `json:"needs_review"`
	Meta        model.RunMetadata `json:"meta"`
}

// Handler wires the extraction endpoints into a gin router group.
type Handler struct {
	runner  Runner
	timeout time.Duration
}

func NewHandler(runner Runner, cfg config.Server) *Handler {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Handler{runner: runner, timeout: timeout}
}

// Register adds the extraction routes under the given group.
func (h *Handler) Register(r *gin.RouterGroup) {
	r.POST("/extract", h.extract)
}

func (h *Handler) extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in, err := toInput(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.runner.Run(ctx, in)
	if err != nil {
		if errors.Is(err, fusion.ErrNoSignal) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no event information could be extracted from the input"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ExtractResponse{
		Event:       result.Event,
		NeedsReview: !result.Event.IsComplete(),
		Meta:        result.Meta,
	})
}

func toInput(req ExtractRequest) (fusion.Input, error) {
	switch fusion.InputKind(req.InputType) {
	case fusion.InputURL:
		if req.URL == "" {
			return fusion.Input{}, errors.New("url is required for input_type url")
		}
		return fusion.Input{Kind: fusion.InputURL, URL: req.URL}, nil
	case fusion.InputText:
		if req.Text == "" {
			return fusion.Input{}, errors.New("text is required for input_type text")
		}
		return fusion.Input{Kind: fusion.InputText, Text: req.Text}, nil
	case fusion.InputImage:
		if req.ImageBase64 == "" {
			return fusion.Input{}, errors.New("image_base64 is required for input_type image")
		}
		raw, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return fusion.Input{}, errors.New("image_base64 is not valid base64")
		}
		return fusion.Input{Kind: fusion.InputImage, Image: raw}, nil
	default:
		return fusion.Input{}, errors.New("input_type must be one of url, text, image")
	}
}

// Healthz reports process liveness.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
