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

package main

import (
	"context"
	"log"
	"os"

	"github.com/snapevent/go-event-extract/internal/config"
	"github.com/snapevent/go-event-extract/internal/fusion"
	"github.com/snapevent/go-event-extract/internal/interpret"
	"github.com/snapevent/go-event-extract/internal/media"
	"github.com/snapevent/go-event-extract/internal/qrdecode"
	"github.com/snapevent/go-event-extract/internal/stt"
)

// interpreterAgent names the agent_models entry the extraction
// interpreter uses.
const interpreterAgent = "interpreter"

// state holds the shared dependencies of the server process.
type stateManager struct {
	config       *config.Config
	orchestrator *fusion.Orchestrator
}

var state = &stateManager{}

// SetupOS points the configuration loader at the configs directory when
// the environment does not already say where to look.
func SetupOS() error {
	if os.Getenv(config.EnvConfigFilePrefix) == "" {
		if err := os.Setenv(config.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(config.EnvConfigRuntime) == "" {
		return os.Setenv(config.EnvConfigRuntime, "local")
	}
	return nil
}

// GetConfig loads the configuration once and caches it.
func GetConfig() *config.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to set up environment: %v", err)
		}
		cfg := config.NewConfig()
		if err := config.Load(cfg); err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		state.config = cfg
	}
	return state.config
}

// InitState builds the extraction pipeline: the GenAI client, the
// quota-aware model, the interpreter, the ingestor with its transcriber,
// the QR decoder, and the orchestrator that ties them together.
func InitState(ctx context.Context) error {
	cfg := GetConfig()

	client, err := interpret.NewClient(ctx)
	if err != nil {
		return err
	}

	modelCfg, ok := cfg.AgentModels[interpreterAgent]
	if !ok {
		modelCfg = config.GenAIModel{Model: "gemini-2.0-flash", RateLimit: 2}
	}
	generator := interpret.NewQuotaAwareModel(client.Models, modelCfg)

	interpreter, err := interpret.NewEventInterpreter(generator, cfg.PromptTemplates)
	if err != nil {
		return err
	}

	ingestor, err := media.NewIngestor(cfg.Media, cfg.Application.ThreadPoolSize)
	if err != nil {
		return err
	}

	speech := interpret.NewSpeechTranscriber(generator, cfg.PromptTemplates)
	transcriber := stt.NewTranscriber(speech, ingestor.Runner(), cfg.Transcriber)

	fetcher := media.NewMetadataFetcher(cfg.Media.FetchTimeout())

	state.orchestrator = fusion.NewOrchestrator(
		cfg,
		ingestor,
		qrdecode.NewDecoder(),
		transcriber,
		interpreter,
		fetcher,
	)
	return nil
}
