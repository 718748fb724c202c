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

// Package testutil provides helpers shared by the test suite: a cached
// test configuration and small sample inputs.
package testutil

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/snapevent/go-event-extract/internal/config"
)

type stateManager struct {
	config *config.Config
}

// state caches the test configuration so it is loaded once per test run.
var state = &stateManager{}

// HandleErr fails the test when err is non-nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at the test runtime. The config
// directory is resolved to an absolute path from this source file, since
// package tests run with their own package directory as the working
// directory.
func SetupOS() error {
	_, thisFile, _, _ := runtime.Caller(0)
	configDir := filepath.Join(filepath.Dir(thisFile), "..", "..", "configs")
	if err := os.Setenv(config.EnvConfigFilePrefix, configDir); err != nil {
		return err
	}
	return os.Setenv(config.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once and caches it. Missing
// config files are fine; the defaults are enough for unit tests.
func GetConfig() *config.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to set up test environment: %v", err)
		}
		cfg := config.NewConfig()
		if err := config.Load(cfg); err != nil {
			log.Fatalf("failed to load test configuration: %v", err)
		}
		state.config = cfg
	}
	return state.config
}

// GetSampleFlyerText returns realistic flyer copy for interpreter and
// fusion tests.
func GetSampleFlyerText() string {
	return "JAZZ NIGHT at The Blue Door Lounge! Friday March 14 doors at 7pm " +
		"music 8pm til late. 2145 W Armitage Ave, Chicago. $15 cover, 21+. " +
		"Featuring the Marcus Reed Quartet."
}
