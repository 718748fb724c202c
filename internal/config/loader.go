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

// Package config defines the application configuration structs. This file
// implements the hierarchical loader: a base ".env.toml" file is decoded
// first, then an environment-specific ".env.<runtime>.toml" overlays it.
// The config directory and runtime name come from environment variables so
// tests and deployments select their own files.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	ConfigFileBaseName  = ".env"
	ConfigFileExtension = ".toml"
	ConfigSeparator     = "."
	EnvConfigFilePrefix = "SNAPEVENT_CONFIG_PREFIX" // directory holding the config files
	EnvConfigRuntime    = "SNAPEVENT_RUNTIME"       // runtime name, e.g. "local", "test"
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// Load decodes the base and environment-specific TOML files into cfg.
// Missing files are not an error; the defaults in NewConfig stand.
func Load(cfg *Config) error {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}

	runtime := os.Getenv(EnvConfigRuntime)
	if runtime == "" {
		runtime = "local"
	}

	baseFile := prefix + ConfigFileBaseName + ConfigFileExtension
	envFile := prefix + ConfigFileBaseName + ConfigSeparator + runtime + ConfigFileExtension

	if fileExists(baseFile) {
		if _, err := toml.DecodeFile(baseFile, cfg); err != nil {
			return err
		}
		slog.Info("loaded base configuration", "file", baseFile)
	}

	if fileExists(envFile) {
		if _, err := toml.DecodeFile(envFile, cfg); err != nil {
			return err
		}
		slog.Info("loaded environment configuration", "file", envFile, "runtime", runtime)
	}

	return nil
}
