// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// GoogleConfig holds OAuth2 credentials for the Gmail and Drive APIs.
// The refresh token must carry both the gmail.readonly and drive scopes.
type GoogleConfig struct {
	ClientID      string `yaml:"client_id"       validate:"required"`
	ClientSecret  string `yaml:"client_secret"   validate:"required"`
	RefreshToken  string `yaml:"refresh_token"   validate:"required"`
	DriveFolderID string `yaml:"drive_folder_id" validate:"required"`
}

// Config holds all configuration for the archiver service.
type Config struct {
	Google GoogleConfig

	// Gmail search query selecting warranty submission mail.
	SearchQuery string

	// Polling
	PollInterval time.Duration
	PollLookback time.Duration

	// Storage
	DatabaseURL string
	RedisURL    string

	// Scratch directory for downloaded documents.
	DownloadDir string

	// Server (webhook + health check)
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Google GoogleConfig `yaml:"google"`
	Gmail  struct {
		SearchQuery string `yaml:"search_query"`
	} `yaml:"gmail"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Google:       raw.Google,
		SearchQuery:  firstNonEmpty(raw.Gmail.SearchQuery, envOrDefault("GMAIL_SEARCH_QUERY", `subject:"Warranty Form"`)),
		PollInterval: envOrDefaultDuration("POLL_INTERVAL", 60*time.Second),
		PollLookback: envOrDefaultDuration("POLL_LOOKBACK", 5*time.Minute),
		DatabaseURL:  firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/warranty")),
		RedisURL:     firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		DownloadDir:  envOrDefault("DOWNLOAD_DIR", os.TempDir()),
		Port:         envOrDefaultInt("PORT", 8080),
	}

	if err := validator.New().Struct(cfg.Google); err != nil {
		return nil, fmt.Errorf("incomplete Google credentials: %w", err)
	}

	if cfg.PollLookback < cfg.PollInterval {
		// Windows must overlap or mail landing between passes is missed.
		cfg.PollLookback = 2 * cfg.PollInterval
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
