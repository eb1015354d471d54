// Copyright 2025 Aegis Project
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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aegis-cardano/aegis/risk"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "aegis.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	BindAddr            string             `yaml:"bindAddr"            split_words:"true"`
	ApiPort             uint               `yaml:"apiPort"             split_words:"true"`
	MetricsPort         uint               `yaml:"metricsPort"         split_words:"true"`
	Network             string             `yaml:"network"`
	MaxTxBytes          int                `yaml:"maxTxBytes"          split_words:"true"`
	MaxDepth            int                `yaml:"maxDepth"            split_words:"true"`
	BlockfrostUrl       string             `yaml:"blockfrostUrl"       split_words:"true"`
	BlockfrostProjectId string             `yaml:"blockfrostProjectId" split_words:"true"`
	ShutdownTimeout     string             `yaml:"shutdownTimeout"     split_words:"true"`
	Scoring             risk.ScoringConfig `yaml:"scoring"`
}

var globalConfig = &Config{
	BindAddr:        "0.0.0.0",
	ApiPort:         8080,
	MetricsPort:     12798,
	Network:         "mainnet",
	MaxTxBytes:      16384,
	MaxDepth:        32,
	BlockfrostUrl:   "https://cardano-mainnet.blockfrost.io/api/v0",
	ShutdownTimeout: DefaultShutdownTimeout,
	Scoring:         risk.DefaultScoringConfig(),
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.aegis/aegis.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".aegis", "aegis.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/aegis/aegis.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/aegis/aegis.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("aegis", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Scoring thresholds and weights are a hard startup contract: a bad
	// rule table must never produce verdicts
	if err := globalConfig.Scoring.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	if globalConfig.MaxTxBytes <= 0 {
		return nil, fmt.Errorf(
			"invalid maxTxBytes: %d (must be positive)",
			globalConfig.MaxTxBytes,
		)
	}
	if globalConfig.MaxDepth < 4 {
		return nil, fmt.Errorf(
			"invalid maxDepth: %d (must be at least 4)",
			globalConfig.MaxDepth,
		)
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
