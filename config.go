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

package aegis

import (
	"io"
	"log/slog"

	"github.com/aegis-cardano/aegis/event"
	"github.com/aegis-cardano/aegis/risk"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	eventBus     *event.EventBus
	scoring      risk.ScoringConfig
	maxTxBytes   int
	maxDepth     int
}

// ConfigOptionFunc is a type that represents functions that modify the
// engine config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new engine config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		scoring: risk.DefaultScoringConfig(),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithScoringConfig specifies the scoring rule configuration. The
// default is risk.DefaultScoringConfig()
func WithScoringConfig(scoring risk.ScoringConfig) ConfigOptionFunc {
	return func(c *Config) {
		c.scoring = scoring
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithEventBus specifies the event bus to publish analysis events on.
// The default is to not publish events.
func WithEventBus(eventBus *event.EventBus) ConfigOptionFunc {
	return func(c *Config) {
		c.eventBus = eventBus
	}
}

// WithMaxTxSize specifies the transaction byte-size ceiling for the
// decoder. The default is decoder.DefaultMaxTxBytes
func WithMaxTxSize(maxTxBytes int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxTxBytes = maxTxBytes
	}
}

// WithMaxDepth specifies the CBOR nesting depth limit for the decoder.
// The default is decoder.DefaultMaxDepth
func WithMaxDepth(maxDepth int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxDepth = maxDepth
	}
}
