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

// Package api is the REST front-end for the risk engine.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aegis-cardano/aegis"
	"github.com/aegis-cardano/aegis/event"
	"github.com/aegis-cardano/aegis/facts"
	"github.com/aegis-cardano/aegis/risk"
)

// ApiConfig holds the listener configuration for the REST API.
type ApiConfig struct {
	ListenAddress string
	Network       string
}

// Api is the REST API server. It is a thin stateless layer over the
// engine: request facts come from the request body or the configured
// facts provider, never from server state.
type Api struct {
	config     ApiConfig
	logger     *slog.Logger
	engine     *aegis.Engine
	provider   facts.Provider
	eventBus   *event.EventBus
	httpServer *http.Server
	stats      apiStats
	statsSubs  []statsSub
	mu         sync.Mutex
}

type statsSub struct {
	eventType event.EventType
	subId     event.EventSubscriberId
}

// apiStats tracks analysis totals for GET /api/v1/stats. Counters are
// fed from the event bus so one-shot CLI analyses through the same
// engine are counted too.
type apiStats struct {
	analysesCompleted atomic.Uint64
	decodeFailures    atomic.Uint64
	criticalVerdicts  atomic.Uint64
}

// New creates a new API server instance. The facts provider and event
// bus may be nil; without a provider, requests must carry their own
// facts.
func New(
	cfg ApiConfig,
	engine *aegis.Engine,
	provider facts.Provider,
	eventBus *event.EventBus,
	logger *slog.Logger,
) *Api {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	return &Api{
		config:   cfg,
		logger:   logger,
		engine:   engine,
		provider: provider,
		eventBus: eventBus,
	}
}

// Start starts the HTTP server in a background goroutine.
func (a *Api) Start(
	ctx context.Context,
) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", a.handleRoot)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc(
		"POST /api/v1/transaction/decode",
		a.handleDecodeTransaction,
	)
	mux.HandleFunc(
		"POST /api/v1/transaction/analyze",
		a.handleAnalyzeTransaction,
	)
	mux.HandleFunc(
		"POST /api/v1/address/check",
		a.handleAddressCheck,
	)
	mux.HandleFunc(
		"POST /api/v1/address/check/batch",
		a.handleAddressCheckBatch,
	)
	mux.HandleFunc(
		"POST /api/v1/asset/verify",
		a.handleAssetVerify,
	)
	mux.HandleFunc(
		"GET /api/v1/stats",
		a.handleStats,
	)

	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.subscribeStats()
	a.mu.Unlock()

	// Start the server with deterministic error detection
	if err := a.startServer(server); err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"API listener started on " + a.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (a *Api) Stop(
	ctx context.Context,
) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	subs := a.statsSubs
	a.statsSubs = nil
	a.mu.Unlock()

	if a.eventBus != nil {
		for _, sub := range subs {
			a.eventBus.Unsubscribe(sub.eventType, sub.subId)
		}
	}
	if srv != nil {
		a.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer starts the HTTP server with deterministic error
// detection. It binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine.
func (a *Api) startServer(
	server *http.Server,
) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}

// subscribeStats wires the stats counters to analysis events. Must be
// called with the mutex held.
func (a *Api) subscribeStats() {
	if a.eventBus == nil {
		return
	}
	completedSub := a.eventBus.SubscribeFunc(
		event.AnalysisCompletedEventType,
		func(evt event.Event) {
			a.stats.analysesCompleted.Add(1)
			if data, ok := evt.Data.(event.AnalysisCompletedEvent); ok {
				if data.Tier == string(risk.TierCritical) {
					a.stats.criticalVerdicts.Add(1)
				}
			}
		},
	)
	failedSub := a.eventBus.SubscribeFunc(
		event.DecodeFailedEventType,
		func(_ event.Event) {
			a.stats.decodeFailures.Add(1)
		},
	)
	a.statsSubs = []statsSub{
		{event.AnalysisCompletedEventType, completedSub},
		{event.DecodeFailedEventType, failedSub},
	}
}
