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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aegis-cardano/aegis"
	"github.com/aegis-cardano/aegis/api"
	"github.com/aegis-cardano/aegis/event"
	"github.com/aegis-cardano/aegis/facts"
	"github.com/aegis-cardano/aegis/facts/blockfrost"
	"github.com/aegis-cardano/aegis/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveRun(_ *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun()

	shutdownTimeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil {
		slog.Error("invalid shutdown timeout: " + err.Error())
		os.Exit(1)
	}

	eventBus := event.NewEventBus(prometheus.DefaultRegisterer, logger)
	engine, err := aegis.NewEngine(
		aegis.NewConfig(
			aegis.WithLogger(logger),
			aegis.WithScoringConfig(cfg.Scoring),
			aegis.WithPrometheusRegistry(prometheus.DefaultRegisterer),
			aegis.WithEventBus(eventBus),
			aegis.WithMaxTxSize(cfg.MaxTxBytes),
			aegis.WithMaxDepth(cfg.MaxDepth),
		),
	)
	if err != nil {
		slog.Error("failed to create engine: " + err.Error())
		os.Exit(1)
	}

	var provider facts.Provider
	if cfg.BlockfrostProjectId != "" {
		apiURL := cfg.BlockfrostUrl
		if apiURL == "" {
			apiURL, err = blockfrost.ApiURLForNetwork(cfg.Network)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		}
		provider = blockfrost.NewClient(apiURL, cfg.BlockfrostProjectId)
	} else {
		logger.Info(
			"no Blockfrost project ID configured, requests must supply their own facts",
			"component", programName,
		)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	apiServer := api.New(
		api.ApiConfig{
			ListenAddress: fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
			Network:       cfg.Network,
		},
		engine,
		provider,
		eventBus,
		logger,
	)
	if err := apiServer.Start(ctx); err != nil {
		slog.Error("failed to start API server: " + err.Error())
		os.Exit(1)
	}

	metricsServer := startMetricsServer(cfg, logger)

	<-ctx.Done()
	logger.Info(
		"shutting down",
		"component", programName,
	)
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error(
			"failed to stop API server",
			"error", err,
		)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(
			"failed to stop metrics server",
			"error", err,
		)
	}
	eventBus.Stop()
}

// startMetricsServer starts the Prometheus metrics listener on the
// configured metrics port.
func startMetricsServer(
	cfg *config.Config,
	logger *slog.Logger,
) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		Handler:           metricsMux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info(
			"metrics listener started on "+metricsServer.Addr,
			"component", programName,
		)
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logger.Error(
				"metrics server error",
				"error", err,
			)
		}
	}()
	return metricsServer
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis API server",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			serveRun(cmd, args, cfg)
		},
	}
	return cmd
}
