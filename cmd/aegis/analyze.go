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
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aegis-cardano/aegis"
	"github.com/aegis-cardano/aegis/internal/config"
	"github.com/spf13/cobra"
)

func analyzeRun(_ *cobra.Command, args []string, cfg *config.Config) {
	logger := commonRun()

	txCbor := ""
	if len(args) > 0 {
		txCbor = args[0]
	} else {
		// Read hex from stdin when no argument is given
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			slog.Error("failed to read stdin: " + err.Error())
			os.Exit(1)
		}
		txCbor = string(buf)
	}
	data, err := hex.DecodeString(strings.TrimSpace(txCbor))
	if err != nil {
		slog.Error("transaction is not valid hex: " + err.Error())
		os.Exit(1)
	}

	engine, err := aegis.NewEngine(
		aegis.NewConfig(
			aegis.WithLogger(logger),
			aegis.WithScoringConfig(cfg.Scoring),
			aegis.WithMaxTxSize(cfg.MaxTxBytes),
			aegis.WithMaxDepth(cfg.MaxDepth),
		),
	)
	if err != nil {
		slog.Error("failed to create engine: " + err.Error())
		os.Exit(1)
	}

	// One-shot analysis with no external facts. The verdict reflects
	// transaction structure only and carries an incomplete-data caveat
	// when external subjects are referenced.
	result, err := engine.AnalyzeTransaction(data, nil, nil)
	if err != nil {
		slog.Error("analysis failed: " + err.Error())
		os.Exit(1)
	}
	fmt.Print(result.Explanation)
}

func analyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [tx-cbor-hex]",
		Short: "Analyze a single transaction from hex CBOR",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			analyzeRun(cmd, args, cfg)
		},
	}
	return cmd
}
