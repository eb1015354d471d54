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

// Package aegis is the transaction decoding and risk-scoring engine.
// Each request is independent and stateless: the engine holds no
// mutable shared state beyond read-only configuration, so arbitrarily
// many requests may run concurrently without locking.
package aegis

import (
	"fmt"
	"log/slog"

	"github.com/aegis-cardano/aegis/decoder"
	"github.com/aegis-cardano/aegis/event"
	"github.com/aegis-cardano/aegis/facts"
	"github.com/aegis-cardano/aegis/risk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Engine struct {
	config  Config
	decoder *decoder.Decoder
	logger  *slog.Logger
	metrics struct {
		analysesTotal  prometheus.Counter
		decodeFailures prometheus.Counter
		verdictsByTier *prometheus.CounterVec
	}
}

// AnalysisResult bundles the outputs of a full transaction analysis
type AnalysisResult struct {
	Transaction *decoder.DecodedTransaction
	Verdict     *risk.Verdict
	Explanation string
}

// NewEngine creates a risk engine from the given config
func NewEngine(config Config) (*Engine, error) {
	if err := config.scoring.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	d, err := decoder.New(config.maxTxBytes, config.maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	e := &Engine{
		config:  config,
		decoder: d,
		logger:  config.logger,
	}
	if config.promRegistry != nil {
		promautoFactory := promauto.With(config.promRegistry)
		e.metrics.analysesTotal = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "aegis_analyses_total",
				Help: "total analyses performed",
			},
		)
		e.metrics.decodeFailures = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "aegis_decode_failures_total",
				Help: "total transaction decode failures",
			},
		)
		e.metrics.verdictsByTier = promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_verdicts_total",
				Help: "total verdicts by severity tier",
			},
			[]string{"tier"},
		)
	}
	return e, nil
}

// DecodeTransaction parses raw transaction CBOR into the typed model
func (e *Engine) DecodeTransaction(
	data []byte,
) (*decoder.DecodedTransaction, error) {
	tx, err := e.decoder.Decode(data)
	if err != nil {
		if e.metrics.decodeFailures != nil {
			e.metrics.decodeFailures.Inc()
		}
		if e.config.eventBus != nil {
			e.config.eventBus.Publish(
				event.DecodeFailedEventType,
				event.NewEvent(
					event.DecodeFailedEventType,
					event.DecodeFailedEvent{Reason: err.Error()},
				),
			)
		}
		return nil, err
	}
	return tx, nil
}

// VerifyAsset classifies an asset policy from its facts snapshot
func (e *Engine) VerifyAsset(
	policyId string,
	assetFacts *facts.AssetFacts,
) risk.AssetVerdict {
	return risk.VerifyAsset(&e.config.scoring, policyId, assetFacts)
}

// ScoreAddress computes the reputation score for an address from its
// facts snapshot
func (e *Engine) ScoreAddress(
	address string,
	addrFacts *facts.AddressFacts,
) (int, []risk.Factor) {
	return risk.ScoreAddress(&e.config.scoring, address, addrFacts)
}

// TierForScore maps a score to its severity tier under the engine's
// scoring thresholds
func (e *Engine) TierForScore(score int) risk.Tier {
	return e.config.scoring.TierForScore(score)
}

// BuildVerdict aggregates decoded structure and external facts into a
// verdict. The transaction may be nil for direct address/asset checks.
func (e *Engine) BuildVerdict(
	tx *decoder.DecodedTransaction,
	addrFacts map[string]*facts.AddressFacts,
	assetFacts map[string]*facts.AssetFacts,
) *risk.Verdict {
	verdict := risk.BuildVerdict(&e.config.scoring, tx, addrFacts, assetFacts)
	e.recordVerdict(verdict)
	return verdict
}

// Explain renders a verdict into a deterministic plain-language summary
func (e *Engine) Explain(
	tx *decoder.DecodedTransaction,
	verdict *risk.Verdict,
) string {
	return risk.Explain(tx, verdict)
}

// AnalyzeTransaction runs the full pipeline: decode, aggregate, and
// explain. Facts for referenced entities are supplied by the caller;
// missing facts downgrade to an incomplete-data caveat rather than
// failing the request.
func (e *Engine) AnalyzeTransaction(
	data []byte,
	addrFacts map[string]*facts.AddressFacts,
	assetFacts map[string]*facts.AssetFacts,
) (*AnalysisResult, error) {
	tx, err := e.DecodeTransaction(data)
	if err != nil {
		return nil, err
	}
	verdict := e.BuildVerdict(tx, addrFacts, assetFacts)
	e.logger.Debug(
		"analyzed transaction",
		"component", "engine",
		"tx_hash", verdict.Subject,
		"score", verdict.Score,
		"tier", verdict.Tier,
	)
	return &AnalysisResult{
		Transaction: tx,
		Verdict:     verdict,
		Explanation: risk.Explain(tx, verdict),
	}, nil
}

func (e *Engine) recordVerdict(verdict *risk.Verdict) {
	if e.metrics.analysesTotal != nil {
		e.metrics.analysesTotal.Inc()
	}
	if e.metrics.verdictsByTier != nil {
		e.metrics.verdictsByTier.WithLabelValues(string(verdict.Tier)).Inc()
	}
	if e.config.eventBus != nil {
		e.config.eventBus.Publish(
			event.AnalysisCompletedEventType,
			event.NewEvent(
				event.AnalysisCompletedEventType,
				event.AnalysisCompletedEvent{
					Subject: verdict.Subject,
					Score:   verdict.Score,
					Tier:    string(verdict.Tier),
				},
			),
		)
	}
}
