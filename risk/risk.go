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

// Package risk computes deterministic, explainable risk verdicts for
// Cardano transactions, addresses, and native assets from externally
// supplied facts. All scoring rules are data-driven configuration so
// the rule set can be extended without touching aggregation logic.
package risk

import (
	"fmt"
	"time"
)

// Category classifies a risk factor. The order of the categories in a
// ScoringConfig's priority list is the tie-break contract for factor
// ranking.
type Category string

const (
	CategoryPermissionScope    Category = "script-permission-scope"
	CategoryFlaggedAssociation Category = "flagged-association"
	CategoryAssetVerdict       Category = "asset-verdict"
	CategoryHeuristicShape     Category = "heuristic-shape"
	CategoryAgeVolume          Category = "age-volume"
	CategoryIncompleteData     Category = "incomplete-data"
)

// Factor is a single contributing signal in a verdict. Weight is in
// [-100, 100]; negative weights reduce risk.
type Factor struct {
	Category Category `json:"category"`
	Weight   int      `json:"weight"`
	Reason   string   `json:"reason"`
}

// Tier is the severity tier derived from an aggregate score
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Verdict is the engine's structured output: the subject being scored
// (transaction hash, address, or policy id), the clamped aggregate
// score, its severity tier, and the ranked contributing factors.
type Verdict struct {
	Subject string   `json:"subject"`
	Score   int      `json:"score"`
	Tier    Tier     `json:"tier"`
	Factors []Factor `json:"factors"`
}

// TopFactor returns the highest-ranked factor, or nil when the verdict
// has none
func (v *Verdict) TopFactor() *Factor {
	if len(v.Factors) == 0 {
		return nil
	}
	return &v.Factors[0]
}

// HasIncompleteData returns true when any referenced entity was
// excluded from scoring for lack of facts
func (v *Verdict) HasIncompleteData() bool {
	for _, factor := range v.Factors {
		if factor.Category == CategoryIncompleteData {
			return true
		}
	}
	return false
}

// InvalidThresholdError is returned at startup when a scoring config
// value is out of range
type InvalidThresholdError struct {
	Field string
	Value int
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf(
		"invalid threshold for %s: %d",
		e.Field,
		e.Value,
	)
}

// ScoringConfig holds every weight, threshold, and priority used by the
// scoring rules. It is loaded once at process start and treated as
// read-only afterward.
type ScoringConfig struct {
	// Address reputation rules
	AgeThreshold       time.Duration `yaml:"ageThreshold"       split_words:"true"`
	AgeWeight          int           `yaml:"ageWeight"          split_words:"true"`
	FlagWeight         int           `yaml:"flagWeight"         split_words:"true"`
	DrainTxCountMax    uint64        `yaml:"drainTxCountMax"    split_words:"true"`
	DrainLovelaceMin   uint64        `yaml:"drainLovelaceMin"   split_words:"true"`
	DrainWeight        int           `yaml:"drainWeight"        split_words:"true"`
	CleanHistoryWeight int           `yaml:"cleanHistoryWeight" split_words:"true"`

	// Asset verdict weights
	SuspiciousAssetWeight int    `yaml:"suspiciousAssetWeight" split_words:"true"`
	UnverifiedAssetWeight int    `yaml:"unverifiedAssetWeight" split_words:"true"`
	VerifiedAssetWeight   int    `yaml:"verifiedAssetWeight"   split_words:"true"`
	FungibleMintCap       uint64 `yaml:"fungibleMintCap"       split_words:"true"`

	// Transaction shape heuristics
	UnboundedPermissionWeight int `yaml:"unboundedPermissionWeight" split_words:"true"`
	BoundedPermissionWeight   int `yaml:"boundedPermissionWeight"   split_words:"true"`
	SweepWeight               int `yaml:"sweepWeight"               split_words:"true"`

	// Severity tier thresholds: scores at or above each value map to
	// that tier, below MediumThreshold is TierLow
	MediumThreshold   int `yaml:"mediumThreshold"   split_words:"true"`
	HighThreshold     int `yaml:"highThreshold"     split_words:"true"`
	CriticalThreshold int `yaml:"criticalThreshold" split_words:"true"`

	// CategoryPriority is the tie-break order for factor ranking,
	// highest priority first
	CategoryPriority []Category `yaml:"categoryPriority" split_words:"true"`
}

// DefaultScoringConfig returns the calibrated default rule set
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		AgeThreshold:              24 * time.Hour,
		AgeWeight:                 40,
		FlagWeight:                50,
		DrainTxCountMax:           3,
		DrainLovelaceMin:          10_000_000_000,
		DrainWeight:               25,
		CleanHistoryWeight:        -10,
		SuspiciousAssetWeight:     40,
		UnverifiedAssetWeight:     10,
		VerifiedAssetWeight:       -5,
		FungibleMintCap:           10_000,
		UnboundedPermissionWeight: 60,
		BoundedPermissionWeight:   15,
		SweepWeight:               25,
		MediumThreshold:           20,
		HighThreshold:             50,
		CriticalThreshold:         80,
		CategoryPriority: []Category{
			CategoryPermissionScope,
			CategoryFlaggedAssociation,
			CategoryAssetVerdict,
			CategoryHeuristicShape,
			CategoryAgeVolume,
			CategoryIncompleteData,
		},
	}
}

// Validate checks that all weights and thresholds are within their
// legal ranges. A config that fails validation must be rejected at
// process start.
func (c *ScoringConfig) Validate() error {
	weights := map[string]int{
		"ageWeight":                 c.AgeWeight,
		"flagWeight":                c.FlagWeight,
		"drainWeight":               c.DrainWeight,
		"cleanHistoryWeight":        c.CleanHistoryWeight,
		"suspiciousAssetWeight":     c.SuspiciousAssetWeight,
		"unverifiedAssetWeight":     c.UnverifiedAssetWeight,
		"verifiedAssetWeight":       c.VerifiedAssetWeight,
		"unboundedPermissionWeight": c.UnboundedPermissionWeight,
		"boundedPermissionWeight":   c.BoundedPermissionWeight,
		"sweepWeight":               c.SweepWeight,
	}
	for name, weight := range weights {
		if weight < -100 || weight > 100 {
			return &InvalidThresholdError{Field: name, Value: weight}
		}
	}
	if c.MediumThreshold <= 0 || c.MediumThreshold > 100 {
		return &InvalidThresholdError{
			Field: "mediumThreshold",
			Value: c.MediumThreshold,
		}
	}
	if c.HighThreshold <= c.MediumThreshold || c.HighThreshold > 100 {
		return &InvalidThresholdError{
			Field: "highThreshold",
			Value: c.HighThreshold,
		}
	}
	if c.CriticalThreshold <= c.HighThreshold || c.CriticalThreshold > 100 {
		return &InvalidThresholdError{
			Field: "criticalThreshold",
			Value: c.CriticalThreshold,
		}
	}
	return nil
}

// TierForScore maps a clamped score to its severity tier
func (c *ScoringConfig) TierForScore(score int) Tier {
	switch {
	case score >= c.CriticalThreshold:
		return TierCritical
	case score >= c.HighThreshold:
		return TierHigh
	case score >= c.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// categoryPriority returns the rank of a category in the tie-break
// order, lower is higher priority. Unknown categories sort last.
func (c *ScoringConfig) categoryPriority(cat Category) int {
	for idx, p := range c.CategoryPriority {
		if p == cat {
			return idx
		}
	}
	return len(c.CategoryPriority)
}

// clampScore clamps an aggregate score to [0, 100]
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
