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

package risk

import (
	"testing"
	"time"

	"github.com/aegis-cardano/aegis/facts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "addr1test"

func cleanAddressFacts() *facts.AddressFacts {
	return &facts.AddressFacts{
		Address:           testAddress,
		Age:               30 * 24 * time.Hour,
		TxCount:           250,
		LargestTxLovelace: 100_000_000,
	}
}

func TestScoreAddressCleanHistory(t *testing.T) {
	cfg := DefaultScoringConfig()
	score, factors := ScoreAddress(&cfg, testAddress, cleanAddressFacts())
	// The clean-history bonus is negative and clamps to zero
	assert.Equal(t, 0, score)
	require.Len(t, factors, 1)
	assert.Equal(t, CategoryAgeVolume, factors[0].Category)
	assert.Equal(t, cfg.CleanHistoryWeight, factors[0].Weight)
}

func TestScoreAddressNoFacts(t *testing.T) {
	cfg := DefaultScoringConfig()
	score, factors := ScoreAddress(&cfg, testAddress, nil)
	assert.Equal(t, 0, score)
	require.Len(t, factors, 1)
	assert.Equal(t, CategoryIncompleteData, factors[0].Category)
	assert.Equal(t, 0, factors[0].Weight)
	assert.Contains(t, factors[0].Reason, testAddress)
}

func TestScoreAddressFlaggedAndYoung(t *testing.T) {
	cfg := DefaultScoringConfig()
	af := &facts.AddressFacts{
		Address: testAddress,
		Age:     2 * time.Hour,
		TxCount: 10,
		FlaggedAssociations: map[string]string{
			"drainer-contract": "known wallet drainer",
		},
	}
	score, factors := ScoreAddress(&cfg, testAddress, af)
	assert.Equal(t, cfg.FlagWeight+cfg.AgeWeight, score)
	require.Len(t, factors, 2)
	// Fixed rule-table reporting order: flags before age
	assert.Equal(t, CategoryFlaggedAssociation, factors[0].Category)
	assert.Equal(t, CategoryAgeVolume, factors[1].Category)
	assert.Contains(t, factors[0].Reason, "drainer-contract")
}

func TestScoreAddressDrainPattern(t *testing.T) {
	cfg := DefaultScoringConfig()
	af := &facts.AddressFacts{
		Address:           testAddress,
		Age:               30 * 24 * time.Hour,
		TxCount:           2,
		LargestTxLovelace: 20_000_000_000,
	}
	score, factors := ScoreAddress(&cfg, testAddress, af)
	assert.Equal(t, cfg.DrainWeight, score)
	require.Len(t, factors, 1)
	assert.Equal(t, cfg.DrainWeight, factors[0].Weight)
	assert.Contains(t, factors[0].Reason, "2 transactions")
}

func TestScoreAddressFlagsSorted(t *testing.T) {
	cfg := DefaultScoringConfig()
	af := cleanAddressFacts()
	af.FlaggedAssociations = map[string]string{
		"zeta": "z",
		"alfa": "a",
		"mike": "m",
	}
	_, factors := ScoreAddress(&cfg, testAddress, af)
	require.Len(t, factors, 3)
	assert.Contains(t, factors[0].Reason, "alfa")
	assert.Contains(t, factors[1].Reason, "mike")
	assert.Contains(t, factors[2].Reason, "zeta")
}

func TestScoreAddressMonotonicity(t *testing.T) {
	// Adding a negative signal never lowers the score
	cfg := DefaultScoringConfig()
	af := cleanAddressFacts()
	base, _ := ScoreAddress(&cfg, testAddress, af)

	af.FlaggedAssociations = map[string]string{"flag": "bad"}
	flagged, _ := ScoreAddress(&cfg, testAddress, af)
	assert.GreaterOrEqual(t, flagged, base)

	af.Age = time.Hour
	flaggedYoung, _ := ScoreAddress(&cfg, testAddress, af)
	assert.GreaterOrEqual(t, flaggedYoung, flagged)
}

func TestScoreAddressClampUpper(t *testing.T) {
	cfg := DefaultScoringConfig()
	af := &facts.AddressFacts{
		Address:           testAddress,
		Age:               time.Hour,
		TxCount:           1,
		LargestTxLovelace: 20_000_000_000,
		FlaggedAssociations: map[string]string{
			"one": "a", "two": "b", "three": "c",
		},
	}
	score, _ := ScoreAddress(&cfg, testAddress, af)
	assert.Equal(t, 100, score)
}
