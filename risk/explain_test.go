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
	"strings"
	"testing"
	"time"

	"github.com/aegis-cardano/aegis/decoder"
	"github.com/aegis-cardano/aegis/facts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAda(t *testing.T) {
	testDefs := []struct {
		lovelace uint64
		expected string
	}{
		{0, "0 ADA"},
		{1, "0.000001 ADA"},
		{1_500_000, "1.5 ADA"},
		{2_000_000, "2 ADA"},
		{170_000, "0.17 ADA"},
		{1_234_567_890, "1234.56789 ADA"},
	}
	for _, testDef := range testDefs {
		assert.Equal(
			t,
			testDef.expected,
			FormatAda(testDef.lovelace),
			"%d lovelace",
			testDef.lovelace,
		)
	}
}

func TestExplainTransaction(t *testing.T) {
	cfg := DefaultScoringConfig()
	tx := testTx()
	tx.Permissions = []decoder.ScriptPermission{
		{PolicyId: testPolicyId},
		{PolicyId: "aaaa", AssetNames: []string{"676f6c64"}},
	}
	verdict := BuildVerdict(&cfg, tx, nil, nil)
	explanation := Explain(tx, verdict)

	assert.Contains(t, explanation, "Transaction "+tx.Hash.String())
	assert.Contains(t, explanation, "output 0 sends 5 ADA to "+addrAlice)
	assert.Contains(t, explanation, "output 1 sends 2 ADA to "+addrBob)
	assert.Contains(t, explanation, "fee is 0.17 ADA")
	assert.Contains(
		t,
		explanation,
		"spend ALL tokens under policy "+testPolicyId,
	)
	assert.Contains(t, explanation, "spend 1 token(s) under policy aaaa")
	assert.Contains(t, explanation, "Risk score")
	assert.Contains(t, explanation, strings.ToUpper(string(verdict.Tier)))
	// Missing facts surface as a low-confidence note
	assert.Contains(t, explanation, "low confidence")
}

func TestExplainDeterministic(t *testing.T) {
	cfg := DefaultScoringConfig()
	tx := testTx()
	tx.Permissions = []decoder.ScriptPermission{
		{PolicyId: testPolicyId},
	}
	verdict := BuildVerdict(&cfg, tx, allCleanFacts(), nil)
	assert.Equal(t, Explain(tx, verdict), Explain(tx, verdict))
}

func TestExplainTopFactorLimit(t *testing.T) {
	// At most three ranked reasons appear, zero-weight factors never do
	cfg := DefaultScoringConfig()
	tx := testTx()
	tx.Permissions = []decoder.ScriptPermission{
		{PolicyId: testPolicyId},
		{PolicyId: "aaaa"},
	}
	addrFacts := allCleanFacts()
	addrFacts[addrAlice].FlaggedAssociations = map[string]string{
		"drainer": "known wallet drainer",
	}
	addrFacts[addrAlice].Age = time.Hour
	verdict := BuildVerdict(&cfg, tx, addrFacts, nil)
	require.Greater(t, len(verdict.Factors), maxExplainedFactors)

	explanation := Explain(tx, verdict)
	assert.Contains(t, explanation, "1. ")
	assert.Contains(t, explanation, "3. ")
	assert.NotContains(t, explanation, "4. ")
	assert.NotContains(t, explanation, "excluded from scoring")
}

func TestExplainNativeAssetCount(t *testing.T) {
	cfg := DefaultScoringConfig()
	tx := testTx()
	tx.Outputs[0].Assets[testPolicyId+".676f6c64"] = 2
	verdict := BuildVerdict(&cfg, tx, allCleanFacts(), nil)
	explanation := Explain(tx, verdict)
	assert.Contains(t, explanation, "along with 1 native asset(s)")
}

func TestExplainWithoutTransaction(t *testing.T) {
	cfg := DefaultScoringConfig()
	addrFacts := map[string]*facts.AddressFacts{
		addrAlice: {
			Address: addrAlice,
			Age:     time.Hour,
			TxCount: 5,
		},
	}
	verdict := BuildVerdict(&cfg, nil, addrFacts, nil)
	explanation := Explain(nil, verdict)
	assert.Contains(t, explanation, "Subject "+addrAlice)
	assert.Contains(t, explanation, "Risk score")
}
