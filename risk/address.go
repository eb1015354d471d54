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
	"fmt"
	"sort"

	"github.com/aegis-cardano/aegis/facts"
)

// AddressRuleFunc evaluates one independent scoring rule against an
// address facts snapshot. Rules are order-insensitive for scoring; the
// table order below is the fixed reporting order.
type AddressRuleFunc func(
	cfg *ScoringConfig,
	addrFacts *facts.AddressFacts,
) []Factor

var addressRules = []AddressRuleFunc{
	ruleFlaggedAssociations,
	ruleAddressAge,
	ruleDrainPattern,
	ruleCleanHistory,
}

// ScoreAddress computes the reputation score for an address from its
// facts snapshot. The score is the clamped sum of all triggered rule
// weights; factors are reported in fixed rule-table order. A nil facts
// snapshot scores zero with a single incomplete-data factor.
func ScoreAddress(
	cfg *ScoringConfig,
	address string,
	addrFacts *facts.AddressFacts,
) (int, []Factor) {
	if addrFacts == nil {
		return 0, []Factor{
			{
				Category: CategoryIncompleteData,
				Weight:   0,
				Reason: fmt.Sprintf(
					"no reputation data for address %s; excluded from scoring",
					address,
				),
			},
		}
	}
	var ret []Factor
	for _, rule := range addressRules {
		ret = append(ret, rule(cfg, addrFacts)...)
	}
	score := 0
	for _, factor := range ret {
		score += factor.Weight
	}
	return clampScore(score), ret
}

// ruleFlaggedAssociations adds a fixed weight for every known flagged
// association. Tags are reported in sorted order for determinism.
func ruleFlaggedAssociations(
	cfg *ScoringConfig,
	addrFacts *facts.AddressFacts,
) []Factor {
	if len(addrFacts.FlaggedAssociations) == 0 {
		return nil
	}
	tags := make([]string, 0, len(addrFacts.FlaggedAssociations))
	for tag := range addrFacts.FlaggedAssociations {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	ret := make([]Factor, 0, len(tags))
	for _, tag := range tags {
		ret = append(ret, Factor{
			Category: CategoryFlaggedAssociation,
			Weight:   cfg.FlagWeight,
			Reason: fmt.Sprintf(
				"address is associated with %s (%s)",
				tag,
				addrFacts.FlaggedAssociations[tag],
			),
		})
	}
	return ret
}

// ruleAddressAge flags addresses younger than the configured threshold
func ruleAddressAge(
	cfg *ScoringConfig,
	addrFacts *facts.AddressFacts,
) []Factor {
	if addrFacts.Age >= cfg.AgeThreshold {
		return nil
	}
	return []Factor{
		{
			Category: CategoryAgeVolume,
			Weight:   cfg.AgeWeight,
			Reason: fmt.Sprintf(
				"address first appeared %s ago (threshold %s)",
				addrFacts.Age,
				cfg.AgeThreshold,
			),
		},
	}
}

// ruleDrainPattern flags a low transaction count combined with a large
// single-transaction value, the one-shot drain pattern
func ruleDrainPattern(
	cfg *ScoringConfig,
	addrFacts *facts.AddressFacts,
) []Factor {
	if addrFacts.TxCount > cfg.DrainTxCountMax {
		return nil
	}
	if addrFacts.LargestTxLovelace < cfg.DrainLovelaceMin {
		return nil
	}
	return []Factor{
		{
			Category: CategoryAgeVolume,
			Weight:   cfg.DrainWeight,
			Reason: fmt.Sprintf(
				"only %d transactions but a single transfer of %d lovelace",
				addrFacts.TxCount,
				addrFacts.LargestTxLovelace,
			),
		},
	}
}

// ruleCleanHistory grants a risk-reducing weight when no negative
// signal is present. The rule checks the absence conditions itself so
// it stays independent of rule evaluation order.
func ruleCleanHistory(
	cfg *ScoringConfig,
	addrFacts *facts.AddressFacts,
) []Factor {
	if len(addrFacts.FlaggedAssociations) > 0 {
		return nil
	}
	if addrFacts.Age < cfg.AgeThreshold {
		return nil
	}
	if addrFacts.TxCount <= cfg.DrainTxCountMax &&
		addrFacts.LargestTxLovelace >= cfg.DrainLovelaceMin {
		return nil
	}
	return []Factor{
		{
			Category: CategoryAgeVolume,
			Weight:   cfg.CleanHistoryWeight,
			Reason:   "no negative reputation signals",
		},
	}
}
