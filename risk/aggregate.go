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

	"github.com/aegis-cardano/aegis/decoder"
	"github.com/aegis-cardano/aegis/facts"
)

// BuildVerdict combines decoded transaction structure, address
// reputation, and asset classification into a single verdict. Missing
// facts for a referenced entity never fail the request: the entity is
// excluded from scoring and a zero-weight incomplete-data factor is
// recorded so callers can render an explicit caveat.
//
// BuildVerdict is deterministic: identical inputs always produce
// identical verdicts, including factor order.
func BuildVerdict(
	cfg *ScoringConfig,
	tx *decoder.DecodedTransaction,
	addrFacts map[string]*facts.AddressFacts,
	assetFacts map[string]*facts.AssetFacts,
) *Verdict {
	var ret []Factor
	if tx != nil {
		ret = append(ret, shapeFactors(cfg, tx, addrFacts)...)
		ret = append(ret, transactionAddressFactors(cfg, tx, addrFacts)...)
		ret = append(ret, assetFactors(
			cfg,
			referencedPolicies(tx),
			assetFacts,
		)...)
	} else {
		// Direct address/asset scoring without a transaction
		for _, address := range sortedKeys(addrFacts) {
			_, factors := ScoreAddress(cfg, address, addrFacts[address])
			ret = append(ret, factors...)
		}
		ret = append(ret, assetFactors(
			cfg,
			sortedKeys(assetFacts),
			assetFacts,
		)...)
	}

	score := 0
	for _, factor := range ret {
		score += factor.Weight
	}
	score = clampScore(score)

	// Rank by descending absolute weight; ties break on the configured
	// category priority order. This ordering is a hard contract: the
	// top reason must be stable for identical inputs.
	sort.SliceStable(ret, func(i, j int) bool {
		wi, wj := abs(ret[i].Weight), abs(ret[j].Weight)
		if wi != wj {
			return wi > wj
		}
		return cfg.categoryPriority(ret[i].Category) <
			cfg.categoryPriority(ret[j].Category)
	})

	return &Verdict{
		Subject: verdictSubject(tx, addrFacts, assetFacts),
		Score:   score,
		Tier:    cfg.TierForScore(score),
		Factors: ret,
	}
}

// shapeFactors evaluates transaction-shape heuristics that need no
// external facts
func shapeFactors(
	cfg *ScoringConfig,
	tx *decoder.DecodedTransaction,
	addrFacts map[string]*facts.AddressFacts,
) []Factor {
	var ret []Factor
	for _, perm := range tx.Permissions {
		if perm.Unbounded() {
			ret = append(ret, Factor{
				Category: CategoryPermissionScope,
				Weight:   cfg.UnboundedPermissionWeight,
				Reason: fmt.Sprintf(
					"grants a script permission over ALL assets under policy %s",
					perm.PolicyId,
				),
			})
		} else {
			ret = append(ret, Factor{
				Category: CategoryPermissionScope,
				Weight:   cfg.BoundedPermissionWeight,
				Reason: fmt.Sprintf(
					"grants a script permission over %d assets under policy %s",
					len(perm.AssetNames),
					perm.PolicyId,
				),
			})
		}
	}
	// Single output to a previously unseen address looks like a
	// full-balance sweep
	if len(tx.Outputs) == 1 {
		address := tx.Outputs[0].Address
		af, ok := addrFacts[address]
		if !ok || af == nil || af.TxCount == 0 {
			ret = append(ret, Factor{
				Category: CategoryHeuristicShape,
				Weight:   cfg.SweepWeight,
				Reason: fmt.Sprintf(
					"entire transaction value goes to previously unseen address %s",
					address,
				),
			})
		}
	}
	return ret
}

// transactionAddressFactors folds in reputation factors for every
// output address, in transaction order with duplicates collapsed
func transactionAddressFactors(
	cfg *ScoringConfig,
	tx *decoder.DecodedTransaction,
	addrFacts map[string]*facts.AddressFacts,
) []Factor {
	var ret []Factor
	seen := make(map[string]bool, len(tx.Outputs))
	for _, output := range tx.Outputs {
		if seen[output.Address] {
			continue
		}
		seen[output.Address] = true
		af, ok := addrFacts[output.Address]
		if !ok || af == nil {
			ret = append(ret, Factor{
				Category: CategoryIncompleteData,
				Weight:   0,
				Reason: fmt.Sprintf(
					"no reputation data for address %s; excluded from scoring",
					output.Address,
				),
			})
			continue
		}
		_, factors := ScoreAddress(cfg, output.Address, af)
		ret = append(ret, factors...)
	}
	return ret
}

// assetFactors folds in verifier factors for each referenced policy
func assetFactors(
	cfg *ScoringConfig,
	policies []string,
	assetFacts map[string]*facts.AssetFacts,
) []Factor {
	var ret []Factor
	for _, policyId := range policies {
		af, ok := assetFacts[policyId]
		if !ok || af == nil {
			ret = append(ret, Factor{
				Category: CategoryIncompleteData,
				Weight:   0,
				Reason: fmt.Sprintf(
					"no asset data for policy %s; excluded from scoring",
					policyId,
				),
			})
			continue
		}
		verdict := VerifyAsset(cfg, policyId, af)
		switch verdict.Status {
		case AssetSuspicious:
			reason := fmt.Sprintf("asset policy %s is suspicious", policyId)
			if len(verdict.Reasons) > 0 {
				reason = fmt.Sprintf(
					"asset policy %s: %s",
					policyId,
					verdict.Reasons[0],
				)
			}
			ret = append(ret, Factor{
				Category: CategoryAssetVerdict,
				Weight:   cfg.SuspiciousAssetWeight,
				Reason:   reason,
			})
		case AssetUnverified:
			ret = append(ret, Factor{
				Category: CategoryAssetVerdict,
				Weight:   cfg.UnverifiedAssetWeight,
				Reason: fmt.Sprintf(
					"asset policy %s is unverified",
					policyId,
				),
			})
		case AssetVerified:
			ret = append(ret, Factor{
				Category: CategoryAssetVerdict,
				Weight:   cfg.VerifiedAssetWeight,
				Reason: fmt.Sprintf(
					"asset policy %s is verified",
					policyId,
				),
			})
		}
	}
	return ret
}

// referencedPolicies collects every policy id referenced by outputs or
// permission entries, in first-appearance order with asset ids sorted
// within each output for determinism
func referencedPolicies(tx *decoder.DecodedTransaction) []string {
	var ret []string
	seen := make(map[string]bool)
	add := func(policyId string) {
		if policyId == "" || seen[policyId] {
			return
		}
		seen[policyId] = true
		ret = append(ret, policyId)
	}
	for _, output := range tx.Outputs {
		assetIds := make([]string, 0, len(output.Assets))
		for assetId := range output.Assets {
			if assetId == decoder.LovelaceAssetId {
				continue
			}
			assetIds = append(assetIds, assetId)
		}
		sort.Strings(assetIds)
		for _, assetId := range assetIds {
			add(decoder.PolicyIdFromAssetId(assetId))
		}
	}
	for _, perm := range tx.Permissions {
		add(perm.PolicyId)
	}
	return ret
}

func verdictSubject(
	tx *decoder.DecodedTransaction,
	addrFacts map[string]*facts.AddressFacts,
	assetFacts map[string]*facts.AssetFacts,
) string {
	if tx != nil {
		return tx.Hash.String()
	}
	if len(addrFacts) == 1 && len(assetFacts) == 0 {
		return sortedKeys(addrFacts)[0]
	}
	if len(assetFacts) == 1 && len(addrFacts) == 0 {
		return sortedKeys(assetFacts)[0]
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
