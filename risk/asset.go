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

// AssetStatus is the classification of a native asset policy
type AssetStatus string

const (
	AssetVerified   AssetStatus = "verified"
	AssetUnverified AssetStatus = "unverified"
	AssetSuspicious AssetStatus = "suspicious"
)

// AssetVerdict is the result of verifying an asset policy against its
// facts snapshot
type AssetVerdict struct {
	PolicyId string      `json:"policy_id"`
	Status   AssetStatus `json:"status"`
	Reasons  []string    `json:"reasons,omitempty"`
}

// VerifyAsset classifies an asset policy as verified, unverified, or
// suspicious. Pure deterministic classification over the supplied
// facts; Unverified is the honest default for unknown assets.
func VerifyAsset(
	cfg *ScoringConfig,
	policyId string,
	assetFacts *facts.AssetFacts,
) AssetVerdict {
	if assetFacts == nil {
		return AssetVerdict{
			PolicyId: policyId,
			Status:   AssetUnverified,
			Reasons: []string{
				"no verification data available for this policy",
			},
		}
	}
	var confirmed bool
	var fraudSources []string
	for source, result := range assetFacts.VerificationSources {
		if result {
			confirmed = true
		} else {
			fraudSources = append(fraudSources, source)
		}
	}
	sort.Strings(fraudSources)

	mintBound := cfg.FungibleMintCap
	if assetFacts.DeclaredUnique {
		mintBound = 1
	}

	var reasons []string
	for _, source := range fraudSources {
		reasons = append(
			reasons,
			fmt.Sprintf("flagged as fraudulent by %s", source),
		)
	}
	if !assetFacts.MetadataComplete && assetFacts.DeclaredUnique &&
		assetFacts.MintCount > 1 {
		reasons = append(
			reasons,
			fmt.Sprintf(
				"presented as unique but minted %d times with incomplete metadata",
				assetFacts.MintCount,
			),
		)
	}
	if len(reasons) > 0 {
		return AssetVerdict{
			PolicyId: policyId,
			Status:   AssetSuspicious,
			Reasons:  reasons,
		}
	}

	if assetFacts.MetadataComplete && confirmed &&
		assetFacts.MintCount <= mintBound {
		return AssetVerdict{
			PolicyId: policyId,
			Status:   AssetVerified,
		}
	}
	return AssetVerdict{
		PolicyId: policyId,
		Status:   AssetUnverified,
	}
}
