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

package api

import (
	"time"

	"github.com/aegis-cardano/aegis/decoder"
	"github.com/aegis-cardano/aegis/facts"
	"github.com/aegis-cardano/aegis/risk"
)

// ErrorResponse is the error body returned by all endpoints.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Network string `json:"network"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// AddressFactsJson carries caller-supplied address facts.
type AddressFactsJson struct {
	AgeSeconds          uint64            `json:"age_seconds"`
	TxCount             uint64            `json:"tx_count"`
	LargestTxLovelace   uint64            `json:"largest_tx_lovelace"`
	FlaggedAssociations map[string]string `json:"flagged_associations,omitempty"`
}

func (f *AddressFactsJson) toFacts(address string) *facts.AddressFacts {
	if f == nil {
		return nil
	}
	return &facts.AddressFacts{
		Address:             address,
		Age:                 time.Duration(f.AgeSeconds) * time.Second, //nolint:gosec
		TxCount:             f.TxCount,
		LargestTxLovelace:   f.LargestTxLovelace,
		FlaggedAssociations: f.FlaggedAssociations,
	}
}

// AssetFactsJson carries caller-supplied asset policy facts.
type AssetFactsJson struct {
	MintCount           uint64          `json:"mint_count"`
	MetadataComplete    bool            `json:"metadata_complete"`
	DeclaredUnique      bool            `json:"declared_unique"`
	VerificationSources map[string]bool `json:"verification_sources,omitempty"`
}

func (f *AssetFactsJson) toFacts(policyId string) *facts.AssetFacts {
	if f == nil {
		return nil
	}
	return &facts.AssetFacts{
		PolicyId:            policyId,
		MintCount:           f.MintCount,
		MetadataComplete:    f.MetadataComplete,
		DeclaredUnique:      f.DeclaredUnique,
		VerificationSources: f.VerificationSources,
	}
}

// DecodeRequest is the body for POST /api/v1/transaction/decode.
type DecodeRequest struct {
	TxCbor string `json:"tx_cbor"`
}

// AnalyzeRequest is the body for POST /api/v1/transaction/analyze.
// Facts maps are keyed by address and policy id; entries missing for
// referenced subjects are fetched from the facts provider when one is
// configured.
type AnalyzeRequest struct {
	TxCbor       string                       `json:"tx_cbor"`
	AddressFacts map[string]*AddressFactsJson `json:"address_facts,omitempty"`
	AssetFacts   map[string]*AssetFactsJson   `json:"asset_facts,omitempty"`
}

// AddressCheckRequest is the body for POST /api/v1/address/check.
type AddressCheckRequest struct {
	Address string            `json:"address"`
	Facts   *AddressFactsJson `json:"facts,omitempty"`
}

// BatchAddressCheckRequest is the body for
// POST /api/v1/address/check/batch. Facts is keyed by address;
// addresses without an entry fall back to the facts provider.
type BatchAddressCheckRequest struct {
	Addresses []string                     `json:"addresses"`
	Facts     map[string]*AddressFactsJson `json:"facts,omitempty"`
}

// AssetVerifyRequest is the body for POST /api/v1/asset/verify.
type AssetVerifyRequest struct {
	PolicyId string          `json:"policy_id"`
	Facts    *AssetFactsJson `json:"facts,omitempty"`
}

// TransactionInputJson represents one consumed UTxO reference.
type TransactionInputJson struct {
	TxId  string `json:"tx_id"`
	Index uint32 `json:"index"`
}

// TransactionOutputJson represents one produced output.
type TransactionOutputJson struct {
	Address  string            `json:"address"`
	Lovelace uint64            `json:"lovelace"`
	Assets   map[string]uint64 `json:"assets,omitempty"`
}

// ScriptPermissionJson represents one script spending permission.
type ScriptPermissionJson struct {
	PolicyId   string   `json:"policy_id"`
	AssetNames []string `json:"asset_names,omitempty"`
	Unbounded  bool     `json:"unbounded"`
}

// TransactionJson is the decoded transaction model returned by the
// decode and analyze endpoints.
type TransactionJson struct {
	Hash          string                  `json:"hash"`
	Inputs        []TransactionInputJson  `json:"inputs"`
	Outputs       []TransactionOutputJson `json:"outputs"`
	Fee           uint64                  `json:"fee"`
	ValidityStart *uint64                 `json:"validity_start"`
	ValidityEnd   *uint64                 `json:"validity_end"`
	Permissions   []ScriptPermissionJson  `json:"permissions,omitempty"`
	HasMetadata   bool                    `json:"has_metadata"`
}

func transactionToJson(tx *decoder.DecodedTransaction) TransactionJson {
	out := TransactionJson{
		Hash:        tx.Hash.String(),
		Inputs:      make([]TransactionInputJson, 0, len(tx.Inputs)),
		Outputs:     make([]TransactionOutputJson, 0, len(tx.Outputs)),
		Fee:         tx.Fee,
		HasMetadata: tx.Metadata != nil,
	}
	// Validity is nil for transactions without a TTL or start slot
	if tx.Validity != nil {
		out.ValidityStart = tx.Validity.NotBefore
		out.ValidityEnd = tx.Validity.NotAfter
	}
	for _, input := range tx.Inputs {
		out.Inputs = append(out.Inputs, TransactionInputJson{
			TxId:  input.TxId.String(),
			Index: input.Index,
		})
	}
	for _, output := range tx.Outputs {
		assets := make(map[string]uint64)
		for assetId, qty := range output.Assets {
			if assetId == decoder.LovelaceAssetId {
				continue
			}
			assets[assetId] = qty
		}
		if len(assets) == 0 {
			assets = nil
		}
		out.Outputs = append(out.Outputs, TransactionOutputJson{
			Address:  output.Address,
			Lovelace: output.Lovelace(),
			Assets:   assets,
		})
	}
	for _, perm := range tx.Permissions {
		out.Permissions = append(out.Permissions, ScriptPermissionJson{
			PolicyId:   perm.PolicyId,
			AssetNames: perm.AssetNames,
			Unbounded:  perm.Unbounded(),
		})
	}
	return out
}

// VerdictJson is the scored verdict returned by the analyze endpoint.
type VerdictJson struct {
	Subject        string        `json:"subject"`
	Score          int           `json:"score"`
	RiskLevel      string        `json:"risk_level"`
	Factors        []risk.Factor `json:"factors"`
	IncompleteData bool          `json:"incomplete_data"`
	Recommendation string        `json:"recommendation"`
}

func verdictToJson(v *risk.Verdict) VerdictJson {
	factors := v.Factors
	if factors == nil {
		factors = []risk.Factor{}
	}
	return VerdictJson{
		Subject:        v.Subject,
		Score:          v.Score,
		RiskLevel:      string(v.Tier),
		Factors:        factors,
		IncompleteData: v.HasIncompleteData(),
		Recommendation: recommendationForTier(v.Tier),
	}
}

// DecodeResponse is returned by POST /api/v1/transaction/decode.
type DecodeResponse struct {
	Transaction TransactionJson `json:"transaction"`
	RequestedAt time.Time       `json:"requested_at"`
}

// AnalyzeResponse is returned by POST /api/v1/transaction/analyze.
type AnalyzeResponse struct {
	Transaction TransactionJson `json:"transaction"`
	Verdict     VerdictJson     `json:"verdict"`
	Explanation string          `json:"explanation"`
	RequestedAt time.Time       `json:"requested_at"`
}

// AddressCheckResponse is returned by POST /api/v1/address/check.
type AddressCheckResponse struct {
	Address         string        `json:"address"`
	ReputationScore int           `json:"reputation_score"`
	RiskLevel       string        `json:"risk_level"`
	Factors         []risk.Factor `json:"factors"`
	Recommendation  string        `json:"recommendation"`
	RequestedAt     time.Time     `json:"requested_at"`
}

// AddressCheckResult is one entry in a batch check response. Error is
// set, and the scoring fields zeroed, when the address failed
// validation.
type AddressCheckResult struct {
	Address         string        `json:"address"`
	ReputationScore int           `json:"reputation_score"`
	RiskLevel       string        `json:"risk_level,omitempty"`
	Factors         []risk.Factor `json:"factors,omitempty"`
	Recommendation  string        `json:"recommendation,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// BatchAddressCheckResponse is returned by
// POST /api/v1/address/check/batch.
type BatchAddressCheckResponse struct {
	Results          []AddressCheckResult `json:"results"`
	TotalAddresses   int                  `json:"total_addresses"`
	SuccessfulChecks int                  `json:"successful_checks"`
	FailedChecks     int                  `json:"failed_checks"`
	RequestedAt      time.Time            `json:"requested_at"`
}

// AssetVerifyResponse is returned by POST /api/v1/asset/verify.
type AssetVerifyResponse struct {
	PolicyId    string    `json:"policy_id"`
	Status      string    `json:"status"`
	Reasons     []string  `json:"reasons"`
	RequestedAt time.Time `json:"requested_at"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	AnalysesCompleted uint64    `json:"analyses_completed"`
	DecodeFailures    uint64    `json:"decode_failures"`
	CriticalVerdicts  uint64    `json:"critical_verdicts"`
	Timestamp         time.Time `json:"timestamp"`
}

func recommendationForTier(tier risk.Tier) string {
	switch tier {
	case risk.TierCritical:
		return "do not sign this transaction"
	case risk.TierHigh:
		return "proceed with extreme caution"
	case risk.TierMedium:
		return "review the flagged factors before proceeding"
	default:
		return "no significant risk indicators found"
	}
}
