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
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aegis-cardano/aegis/decoder"
	"github.com/aegis-cardano/aegis/facts"
	"github.com/aegis-cardano/aegis/internal/version"
	"github.com/aegis-cardano/aegis/risk"
)

// maxRequestBodyBytes bounds request bodies well above the largest
// hex-encoded transaction plus facts payload.
const maxRequestBodyBytes = 1 << 20

const policyIdHexLen = 56

// maxBatchAddresses caps batch check requests
const maxBatchAddresses = 100

// writeJSON writes a JSON response with the given status code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// decodeRequestBody parses a JSON request body into v. It returns
// false after writing an error response if the body is unusable.
func (a *Api) decodeRequestBody(
	w http.ResponseWriter,
	r *http.Request,
	v any,
) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid request body: "+err.Error(),
		)
		return false
	}
	return true
}

// parseTxCbor hex-decodes a transaction payload from a request. It
// returns nil after writing an error response on failure.
func (a *Api) parseTxCbor(
	w http.ResponseWriter,
	txCbor string,
) []byte {
	if txCbor == "" {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"tx_cbor is required",
		)
		return nil
	}
	data, err := hex.DecodeString(strings.TrimSpace(txCbor))
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"tx_cbor is not valid hex",
		)
		return nil
	}
	return data
}

// writeDecodeError maps decoder failures onto HTTP statuses.
func (a *Api) writeDecodeError(w http.ResponseWriter, err error) {
	var tooLargeErr *decoder.TooLargeError
	if errors.As(err, &tooLargeErr) {
		writeError(
			w,
			http.StatusRequestEntityTooLarge,
			"Request Entity Too Large",
			err.Error(),
		)
		return
	}
	writeError(
		w,
		http.StatusBadRequest,
		"Bad Request",
		err.Error(),
	)
}

func isValidAddress(address string) bool {
	if len(address) < 12 || len(address) > 128 {
		return false
	}
	return strings.HasPrefix(address, "addr") ||
		strings.HasPrefix(address, "stake")
}

func isValidPolicyId(policyId string) bool {
	if len(policyId) != policyIdHexLen {
		return false
	}
	_, err := hex.DecodeString(policyId)
	return err == nil
}

// handleRoot handles GET / and returns API metadata.
func (a *Api) handleRoot(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "aegis",
		Version: version.GetVersionString(),
		Network: a.config.Network,
	})
}

// handleHealth handles GET /health.
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleDecodeTransaction handles POST /api/v1/transaction/decode and
// returns the typed transaction model without scoring it.
func (a *Api) handleDecodeTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req DecodeRequest
	if !a.decodeRequestBody(w, r, &req) {
		return
	}
	data := a.parseTxCbor(w, req.TxCbor)
	if data == nil {
		return
	}
	tx, err := a.engine.DecodeTransaction(data)
	if err != nil {
		a.logger.Debug(
			"transaction decode rejected",
			"error", err,
		)
		a.writeDecodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DecodeResponse{
		Transaction: transactionToJson(tx),
		RequestedAt: time.Now().UTC(),
	})
}

// handleAnalyzeTransaction handles POST /api/v1/transaction/analyze
// and runs the full decode, score, explain pipeline.
func (a *Api) handleAnalyzeTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req AnalyzeRequest
	if !a.decodeRequestBody(w, r, &req) {
		return
	}
	data := a.parseTxCbor(w, req.TxCbor)
	if data == nil {
		return
	}
	tx, err := a.engine.DecodeTransaction(data)
	if err != nil {
		a.logger.Debug(
			"transaction decode rejected",
			"error", err,
		)
		a.writeDecodeError(w, err)
		return
	}

	addrFacts := make(map[string]*facts.AddressFacts)
	for address, f := range req.AddressFacts {
		addrFacts[address] = f.toFacts(address)
	}
	assetFacts := make(map[string]*facts.AssetFacts)
	for policyId, f := range req.AssetFacts {
		assetFacts[policyId] = f.toFacts(policyId)
	}
	a.fillMissingFacts(r, tx, addrFacts, assetFacts)

	verdict := a.engine.BuildVerdict(tx, addrFacts, assetFacts)
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Transaction: transactionToJson(tx),
		Verdict:     verdictToJson(verdict),
		Explanation: a.engine.Explain(tx, verdict),
		RequestedAt: time.Now().UTC(),
	})
}

// handleAddressCheck handles POST /api/v1/address/check and scores a
// single address from its facts.
func (a *Api) handleAddressCheck(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req AddressCheckRequest
	if !a.decodeRequestBody(w, r, &req) {
		return
	}
	if !isValidAddress(req.Address) {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"address is not a valid bech32 address",
		)
		return
	}
	result := a.checkAddress(r, req.Address, req.Facts)
	writeJSON(w, http.StatusOK, AddressCheckResponse{
		Address:         result.Address,
		ReputationScore: result.ReputationScore,
		RiskLevel:       result.RiskLevel,
		Factors:         result.Factors,
		Recommendation:  result.Recommendation,
		RequestedAt:     time.Now().UTC(),
	})
}

// handleAddressCheckBatch handles POST /api/v1/address/check/batch and
// scores up to maxBatchAddresses addresses in one request. Invalid
// addresses are reported per entry instead of failing the batch.
func (a *Api) handleAddressCheckBatch(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req BatchAddressCheckRequest
	if !a.decodeRequestBody(w, r, &req) {
		return
	}
	if len(req.Addresses) == 0 ||
		len(req.Addresses) > maxBatchAddresses {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			fmt.Sprintf(
				"addresses must contain between 1 and %d entries",
				maxBatchAddresses,
			),
		)
		return
	}
	results := make([]AddressCheckResult, 0, len(req.Addresses))
	var failed int
	for _, address := range req.Addresses {
		if !isValidAddress(address) {
			failed++
			results = append(results, AddressCheckResult{
				Address: address,
				Error:   "address is not a valid bech32 address",
			})
			continue
		}
		results = append(
			results,
			a.checkAddress(r, address, req.Facts[address]),
		)
	}
	writeJSON(w, http.StatusOK, BatchAddressCheckResponse{
		Results:          results,
		TotalAddresses:   len(req.Addresses),
		SuccessfulChecks: len(req.Addresses) - failed,
		FailedChecks:     failed,
		RequestedAt:      time.Now().UTC(),
	})
}

// checkAddress resolves facts for one validated address and scores it.
// Supplied facts win over the provider; a fetch failure leaves facts
// nil so the score carries an incomplete-data factor.
func (a *Api) checkAddress(
	r *http.Request,
	address string,
	supplied *AddressFactsJson,
) AddressCheckResult {
	addrFacts := supplied.toFacts(address)
	if addrFacts == nil && a.provider != nil {
		fetched, err := a.provider.AddressFacts(r.Context(), address)
		if err != nil {
			a.logger.Warn(
				"failed to fetch address facts",
				"address", address,
				"error", err,
			)
		} else {
			addrFacts = fetched
		}
	}
	score, factors := a.engine.ScoreAddress(address, addrFacts)
	if factors == nil {
		factors = []risk.Factor{}
	}
	tier := a.engine.TierForScore(score)
	return AddressCheckResult{
		Address:         address,
		ReputationScore: score,
		RiskLevel:       string(tier),
		Factors:         factors,
		Recommendation:  recommendationForTier(tier),
	}
}

// handleAssetVerify handles POST /api/v1/asset/verify and classifies
// an asset policy.
func (a *Api) handleAssetVerify(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req AssetVerifyRequest
	if !a.decodeRequestBody(w, r, &req) {
		return
	}
	if !isValidPolicyId(req.PolicyId) {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"policy_id must be 56 hex characters",
		)
		return
	}
	assetFacts := req.Facts.toFacts(req.PolicyId)
	if assetFacts == nil && a.provider != nil {
		fetched, err := a.provider.AssetFacts(r.Context(), req.PolicyId)
		if err != nil {
			a.logger.Warn(
				"failed to fetch asset facts",
				"policy_id", req.PolicyId,
				"error", err,
			)
		} else {
			assetFacts = fetched
		}
	}
	verdict := a.engine.VerifyAsset(req.PolicyId, assetFacts)
	reasons := verdict.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	writeJSON(w, http.StatusOK, AssetVerifyResponse{
		PolicyId:    req.PolicyId,
		Status:      string(verdict.Status),
		Reasons:     reasons,
		RequestedAt: time.Now().UTC(),
	})
}

// handleStats handles GET /api/v1/stats.
func (a *Api) handleStats(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, StatsResponse{
		AnalysesCompleted: a.stats.analysesCompleted.Load(),
		DecodeFailures:    a.stats.decodeFailures.Load(),
		CriticalVerdicts:  a.stats.criticalVerdicts.Load(),
		Timestamp:         time.Now().UTC(),
	})
}

// fillMissingFacts fetches facts for transaction subjects the request
// did not supply. Fetch failures are logged and left missing so the
// verdict carries an incomplete-data caveat instead of failing.
func (a *Api) fillMissingFacts(
	r *http.Request,
	tx *decoder.DecodedTransaction,
	addrFacts map[string]*facts.AddressFacts,
	assetFacts map[string]*facts.AssetFacts,
) {
	if a.provider == nil {
		return
	}
	for _, output := range tx.Outputs {
		if _, ok := addrFacts[output.Address]; ok {
			continue
		}
		fetched, err := a.provider.AddressFacts(r.Context(), output.Address)
		if err != nil {
			a.logger.Warn(
				"failed to fetch address facts",
				"address", output.Address,
				"error", err,
			)
			continue
		}
		addrFacts[output.Address] = fetched
	}
	for _, policyId := range transactionPolicies(tx) {
		if _, ok := assetFacts[policyId]; ok {
			continue
		}
		fetched, err := a.provider.AssetFacts(r.Context(), policyId)
		if err != nil {
			a.logger.Warn(
				"failed to fetch asset facts",
				"policy_id", policyId,
				"error", err,
			)
			continue
		}
		assetFacts[policyId] = fetched
	}
}

// transactionPolicies returns the distinct asset policies a
// transaction references through outputs and permissions.
func transactionPolicies(tx *decoder.DecodedTransaction) []string {
	seen := make(map[string]bool)
	var policies []string
	add := func(policyId string) {
		if policyId == "" || seen[policyId] {
			return
		}
		seen[policyId] = true
		policies = append(policies, policyId)
	}
	for _, output := range tx.Outputs {
		for assetId := range output.Assets {
			add(decoder.PolicyIdFromAssetId(assetId))
		}
	}
	for _, perm := range tx.Permissions {
		add(perm.PolicyId)
	}
	return policies
}
