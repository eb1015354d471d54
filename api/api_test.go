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
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aegis-cardano/aegis"
	"github.com/aegis-cardano/aegis/facts"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicyId = "03030303030303030303030303030303030303030303030303030303"

// mockProvider implements facts.Provider for testing.
type mockProvider struct {
	addressFacts map[string]*facts.AddressFacts
	assetFacts   map[string]*facts.AssetFacts
}

func (m *mockProvider) AddressFacts(
	_ context.Context,
	address string,
) (*facts.AddressFacts, error) {
	af, ok := m.addressFacts[address]
	if !ok {
		return nil, errors.New("not found")
	}
	return af, nil
}

func (m *mockProvider) AssetFacts(
	_ context.Context,
	policyId string,
) (*facts.AssetFacts, error) {
	af, ok := m.assetFacts[policyId]
	if !ok {
		return nil, errors.New("not found")
	}
	return af, nil
}

func testTxHex(t *testing.T) string {
	t.Helper()
	body := map[uint64]any{
		0: []any{
			[]any{bytes.Repeat([]byte{0x01}, 32), uint64(0)},
		},
		1: []any{
			[]any{
				append([]byte{0x61}, bytes.Repeat([]byte{0x02}, 28)...),
				uint64(5_000_000),
			},
		},
		2: uint64(170_000),
	}
	data, err := cbor.Marshal([]any{body, map[uint64]any{}, true})
	require.NoError(t, err)
	return hex.EncodeToString(data)
}

func newTestApi(t *testing.T, provider facts.Provider) *Api {
	t.Helper()
	engine, err := aegis.NewEngine(aegis.NewConfig())
	require.NoError(t, err)
	return New(
		ApiConfig{
			ListenAddress: ":0",
			Network:       "mainnet",
		},
		engine,
		provider,
		nil,
		nil,
	)
}

func doRequest(
	t *testing.T,
	handler http.HandlerFunc,
	method string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, "/test", reqBody)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestStartStop(t *testing.T) {
	a := newTestApi(t, nil)

	err := a.Start(t.Context())
	require.NoError(t, err)

	a.mu.Lock()
	assert.NotNil(t, a.httpServer)
	a.mu.Unlock()

	stopCtx, stopCancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer stopCancel()
	err = a.Stop(stopCtx)
	require.NoError(t, err)

	a.mu.Lock()
	assert.Nil(t, a.httpServer)
	a.mu.Unlock()
}

func TestHandleRoot(t *testing.T) {
	a := newTestApi(t, nil)
	rec := doRequest(t, a.handleRoot, http.MethodGet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RootResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "aegis", resp.Name)
	assert.Equal(t, "mainnet", resp.Network)
}

func TestHandleHealth(t *testing.T) {
	a := newTestApi(t, nil)
	rec := doRequest(t, a.handleHealth, http.MethodGet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsHealthy)
}

func TestHandleDecodeTransaction(t *testing.T) {
	a := newTestApi(t, nil)
	rec := doRequest(
		t,
		a.handleDecodeTransaction,
		http.MethodPost,
		DecodeRequest{TxCbor: testTxHex(t)},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DecodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Transaction.Hash)
	require.Len(t, resp.Transaction.Inputs, 1)
	require.Len(t, resp.Transaction.Outputs, 1)
	assert.Equal(t, uint64(5_000_000), resp.Transaction.Outputs[0].Lovelace)
	assert.Equal(t, uint64(170_000), resp.Transaction.Fee)
	assert.False(t, resp.Transaction.HasMetadata)
	// No TTL or start slot in the transaction body
	assert.Nil(t, resp.Transaction.ValidityStart)
	assert.Nil(t, resp.Transaction.ValidityEnd)
}

func TestHandleDecodeTransactionErrors(t *testing.T) {
	a := newTestApi(t, nil)
	testDefs := []struct {
		name     string
		body     any
		expected int
	}{
		{
			name:     "missing tx_cbor",
			body:     DecodeRequest{},
			expected: http.StatusBadRequest,
		},
		{
			name:     "invalid hex",
			body:     DecodeRequest{TxCbor: "zznothex"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "malformed cbor",
			body:     DecodeRequest{TxCbor: "ff00"},
			expected: http.StatusBadRequest,
		},
		{
			name: "oversized transaction",
			body: DecodeRequest{
				TxCbor: strings.Repeat("00", 20_000),
			},
			expected: http.StatusRequestEntityTooLarge,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			rec := doRequest(
				t,
				a.handleDecodeTransaction,
				http.MethodPost,
				testDef.body,
			)
			require.Equal(t, testDef.expected, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, testDef.expected, resp.StatusCode)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestHandleAnalyzeTransaction(t *testing.T) {
	a := newTestApi(t, nil)
	rec := doRequest(
		t,
		a.handleAnalyzeTransaction,
		http.MethodPost,
		AnalyzeRequest{TxCbor: testTxHex(t)},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Transaction.Hash)
	assert.Equal(t, resp.Transaction.Hash, resp.Verdict.Subject)
	assert.NotEmpty(t, resp.Verdict.RiskLevel)
	assert.NotEmpty(t, resp.Verdict.Recommendation)
	assert.Contains(t, resp.Explanation, "Risk score")
	// No facts were supplied and no provider is configured
	assert.True(t, resp.Verdict.IncompleteData)
}

func TestHandleAnalyzeTransactionWithFacts(t *testing.T) {
	a := newTestApi(t, nil)
	txHex := testTxHex(t)

	// Resolve the output address so we can key the facts map
	decodeRec := doRequest(
		t,
		a.handleDecodeTransaction,
		http.MethodPost,
		DecodeRequest{TxCbor: txHex},
	)
	require.Equal(t, http.StatusOK, decodeRec.Code)
	var decodeResp DecodeResponse
	require.NoError(
		t,
		json.Unmarshal(decodeRec.Body.Bytes(), &decodeResp),
	)
	address := decodeResp.Transaction.Outputs[0].Address

	rec := doRequest(
		t,
		a.handleAnalyzeTransaction,
		http.MethodPost,
		AnalyzeRequest{
			TxCbor: txHex,
			AddressFacts: map[string]*AddressFactsJson{
				address: {
					AgeSeconds: 3600,
					TxCount:    5,
				},
			},
		},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Young address triggers the age rule
	assert.Equal(t, 40, resp.Verdict.Score)
	assert.Equal(t, "medium", resp.Verdict.RiskLevel)
	assert.False(t, resp.Verdict.IncompleteData)
}

func TestHandleAnalyzeTransactionProviderFacts(t *testing.T) {
	txHex := testTxHex(t)
	apiNoFacts := newTestApi(t, nil)
	decodeRec := doRequest(
		t,
		apiNoFacts.handleDecodeTransaction,
		http.MethodPost,
		DecodeRequest{TxCbor: txHex},
	)
	var decodeResp DecodeResponse
	require.NoError(
		t,
		json.Unmarshal(decodeRec.Body.Bytes(), &decodeResp),
	)
	address := decodeResp.Transaction.Outputs[0].Address

	provider := &mockProvider{
		addressFacts: map[string]*facts.AddressFacts{
			address: {
				Address:           address,
				Age:               30 * 24 * time.Hour,
				TxCount:           100,
				LargestTxLovelace: 50_000_000,
			},
		},
	}
	a := newTestApi(t, provider)
	rec := doRequest(
		t,
		a.handleAnalyzeTransaction,
		http.MethodPost,
		AnalyzeRequest{TxCbor: txHex},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Verdict.IncompleteData)
	assert.Equal(t, 0, resp.Verdict.Score)
}

func TestHandleAddressCheck(t *testing.T) {
	a := newTestApi(t, nil)
	rec := doRequest(
		t,
		a.handleAddressCheck,
		http.MethodPost,
		AddressCheckRequest{
			Address: "addr1qxtestaddress",
			Facts: &AddressFactsJson{
				AgeSeconds: 3600,
				TxCount:    5,
			},
		},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AddressCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.ReputationScore)
	assert.Equal(t, "medium", resp.RiskLevel)
	assert.NotEmpty(t, resp.Factors)
	assert.NotEmpty(t, resp.Recommendation)
}

func TestHandleAddressCheckNoFacts(t *testing.T) {
	// No facts in the request and no provider configured
	a := newTestApi(t, nil)
	rec := doRequest(
		t,
		a.handleAddressCheck,
		http.MethodPost,
		AddressCheckRequest{Address: "addr1qxtestaddress"},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AddressCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.ReputationScore)
	assert.Equal(t, "low", resp.RiskLevel)
	require.Len(t, resp.Factors, 1)
	assert.Contains(t, resp.Factors[0].Reason, "no reputation data")
}

func TestHandleAddressCheckBatch(t *testing.T) {
	a := newTestApi(t, nil)
	rec := doRequest(
		t,
		a.handleAddressCheckBatch,
		http.MethodPost,
		BatchAddressCheckRequest{
			Addresses: []string{
				"addr1qxtestaddress",
				"addr1qyotheraddress",
				"bogus",
			},
			Facts: map[string]*AddressFactsJson{
				"addr1qxtestaddress": {
					AgeSeconds: 3600,
					TxCount:    5,
				},
			},
		},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp BatchAddressCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TotalAddresses)
	assert.Equal(t, 2, resp.SuccessfulChecks)
	assert.Equal(t, 1, resp.FailedChecks)
	require.Len(t, resp.Results, 3)
	// Young address with supplied facts
	assert.Equal(t, 40, resp.Results[0].ReputationScore)
	assert.Equal(t, "medium", resp.Results[0].RiskLevel)
	// No facts anywhere for the second address
	assert.Equal(t, 0, resp.Results[1].ReputationScore)
	assert.Equal(t, "low", resp.Results[1].RiskLevel)
	// Invalid entry reported in place without failing the batch
	assert.Equal(t, "bogus", resp.Results[2].Address)
	assert.NotEmpty(t, resp.Results[2].Error)
	assert.Empty(t, resp.Results[2].RiskLevel)
}

func TestHandleAddressCheckBatchSizeLimits(t *testing.T) {
	a := newTestApi(t, nil)
	tooMany := make([]string, 101)
	for i := range tooMany {
		tooMany[i] = "addr1qxtestaddress"
	}
	testDefs := []struct {
		name      string
		addresses []string
	}{
		{name: "empty", addresses: nil},
		{name: "over limit", addresses: tooMany},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			rec := doRequest(
				t,
				a.handleAddressCheckBatch,
				http.MethodPost,
				BatchAddressCheckRequest{Addresses: testDef.addresses},
			)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleAddressCheckInvalidAddress(t *testing.T) {
	a := newTestApi(t, nil)
	testDefs := []string{
		"",
		"short",
		"notanaddressatall11111",
	}
	for _, testDef := range testDefs {
		rec := doRequest(
			t,
			a.handleAddressCheck,
			http.MethodPost,
			AddressCheckRequest{Address: testDef},
		)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%q", testDef)
	}
}

func TestHandleAssetVerify(t *testing.T) {
	a := newTestApi(t, nil)
	rec := doRequest(
		t,
		a.handleAssetVerify,
		http.MethodPost,
		AssetVerifyRequest{
			PolicyId: testPolicyId,
			Facts: &AssetFactsJson{
				MintCount:      3,
				DeclaredUnique: true,
			},
		},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssetVerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "suspicious", resp.Status)
	assert.NotEmpty(t, resp.Reasons)
}

func TestHandleAssetVerifyNoFacts(t *testing.T) {
	// No facts in the request and no provider configured
	a := newTestApi(t, nil)
	rec := doRequest(
		t,
		a.handleAssetVerify,
		http.MethodPost,
		AssetVerifyRequest{PolicyId: testPolicyId},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssetVerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unverified", resp.Status)
	require.Len(t, resp.Reasons, 1)
	assert.Contains(t, resp.Reasons[0], "no verification data")
}

func TestHandleAssetVerifyInvalidPolicy(t *testing.T) {
	a := newTestApi(t, nil)
	testDefs := []string{
		"",
		"cafe",
		strings.Repeat("zz", 28),
	}
	for _, testDef := range testDefs {
		rec := doRequest(
			t,
			a.handleAssetVerify,
			http.MethodPost,
			AssetVerifyRequest{PolicyId: testDef},
		)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%q", testDef)
	}
}

func TestHandleStats(t *testing.T) {
	a := newTestApi(t, nil)
	rec := doRequest(t, a.handleStats, http.MethodGet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(0), resp.AnalysesCompleted)
}
