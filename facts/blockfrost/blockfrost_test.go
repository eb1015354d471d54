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

package blockfrost

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAddress  = "addr1qxtestaddress"
	testPolicyId = "03030303030303030303030303030303030303030303030303030303"
	testAsset    = testPolicyId + "676f6c64"
	testTxHash   = "deadbeef"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	firstSeen := time.Now().Add(-48 * time.Hour).Unix()
	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET /addresses/"+testAddress+"/total",
		func(w http.ResponseWriter, r *http.Request) {
			// Project ID must be forwarded on every request
			assert.Equal(t, "test-project", r.Header.Get("project_id"))
			json.NewEncoder(w).Encode(addressTotalResponse{
				Address: testAddress,
				TxCount: 42,
			})
		},
	)
	mux.HandleFunc(
		"GET /addresses/"+testAddress+"/transactions",
		func(w http.ResponseWriter, r *http.Request) {
			items := []addressTxItem{
				{TxHash: testTxHash, BlockTime: firstSeen},
			}
			json.NewEncoder(w).Encode(items)
		},
	)
	mux.HandleFunc(
		"GET /txs/"+testTxHash,
		func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(txResponse{
				OutputAmount: []txAmount{
					{Unit: lovelaceUnit, Quantity: "7000000"},
					{Unit: testAsset, Quantity: "5"},
				},
			})
		},
	)
	mux.HandleFunc(
		"GET /assets/policy/"+testPolicyId,
		func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode([]policyAssetItem{
				{Asset: testAsset, Quantity: "1"},
			})
		},
	)
	mux.HandleFunc(
		"GET /assets/"+testAsset,
		func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(assetResponse{
				Asset:           testAsset,
				Quantity:        "1",
				MintOrBurnCount: 1,
				Metadata: &assetMetadata{
					Name:        "Gold",
					Description: "a test asset",
				},
			})
		},
	)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestAddressFacts(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL, "test-project")
	af, err := client.AddressFacts(t.Context(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, testAddress, af.Address)
	assert.Equal(t, uint64(42), af.TxCount)
	assert.Equal(t, uint64(7_000_000), af.LargestTxLovelace)
	assert.Greater(t, af.Age, 47*time.Hour)
	assert.Empty(t, af.FlaggedAssociations)
}

func TestAddressFactsWatchlist(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(
		server.URL,
		"test-project",
		WithWatchlist(map[string]string{
			testAddress: "known wallet drainer",
		}),
	)
	af, err := client.AddressFacts(t.Context(), testAddress)
	require.NoError(t, err)
	require.Len(t, af.FlaggedAssociations, 1)
	assert.Equal(
		t,
		"known wallet drainer",
		af.FlaggedAssociations["watchlist"],
	)
}

func TestAssetFacts(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL, "test-project")
	af, err := client.AssetFacts(t.Context(), testPolicyId)
	require.NoError(t, err)
	assert.Equal(t, testPolicyId, af.PolicyId)
	assert.Equal(t, uint64(1), af.MintCount)
	assert.True(t, af.MetadataComplete)
	assert.True(t, af.DeclaredUnique)
	assert.True(t, af.VerificationSources["token_registry"])
}

func TestErrorStatusPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "project_id is invalid", http.StatusForbidden)
		},
	))
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "bad-project")
	_, err := client.AddressFacts(t.Context(), testAddress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestApiURLForNetwork(t *testing.T) {
	url, err := ApiURLForNetwork("mainnet")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://"))
	_, err = ApiURLForNetwork("bogus")
	assert.Error(t, err)
}
