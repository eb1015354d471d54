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

// Package blockfrost implements a facts.Provider backed by the
// Blockfrost REST API.
package blockfrost

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes limits JSON API responses to 10 MiB to prevent OOM
// from a malicious or misconfigured endpoint.
const maxResponseBytes = 10 << 20

// recentTxSampleSize is how many recent transactions are inspected to
// estimate the largest transaction value for an address.
const recentTxSampleSize = 25

const lovelaceUnit = "lovelace"

// Default API URLs for each supported Cardano network.
var DefaultApiURLs = map[string]string{
	"mainnet": "https://cardano-mainnet.blockfrost.io/api/v0",
	"preprod": "https://cardano-preprod.blockfrost.io/api/v0",
	"preview": "https://cardano-preview.blockfrost.io/api/v0",
}

// ApiURLForNetwork returns the default Blockfrost API URL for the
// given network name, or an error if the network is not recognized.
func ApiURLForNetwork(network string) (string, error) {
	apiURL, ok := DefaultApiURLs[network]
	if !ok {
		return "", fmt.Errorf(
			"no default Blockfrost API URL for network %q",
			network,
		)
	}
	return apiURL, nil
}

// Client is an HTTP client for the Blockfrost REST API implementing
// facts.Provider.
type Client struct {
	apiURL     string
	projectId  string
	watchlist  map[string]string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client for the Blockfrost client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithWatchlist sets a local watchlist mapping known-bad addresses to
// a short description. Matches surface as flagged associations in
// address facts, since Blockfrost itself carries no reputation data.
func WithWatchlist(watchlist map[string]string) ClientOption {
	return func(c *Client) {
		c.watchlist = watchlist
	}
}

// NewClient creates a new Blockfrost API client. The apiURL should be
// the base URL including the version prefix
// (e.g., "https://cardano-mainnet.blockfrost.io/api/v0").
func NewClient(
	apiURL string,
	projectId string,
	opts ...ClientOption,
) *Client {
	c := &Client{
		apiURL:    strings.TrimRight(apiURL, "/"),
		projectId: projectId,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// addressTotalResponse is returned by GET /addresses/{address}/total.
type addressTotalResponse struct {
	Address string `json:"address"`
	TxCount uint64 `json:"tx_count"`
}

// addressTxItem is one entry from
// GET /addresses/{address}/transactions.
type addressTxItem struct {
	TxHash    string `json:"tx_hash"`
	BlockTime int64  `json:"block_time"`
}

// txAmount is one unit/quantity pair in a transaction detail.
type txAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// txResponse is the subset of GET /txs/{hash} we consume.
type txResponse struct {
	OutputAmount []txAmount `json:"output_amount"`
}

// policyAssetItem is one entry from GET /assets/policy/{policy_id}.
type policyAssetItem struct {
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

// assetResponse is the subset of GET /assets/{asset} we consume.
type assetResponse struct {
	Asset           string          `json:"asset"`
	Quantity        string          `json:"quantity"`
	MintOrBurnCount uint64          `json:"mint_or_burn_count"`
	OnchainMetadata json.RawMessage `json:"onchain_metadata"`
	Metadata        *assetMetadata  `json:"metadata"`
}

// assetMetadata is the off-chain token registry entry for an asset.
type assetMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Ticker      string `json:"ticker"`
}

func (m *assetMetadata) complete() bool {
	return m != nil && m.Name != "" && m.Description != ""
}
