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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aegis-cardano/aegis/facts"
)

// AddressFacts fetches an address facts snapshot. The largest
// transaction value is estimated from a sample of the most recent
// transactions rather than a full history walk.
func (c *Client) AddressFacts(
	ctx context.Context,
	address string,
) (*facts.AddressFacts, error) {
	escaped := url.PathEscape(address)

	var total addressTotalResponse
	if err := c.doGet(
		ctx,
		c.apiURL+"/addresses/"+escaped+"/total",
		&total,
	); err != nil {
		return nil, fmt.Errorf(
			"fetching address totals for %s: %w",
			address,
			err,
		)
	}

	var firstTxs []addressTxItem
	if err := c.doGet(
		ctx,
		c.apiURL+"/addresses/"+escaped+"/transactions?order=asc&count=1",
		&firstTxs,
	); err != nil {
		return nil, fmt.Errorf(
			"fetching first transaction for %s: %w",
			address,
			err,
		)
	}
	var age time.Duration
	if len(firstTxs) > 0 && firstTxs[0].BlockTime > 0 {
		age = time.Since(time.Unix(firstTxs[0].BlockTime, 0))
		if age < 0 {
			age = 0
		}
	}

	largest, err := c.largestRecentTxLovelace(ctx, escaped)
	if err != nil {
		return nil, fmt.Errorf(
			"estimating largest transaction for %s: %w",
			address,
			err,
		)
	}

	result := &facts.AddressFacts{
		Address:           address,
		Age:               age,
		TxCount:           total.TxCount,
		LargestTxLovelace: largest,
	}
	if desc, ok := c.watchlist[address]; ok {
		result.FlaggedAssociations = map[string]string{
			"watchlist": desc,
		}
	}
	return result, nil
}

// AssetFacts fetches a facts snapshot for an asset policy. The policy
// is summarized through its first listed asset; policies with no
// assets yield an error.
func (c *Client) AssetFacts(
	ctx context.Context,
	policyId string,
) (*facts.AssetFacts, error) {
	var assets []policyAssetItem
	if err := c.doGet(
		ctx,
		c.apiURL+"/assets/policy/"+url.PathEscape(policyId)+"?count=1",
		&assets,
	); err != nil {
		return nil, fmt.Errorf(
			"listing assets for policy %s: %w",
			policyId,
			err,
		)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf(
			"no assets found under policy %s",
			policyId,
		)
	}

	var detail assetResponse
	if err := c.doGet(
		ctx,
		c.apiURL+"/assets/"+url.PathEscape(assets[0].Asset),
		&detail,
	); err != nil {
		return nil, fmt.Errorf(
			"fetching asset %s: %w",
			assets[0].Asset,
			err,
		)
	}

	return &facts.AssetFacts{
		PolicyId:         policyId,
		MintCount:        detail.MintOrBurnCount,
		MetadataComplete: detail.Metadata.complete() || len(detail.OnchainMetadata) > 0,
		DeclaredUnique:   detail.Quantity == "1",
		VerificationSources: map[string]bool{
			"token_registry": detail.Metadata != nil,
		},
	}, nil
}

// largestRecentTxLovelace inspects a sample of the address's most
// recent transactions and returns the largest total output value seen.
func (c *Client) largestRecentTxLovelace(
	ctx context.Context,
	escapedAddress string,
) (uint64, error) {
	var recentTxs []addressTxItem
	if err := c.doGet(
		ctx,
		c.apiURL+"/addresses/"+escapedAddress+
			"/transactions?order=desc&count="+
			strconv.Itoa(recentTxSampleSize),
		&recentTxs,
	); err != nil {
		return 0, err
	}
	var largest uint64
	for _, item := range recentTxs {
		var tx txResponse
		if err := c.doGet(
			ctx,
			c.apiURL+"/txs/"+url.PathEscape(item.TxHash),
			&tx,
		); err != nil {
			return 0, err
		}
		for _, amount := range tx.OutputAmount {
			if amount.Unit != lovelaceUnit {
				continue
			}
			qty, err := strconv.ParseUint(amount.Quantity, 10, 64)
			if err != nil {
				continue
			}
			if qty > largest {
				largest = qty
			}
		}
	}
	return largest, nil
}

// doGet performs an HTTP GET request and decodes the JSON response
// into v.
func (c *Client) doGet(
	ctx context.Context,
	reqURL string,
	v any,
) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		reqURL,
		nil,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.projectId != "" {
		req.Header.Set("project_id", c.projectId)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	if resp == nil || resp.Body == nil {
		return errors.New("nil response from server")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(
			io.LimitReader(resp.Body, 1024),
		)
		return fmt.Errorf(
			"unexpected status %d: %s",
			resp.StatusCode,
			string(bodyBytes),
		)
	}

	if err := json.NewDecoder(
		io.LimitReader(resp.Body, maxResponseBytes),
	).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
