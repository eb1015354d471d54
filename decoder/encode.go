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

package decoder

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Encode serializes a DecodedTransaction back to transaction CBOR.
// Canonical encoding keeps the output deterministic for identical
// inputs. Encode(Decode(data)) is not guaranteed byte-identical to the
// original (the source may use non-canonical encodings), but
// Decode(Encode(tx)) always reproduces tx.
func Encode(tx *DecodedTransaction) ([]byte, error) {
	body := make(map[uint64]any)
	// Inputs
	inputs := make([]any, 0, len(tx.Inputs))
	for _, input := range tx.Inputs {
		inputs = append(inputs, []any{
			input.TxId.Bytes(),
			uint64(input.Index),
		})
	}
	body[bodyKeyInputs] = inputs
	// Outputs
	outputs := make([]any, 0, len(tx.Outputs))
	for idx, output := range tx.Outputs {
		value, err := encodeValue(output.Assets)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", idx, err)
		}
		outputs = append(outputs, []any{output.RawAddress, value})
	}
	body[bodyKeyOutputs] = outputs
	body[bodyKeyFee] = tx.Fee
	// Permissions
	if len(tx.Permissions) > 0 {
		perms := make([]any, 0, len(tx.Permissions))
		for idx, perm := range tx.Permissions {
			policyBytes, err := hex.DecodeString(perm.PolicyId)
			if err != nil {
				return nil, fmt.Errorf(
					"permission %d: invalid policy id: %w",
					idx,
					err,
				)
			}
			if perm.Unbounded() {
				perms = append(perms, []any{policyBytes})
				continue
			}
			names := make([]any, 0, len(perm.AssetNames))
			for _, name := range perm.AssetNames {
				nameBytes, err := hex.DecodeString(name)
				if err != nil {
					return nil, fmt.Errorf(
						"permission %d: invalid asset name: %w",
						idx,
						err,
					)
				}
				names = append(names, nameBytes)
			}
			perms = append(perms, []any{policyBytes, names})
		}
		body[bodyKeyPermissions] = perms
	}
	if tx.Validity != nil {
		if tx.Validity.NotBefore != nil {
			body[bodyKeyValidityStart] = *tx.Validity.NotBefore
		}
		if tx.Validity.NotAfter != nil {
			body[bodyKeyValidityEnd] = *tx.Validity.NotAfter
		}
	}
	doc := []any{
		body,
		map[uint64]any{},
		true,
	}
	if tx.Metadata != nil {
		doc = append(doc, cbor.RawMessage(tx.Metadata))
	}
	return encMode.Marshal(doc)
}

// encodeValue builds the wire value for an output asset map: a bare
// coin when only the native currency is present, otherwise
// [coin, multiasset]
func encodeValue(assets map[string]uint64) (any, error) {
	coin := assets[LovelaceAssetId]
	if len(assets) == 1 {
		if _, ok := assets[LovelaceAssetId]; ok {
			return coin, nil
		}
	}
	if len(assets) == 0 {
		return coin, nil
	}
	// Group by policy with sorted iteration for determinism
	assetIds := make([]string, 0, len(assets))
	for assetId := range assets {
		if assetId == LovelaceAssetId {
			continue
		}
		assetIds = append(assetIds, assetId)
	}
	sort.Strings(assetIds)
	multiAsset := make(map[cbor.ByteString]map[cbor.ByteString]uint64)
	for _, assetId := range assetIds {
		policyHex := PolicyIdFromAssetId(assetId)
		nameHex := ""
		if len(assetId) > len(policyHex) {
			nameHex = assetId[len(policyHex)+1:]
		}
		policyBytes, err := hex.DecodeString(policyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid asset id %q: %w", assetId, err)
		}
		nameBytes, err := hex.DecodeString(nameHex)
		if err != nil {
			return nil, fmt.Errorf("invalid asset id %q: %w", assetId, err)
		}
		policyKey := cbor.ByteString(policyBytes)
		if _, ok := multiAsset[policyKey]; !ok {
			multiAsset[policyKey] = make(map[cbor.ByteString]uint64)
		}
		multiAsset[policyKey][cbor.ByteString(nameBytes)] = assets[assetId]
	}
	return []any{coin, multiAsset}, nil
}
