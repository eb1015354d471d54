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

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// LovelaceAssetId is the asset identifier for the native currency in an
// output's asset map
const LovelaceAssetId = ""

// TransactionInput references an output of a prior transaction
type TransactionInput struct {
	TxId  lcommon.Blake2b256
	Index uint32
}

func (i TransactionInput) String() string {
	return fmt.Sprintf("%s#%d", i.TxId.String(), i.Index)
}

// TransactionOutput is a destination address and the assets sent to it.
// Assets maps asset identifier (policy id hex, optionally followed by
// "." and the asset name hex) to quantity, with LovelaceAssetId denoting
// the native currency.
type TransactionOutput struct {
	// Address is the human-readable destination address. When the raw
	// address bytes cannot be interpreted this falls back to their hex
	// encoding.
	Address string
	// RawAddress is the address as it appeared on the wire
	RawAddress []byte
	Assets     map[string]uint64
}

// Lovelace returns the native currency quantity of the output
func (o *TransactionOutput) Lovelace() uint64 {
	return o.Assets[LovelaceAssetId]
}

// ValidityInterval bounds the slots in which the transaction is valid.
// Nil pointers mean unbounded on that side.
type ValidityInterval struct {
	NotBefore *uint64
	NotAfter  *uint64
}

// ScriptPermission is an authorization entry granting a script control
// over assets under a policy. An empty AssetNames list means the grant
// covers all assets under the policy.
type ScriptPermission struct {
	PolicyId   string
	AssetNames []string
}

// Unbounded returns true when the permission covers every asset under
// its policy
func (p ScriptPermission) Unbounded() bool {
	return len(p.AssetNames) == 0
}

// DecodedTransaction is the typed model produced by Decode. It is
// immutable once constructed and carries no reference to the input
// bytes beyond the copied fields.
type DecodedTransaction struct {
	// Hash is the Blake2b-256 hash of the transaction body
	Hash        lcommon.Blake2b256
	Inputs      []TransactionInput
	Outputs     []TransactionOutput
	Fee         uint64
	Validity    *ValidityInterval
	Permissions []ScriptPermission
	// Metadata holds the raw auxiliary data CBOR, nil when absent
	Metadata []byte
}

// AssetId builds the asset identifier for a policy and asset name
func AssetId(policyId []byte, assetName []byte) string {
	if len(assetName) == 0 {
		return hex.EncodeToString(policyId)
	}
	return hex.EncodeToString(policyId) + "." + hex.EncodeToString(assetName)
}

// PolicyIdFromAssetId returns the policy id portion of an asset
// identifier. The native currency has no policy and returns an empty
// string.
func PolicyIdFromAssetId(assetId string) string {
	if assetId == LovelaceAssetId {
		return ""
	}
	for i := range len(assetId) {
		if assetId[i] == '.' {
			return assetId[:i]
		}
	}
	return assetId
}
