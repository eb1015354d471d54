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

// Package facts defines the externally supplied on-chain facts consumed by
// the risk engine. The engine never fetches these itself; callers populate
// them through a Provider implementation (such as facts/blockfrost) before
// invoking the scorer or verifier.
package facts

import (
	"context"
	"time"
)

// AddressFacts is an immutable snapshot of what is known about an address
// at the time of a request.
type AddressFacts struct {
	// Address is the bech32 address the facts describe
	Address string
	// Age is the time since the address first appeared on chain
	Age time.Duration
	// TxCount is the total number of transactions involving the address
	TxCount uint64
	// LargestTxLovelace is the largest single transaction value observed
	LargestTxLovelace uint64
	// FlaggedAssociations maps a tag (such as the hash of a known drainer
	// contract) to a short description of the association
	FlaggedAssociations map[string]string
}

// AssetFacts is an immutable snapshot of what is known about a native
// asset policy at the time of a request.
type AssetFacts struct {
	// PolicyId is the minting policy the facts describe
	PolicyId string
	// MintCount is the number of mint events observed under the policy
	MintCount uint64
	// MetadataComplete indicates whether the asset registry metadata is
	// present and complete
	MetadataComplete bool
	// DeclaredUnique indicates the asset is presented as a unique (NFT
	// style) asset rather than a fungible token
	DeclaredUnique bool
	// VerificationSources maps a verification source name to its result.
	// A true value confirms the asset, a false value is an explicit fraud
	// flag from that source.
	VerificationSources map[string]bool
}

// Provider fetches facts from an external source. Implementations are
// expected to perform network I/O and must honor the supplied context.
type Provider interface {
	AddressFacts(ctx context.Context, address string) (*AddressFacts, error)
	AssetFacts(ctx context.Context, policyId string) (*AssetFacts, error)
}
