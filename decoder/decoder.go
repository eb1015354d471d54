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

// Package decoder turns raw Cardano transaction CBOR into a typed
// transaction model. Decoding runs in two phases: a generic CBOR parse
// with hard resource limits, then a schema mapping of the resulting
// value tree. The two phases fail with distinct error kinds so parse
// failures stay diagnosable.
package decoder

import (
	"bytes"
	"errors"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/fxamacker/cbor/v2"
)

const (
	DefaultMaxTxBytes = 16384
	DefaultMaxDepth   = 32
)

// cborNull is the encoding of a CBOR null, used for the absent
// auxiliary data slot
var cborNull = []byte{0xf6}

type Decoder struct {
	maxTxBytes int
	maxDepth   int
	decMode    cbor.DecMode
}

// New creates a Decoder with the given input size ceiling (bytes) and
// nesting depth limit. Zero or negative values select the defaults.
func New(maxTxBytes int, maxDepth int) (*Decoder, error) {
	if maxTxBytes <= 0 {
		maxTxBytes = DefaultMaxTxBytes
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	// fxamacker/cbor requires a depth limit of at least 4
	if maxDepth < 4 {
		maxDepth = 4
	}
	// Element limits track the byte ceiling. Every CBOR element costs at
	// least one input byte, so this bounds allocations to a small
	// constant multiple of the input size even for adversarial length
	// prefixes.
	elemLimit := max(maxTxBytes, 16)
	dm, err := cbor.DecOptions{
		MaxNestedLevels:  maxDepth,
		MaxArrayElements: elemLimit,
		MaxMapPairs:      elemLimit,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &Decoder{
		maxTxBytes: maxTxBytes,
		maxDepth:   maxDepth,
		decMode:    dm,
	}, nil
}

// MaxTxBytes returns the configured input size ceiling
func (d *Decoder) MaxTxBytes() int {
	return d.maxTxBytes
}

// MaxDepth returns the configured nesting depth limit
func (d *Decoder) MaxDepth() int {
	return d.maxDepth
}

// Decode parses raw transaction bytes into a DecodedTransaction. It is
// a pure function: no I/O, no retained references to the input. Errors
// are always one of TooLargeError, TooDeepError, MalformedInputError,
// or SchemaViolationError.
func (d *Decoder) Decode(data []byte) (*DecodedTransaction, error) {
	// Fail fast before any parsing work
	if len(data) > d.maxTxBytes {
		return nil, &TooLargeError{
			Size:  len(data),
			Limit: d.maxTxBytes,
		}
	}
	// Phase 1: generic parse with resource limits
	var raw any
	if err := d.decMode.Unmarshal(data, &raw); err != nil {
		var maxNested *cbor.MaxNestedLevelError
		if errors.As(err, &maxNested) {
			return nil, &TooDeepError{Limit: d.maxDepth}
		}
		return nil, &MalformedInputError{Err: err}
	}
	// Phase 2: schema mapping
	tx, err := mapTransaction(raw)
	if err != nil {
		return nil, err
	}
	// Split the top-level array to recover the raw body bytes for
	// hashing and the raw auxiliary data
	var elems []cbor.RawMessage
	if err := d.decMode.Unmarshal(data, &elems); err != nil {
		return nil, &MalformedInputError{Err: err}
	}
	tx.Hash = lcommon.Blake2b256Hash(elems[0])
	if len(elems) > 3 && !bytes.Equal(elems[3], cborNull) {
		tx.Metadata = bytes.Clone(elems[3])
	}
	return tx, nil
}
