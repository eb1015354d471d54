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
	"math"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/fxamacker/cbor/v2"
)

// Transaction body map keys, following the Cardano CDDL numbering
const (
	bodyKeyInputs        = 0
	bodyKeyOutputs       = 1
	bodyKeyFee           = 2
	bodyKeyValidityEnd   = 3
	bodyKeyPermissions   = 4
	bodyKeyValidityStart = 8
)

// Babbage-style output map keys
const (
	outputKeyAddress = 0
	outputKeyValue   = 1
)

// txIdSize is the length of a Blake2b-256 transaction hash
const txIdSize = 32

func schemaErr(path string, format string, args ...any) error {
	return &SchemaViolationError{
		FieldPath: path,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// unwrapTag strips CBOR tag wrappers (such as the tag 258 set wrapper
// around input lists) down to the tagged content
func unwrapTag(v any) any {
	for {
		t, ok := v.(cbor.Tag)
		if !ok {
			return v
		}
		v = t.Content
	}
}

func asUint(v any, path string) (uint64, error) {
	switch val := unwrapTag(v).(type) {
	case uint64:
		return val, nil
	case int64:
		if val < 0 {
			return 0, schemaErr(path, "negative value %d", val)
		}
		return uint64(val), nil
	default:
		return 0, schemaErr(path, "expected unsigned integer, got %T", v)
	}
}

func asBytes(v any, path string) ([]byte, error) {
	switch val := unwrapTag(v).(type) {
	case []byte:
		return val, nil
	case cbor.ByteString:
		return val.Bytes(), nil
	default:
		return nil, schemaErr(path, "expected byte string, got %T", v)
	}
}

func asArray(v any, path string) ([]any, error) {
	val, ok := unwrapTag(v).([]any)
	if !ok {
		return nil, schemaErr(path, "expected array, got %T", v)
	}
	return val, nil
}

func asMap(v any, path string) (map[any]any, error) {
	val, ok := unwrapTag(v).(map[any]any)
	if !ok {
		return nil, schemaErr(path, "expected map, got %T", v)
	}
	return val, nil
}

// mapKey normalizes a decoded map key for lookup. Integer keys become
// uint64, byte string keys become their hex encoding.
func mapKey(k any) any {
	switch key := k.(type) {
	case uint64:
		return key
	case int64:
		return key
	case cbor.ByteString:
		return hex.EncodeToString(key.Bytes())
	case string:
		return key
	default:
		return k
	}
}

// normalizeMap rebuilds a decoded map with normalized keys
func normalizeMap(m map[any]any) map[any]any {
	ret := make(map[any]any, len(m))
	for k, v := range m {
		ret[mapKey(k)] = v
	}
	return ret
}

// mapTransaction maps the generic value tree onto the transaction
// schema. The auxiliary data slot is handled by the caller, which has
// access to the raw bytes.
func mapTransaction(raw any) (*DecodedTransaction, error) {
	arr, err := asArray(raw, "transaction")
	if err != nil {
		return nil, err
	}
	if len(arr) < 3 || len(arr) > 4 {
		return nil, schemaErr(
			"transaction",
			"expected 3 or 4 elements, got %d",
			len(arr),
		)
	}
	body, err := asMap(arr[0], "body")
	if err != nil {
		return nil, err
	}
	body = normalizeMap(body)
	if _, ok := unwrapTag(arr[2]).(bool); !ok {
		return nil, schemaErr("valid", "expected bool, got %T", arr[2])
	}
	tx := &DecodedTransaction{}
	// Required fields
	rawInputs, ok := body[uint64(bodyKeyInputs)]
	if !ok {
		return nil, schemaErr("body.inputs", "required field missing")
	}
	if tx.Inputs, err = mapInputs(rawInputs); err != nil {
		return nil, err
	}
	rawOutputs, ok := body[uint64(bodyKeyOutputs)]
	if !ok {
		return nil, schemaErr("body.outputs", "required field missing")
	}
	if tx.Outputs, err = mapOutputs(rawOutputs); err != nil {
		return nil, err
	}
	rawFee, ok := body[uint64(bodyKeyFee)]
	if !ok {
		return nil, schemaErr("body.fee", "required field missing")
	}
	if tx.Fee, err = asUint(rawFee, "body.fee"); err != nil {
		return nil, err
	}
	// Optional fields
	if rawPerms, ok := body[uint64(bodyKeyPermissions)]; ok {
		if tx.Permissions, err = mapPermissions(rawPerms); err != nil {
			return nil, err
		}
	}
	var validity ValidityInterval
	if rawStart, ok := body[uint64(bodyKeyValidityStart)]; ok {
		start, err := asUint(rawStart, "body.validityStart")
		if err != nil {
			return nil, err
		}
		validity.NotBefore = &start
	}
	if rawEnd, ok := body[uint64(bodyKeyValidityEnd)]; ok {
		end, err := asUint(rawEnd, "body.validityEnd")
		if err != nil {
			return nil, err
		}
		validity.NotAfter = &end
	}
	if validity.NotBefore != nil || validity.NotAfter != nil {
		tx.Validity = &validity
	}
	return tx, nil
}

func mapInputs(raw any) ([]TransactionInput, error) {
	arr, err := asArray(raw, "body.inputs")
	if err != nil {
		return nil, err
	}
	if len(arr) == 0 {
		return nil, schemaErr("body.inputs", "empty input set")
	}
	ret := make([]TransactionInput, 0, len(arr))
	for idx, rawInput := range arr {
		path := fmt.Sprintf("body.inputs[%d]", idx)
		entry, err := asArray(rawInput, path)
		if err != nil {
			return nil, err
		}
		if len(entry) != 2 {
			return nil, schemaErr(
				path,
				"expected 2 elements, got %d",
				len(entry),
			)
		}
		txId, err := asBytes(entry[0], path+".txId")
		if err != nil {
			return nil, err
		}
		if len(txId) != txIdSize {
			return nil, schemaErr(
				path+".txId",
				"expected %d bytes, got %d",
				txIdSize,
				len(txId),
			)
		}
		outIdx, err := asUint(entry[1], path+".index")
		if err != nil {
			return nil, err
		}
		if outIdx > math.MaxUint32 {
			return nil, schemaErr(
				path+".index",
				"output index %d out of range",
				outIdx,
			)
		}
		ret = append(ret, TransactionInput{
			TxId:  lcommon.NewBlake2b256(txId),
			Index: uint32(outIdx),
		})
	}
	return ret, nil
}

func mapOutputs(raw any) ([]TransactionOutput, error) {
	arr, err := asArray(raw, "body.outputs")
	if err != nil {
		return nil, err
	}
	ret := make([]TransactionOutput, 0, len(arr))
	for idx, rawOutput := range arr {
		path := fmt.Sprintf("body.outputs[%d]", idx)
		output, err := mapOutput(rawOutput, path)
		if err != nil {
			return nil, err
		}
		ret = append(ret, output)
	}
	return ret, nil
}

func mapOutput(raw any, path string) (TransactionOutput, error) {
	var rawAddr, rawValue any
	switch val := unwrapTag(raw).(type) {
	case []any:
		// Legacy array-shaped output
		if len(val) < 2 {
			return TransactionOutput{}, schemaErr(
				path,
				"expected at least 2 elements, got %d",
				len(val),
			)
		}
		rawAddr = val[0]
		rawValue = val[1]
	case map[any]any:
		// Babbage-style map-shaped output
		m := normalizeMap(val)
		var ok bool
		if rawAddr, ok = m[uint64(outputKeyAddress)]; !ok {
			return TransactionOutput{}, schemaErr(
				path+".address",
				"required field missing",
			)
		}
		if rawValue, ok = m[uint64(outputKeyValue)]; !ok {
			return TransactionOutput{}, schemaErr(
				path+".value",
				"required field missing",
			)
		}
	default:
		return TransactionOutput{}, schemaErr(
			path,
			"expected array or map, got %T",
			raw,
		)
	}
	addrBytes, err := asBytes(rawAddr, path+".address")
	if err != nil {
		return TransactionOutput{}, err
	}
	assets, err := mapValue(rawValue, path+".value")
	if err != nil {
		return TransactionOutput{}, err
	}
	return TransactionOutput{
		Address:    renderAddress(addrBytes),
		RawAddress: addrBytes,
		Assets:     assets,
	}, nil
}

// renderAddress converts raw address bytes to their human-readable
// form, falling back to hex when the bytes aren't a valid address
func renderAddress(addrBytes []byte) string {
	addr, err := lcommon.NewAddressFromBytes(addrBytes)
	if err != nil {
		return hex.EncodeToString(addrBytes)
	}
	return addr.String()
}

// mapValue maps an output value (plain coin or [coin, multiasset]) to
// an asset quantity map
func mapValue(raw any, path string) (map[string]uint64, error) {
	switch val := unwrapTag(raw).(type) {
	case uint64, int64:
		coin, err := asUint(val, path)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{LovelaceAssetId: coin}, nil
	case []any:
		if len(val) != 2 {
			return nil, schemaErr(
				path,
				"expected 2 elements, got %d",
				len(val),
			)
		}
		coin, err := asUint(val[0], path+".coin")
		if err != nil {
			return nil, err
		}
		ret := map[string]uint64{LovelaceAssetId: coin}
		multiAsset, err := asMap(val[1], path+".assets")
		if err != nil {
			return nil, err
		}
		for rawPolicy, rawAssets := range multiAsset {
			policyId, err := asBytes(rawPolicy, path+".assets")
			if err != nil {
				return nil, err
			}
			assetPath := fmt.Sprintf(
				"%s.assets[%s]",
				path,
				hex.EncodeToString(policyId),
			)
			assetMap, err := asMap(rawAssets, assetPath)
			if err != nil {
				return nil, err
			}
			for rawName, rawQty := range assetMap {
				name, err := asBytes(rawName, assetPath)
				if err != nil {
					return nil, err
				}
				qty, err := asUint(
					rawQty,
					fmt.Sprintf(
						"%s[%s]",
						assetPath,
						hex.EncodeToString(name),
					),
				)
				if err != nil {
					return nil, err
				}
				ret[AssetId(policyId, name)] = qty
			}
		}
		return ret, nil
	default:
		return nil, schemaErr(
			path,
			"expected coin or [coin, assets], got %T",
			raw,
		)
	}
}

func mapPermissions(raw any) ([]ScriptPermission, error) {
	arr, err := asArray(raw, "body.permissions")
	if err != nil {
		return nil, err
	}
	ret := make([]ScriptPermission, 0, len(arr))
	seen := make(map[string]bool, len(arr))
	for idx, rawPerm := range arr {
		path := fmt.Sprintf("body.permissions[%d]", idx)
		entry, err := asArray(rawPerm, path)
		if err != nil {
			return nil, err
		}
		if len(entry) < 1 || len(entry) > 2 {
			return nil, schemaErr(
				path,
				"expected 1 or 2 elements, got %d",
				len(entry),
			)
		}
		policyBytes, err := asBytes(entry[0], path+".policyId")
		if err != nil {
			return nil, err
		}
		policyId := hex.EncodeToString(policyBytes)
		if seen[policyId] {
			return nil, schemaErr(
				path,
				"duplicate permission entry for policy %s",
				policyId,
			)
		}
		seen[policyId] = true
		perm := ScriptPermission{PolicyId: policyId}
		if len(entry) == 2 {
			names, err := asArray(entry[1], path+".assetNames")
			if err != nil {
				return nil, err
			}
			for nameIdx, rawName := range names {
				name, err := asBytes(
					rawName,
					fmt.Sprintf("%s.assetNames[%d]", path, nameIdx),
				)
				if err != nil {
					return nil, err
				}
				perm.AssetNames = append(
					perm.AssetNames,
					hex.EncodeToString(name),
				)
			}
		}
		ret = append(ret, perm)
	}
	return ret, nil
}
