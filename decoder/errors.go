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

import "fmt"

// TooLargeError is returned when the input exceeds the configured byte
// ceiling. The size check runs before any parsing work.
type TooLargeError struct {
	Size  int
	Limit int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf(
		"transaction too large: %d bytes, limit %d bytes",
		e.Size,
		e.Limit,
	)
}

// TooDeepError is returned when the input nests structures beyond the
// configured depth limit
type TooDeepError struct {
	Limit int
}

func (e *TooDeepError) Error() string {
	return fmt.Sprintf("transaction nesting exceeds depth limit %d", e.Limit)
}

// MalformedInputError is returned when the input is not well-formed CBOR
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed transaction: %s", e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// SchemaViolationError is returned when well-formed CBOR does not match
// the transaction schema. FieldPath names the offending field.
type SchemaViolationError struct {
	FieldPath string
	Reason    string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf(
		"schema violation at %s: %s",
		e.FieldPath,
		e.Reason,
	)
}
