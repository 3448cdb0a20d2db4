// Copyright 2025 vexdb, Inc.
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

package types

import "fmt"

// Kind identifies the physical type of a column.
type Kind byte

const (
	// KindInt64 is a signed 64-bit integer column.
	KindInt64 Kind = iota
	// KindFloat64 is a 64-bit float column.
	KindFloat64
	// KindString is a variable-length string column.
	KindString
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("unknown(%d)", byte(k))
}

// FieldType describes the type of a column slot in a chunk.
type FieldType struct {
	Kind Kind
}

// NewFieldType creates a FieldType of the given kind.
func NewFieldType(kind Kind) *FieldType {
	return &FieldType{Kind: kind}
}

// FixedSize returns the byte width of fixed-length kinds, or VarElemLen
// for variable-length kinds.
func (ft *FieldType) FixedSize() int {
	switch ft.Kind {
	case KindInt64, KindFloat64:
		return 8
	case KindString:
		return VarElemLen
	}
	panic(fmt.Sprintf("logical error: unknown field kind %d", ft.Kind))
}

// VarElemLen marks a variable-length column element.
const VarElemLen = -1
