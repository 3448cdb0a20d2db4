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

package expression

import (
	"fmt"
	"strings"

	"github.com/vexdb/vex/pkg/types"
	"github.com/vexdb/vex/pkg/util/chunk"
)

// Value is the result of evaluating an expression over one row.
type Value struct {
	Kind   types.Kind
	IsNull bool
	I      int64
	F      float64
	S      string
}

// Int64Value creates a non-null int64 Value.
func Int64Value(i int64) Value {
	return Value{Kind: types.KindInt64, I: i}
}

// Float64Value creates a non-null float64 Value.
func Float64Value(f float64) Value {
	return Value{Kind: types.KindFloat64, F: f}
}

// StringValue creates a non-null string Value.
func StringValue(s string) Value {
	return Value{Kind: types.KindString, S: s}
}

// NullValue creates a null Value of the given kind.
func NullValue(kind types.Kind) Value {
	return Value{Kind: kind, IsNull: true}
}

// Expression is a scalar expression evaluated row by row over a chunk.
type Expression interface {
	fmt.Stringer
	// Eval evaluates the expression over one row.
	Eval(row chunk.Row) (Value, error)
}

// CNFExprs stands for a CNF expression: its items are AND-combined.
type CNFExprs []Expression

// String joins the conjunct texts, for diagnostics.
func (e CNFExprs) String() string {
	items := make([]string, 0, len(e))
	for _, expr := range e {
		items = append(items, expr.String())
	}
	return strings.Join(items, " AND ")
}

// Column refers to a column of the input chunk by offset.
type Column struct {
	Index int
	Kind  types.Kind
}

// NewColumn creates a column reference.
func NewColumn(index int, kind types.Kind) *Column {
	return &Column{Index: index, Kind: kind}
}

// Eval implements Expression.
func (c *Column) Eval(row chunk.Row) (Value, error) {
	if row.IsNull(c.Index) {
		return NullValue(c.Kind), nil
	}
	switch c.Kind {
	case types.KindInt64:
		return Int64Value(row.GetInt64(c.Index)), nil
	case types.KindFloat64:
		return Float64Value(row.GetFloat64(c.Index)), nil
	case types.KindString:
		return StringValue(row.GetString(c.Index)), nil
	}
	panic(fmt.Sprintf("logical error: unknown column kind %d", c.Kind))
}

// String implements fmt.Stringer.
func (c *Column) String() string {
	return fmt.Sprintf("col#%d", c.Index)
}

// Constant is a literal value.
type Constant struct {
	Value Value
}

// NewConstant creates a constant expression.
func NewConstant(v Value) *Constant {
	return &Constant{Value: v}
}

// Eval implements Expression.
func (c *Constant) Eval(chunk.Row) (Value, error) {
	return c.Value, nil
}

// String implements fmt.Stringer.
func (c *Constant) String() string {
	if c.Value.IsNull {
		return "NULL"
	}
	switch c.Value.Kind {
	case types.KindInt64:
		return fmt.Sprintf("%d", c.Value.I)
	case types.KindFloat64:
		return fmt.Sprintf("%g", c.Value.F)
	case types.KindString:
		return fmt.Sprintf("%q", c.Value.S)
	}
	return "?"
}

// evalBool interprets an expression result as a three-valued boolean.
func evalBool(expr Expression, row chunk.Row) (val, isNull bool, err error) {
	v, err := expr.Eval(row)
	if err != nil {
		return false, false, err
	}
	if v.IsNull {
		return false, true, nil
	}
	switch v.Kind {
	case types.KindInt64:
		return v.I != 0, false, nil
	case types.KindFloat64:
		return v.F != 0, false, nil
	case types.KindString:
		return len(v.S) != 0, false, nil
	}
	return false, false, nil
}
