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

	"github.com/pingcap/errors"
	"github.com/vexdb/vex/pkg/types"
	"github.com/vexdb/vex/pkg/util/chunk"
)

// CmpOp is a comparison operator.
type CmpOp int

// Comparison operators.
const (
	OpEQ CmpOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

var cmpOpNames = map[CmpOp]string{
	OpEQ: "=", OpNE: "!=", OpLT: "<", OpLE: "<=", OpGT: ">", OpGE: ">=",
}

// CmpFunction compares two sub-expressions. Comparing with NULL yields NULL.
type CmpFunction struct {
	Op CmpOp
	L  Expression
	R  Expression
}

// NewCmpFunction creates a comparison expression.
func NewCmpFunction(op CmpOp, l, r Expression) *CmpFunction {
	return &CmpFunction{Op: op, L: l, R: r}
}

// Eval implements Expression.
func (f *CmpFunction) Eval(row chunk.Row) (Value, error) {
	lv, err := f.L.Eval(row)
	if err != nil {
		return Value{}, err
	}
	rv, err := f.R.Eval(row)
	if err != nil {
		return Value{}, err
	}
	if lv.IsNull || rv.IsNull {
		return NullValue(types.KindInt64), nil
	}
	cmp, err := compareValue(lv, rv)
	if err != nil {
		return Value{}, err
	}
	var res bool
	switch f.Op {
	case OpEQ:
		res = cmp == 0
	case OpNE:
		res = cmp != 0
	case OpLT:
		res = cmp < 0
	case OpLE:
		res = cmp <= 0
	case OpGT:
		res = cmp > 0
	case OpGE:
		res = cmp >= 0
	}
	return Int64Value(boolToInt64(res)), nil
}

// String implements fmt.Stringer.
func (f *CmpFunction) String() string {
	return fmt.Sprintf("%s %s %s", f.L, cmpOpNames[f.Op], f.R)
}

func compareValue(l, r Value) (int, error) {
	if l.Kind == types.KindString || r.Kind == types.KindString {
		if l.Kind != types.KindString || r.Kind != types.KindString {
			return 0, errors.Errorf("cannot compare %s with %s", l.Kind, r.Kind)
		}
		switch {
		case l.S < r.S:
			return -1, nil
		case l.S > r.S:
			return 1, nil
		}
		return 0, nil
	}
	// Numeric comparison, promote int64 to float64 on kind mismatch.
	if l.Kind == types.KindInt64 && r.Kind == types.KindInt64 {
		switch {
		case l.I < r.I:
			return -1, nil
		case l.I > r.I:
			return 1, nil
		}
		return 0, nil
	}
	lf, rf := l.F, r.F
	if l.Kind == types.KindInt64 {
		lf = float64(l.I)
	}
	if r.Kind == types.KindInt64 {
		rf = float64(r.I)
	}
	switch {
	case lf < rf:
		return -1, nil
	case lf > rf:
		return 1, nil
	}
	return 0, nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// LogicOp is a logical operator.
type LogicOp int

// Logical operators.
const (
	OpAnd LogicOp = iota
	OpOr
	OpNot
)

// LogicFunction combines boolean sub-expressions.
type LogicFunction struct {
	Op   LogicOp
	Args []Expression
}

// NewLogicFunction creates a logical expression.
func NewLogicFunction(op LogicOp, args ...Expression) *LogicFunction {
	return &LogicFunction{Op: op, Args: args}
}

// Eval implements Expression. NULL handling follows SQL three-valued logic.
func (f *LogicFunction) Eval(row chunk.Row) (Value, error) {
	switch f.Op {
	case OpNot:
		val, isNull, err := evalBool(f.Args[0], row)
		if err != nil {
			return Value{}, err
		}
		if isNull {
			return NullValue(types.KindInt64), nil
		}
		return Int64Value(boolToInt64(!val)), nil
	case OpAnd:
		sawNull := false
		for _, arg := range f.Args {
			val, isNull, err := evalBool(arg, row)
			if err != nil {
				return Value{}, err
			}
			if isNull {
				sawNull = true
			} else if !val {
				return Int64Value(0), nil
			}
		}
		if sawNull {
			return NullValue(types.KindInt64), nil
		}
		return Int64Value(1), nil
	case OpOr:
		sawNull := false
		for _, arg := range f.Args {
			val, isNull, err := evalBool(arg, row)
			if err != nil {
				return Value{}, err
			}
			if isNull {
				sawNull = true
			} else if val {
				return Int64Value(1), nil
			}
		}
		if sawNull {
			return NullValue(types.KindInt64), nil
		}
		return Int64Value(0), nil
	}
	panic(fmt.Sprintf("logical error: unknown logic op %d", f.Op))
}

// String implements fmt.Stringer.
func (f *LogicFunction) String() string {
	switch f.Op {
	case OpNot:
		return fmt.Sprintf("NOT (%s)", f.Args[0])
	case OpAnd:
		return fmt.Sprintf("(%s) AND (%s)", f.Args[0], f.Args[1])
	case OpOr:
		return fmt.Sprintf("(%s) OR (%s)", f.Args[0], f.Args[1])
	}
	return "?"
}
