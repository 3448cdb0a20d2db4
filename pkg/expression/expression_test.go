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
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
	"github.com/vexdb/vex/pkg/types"
	"github.com/vexdb/vex/pkg/util/chunk"
)

func twoIntChunk(rows [][2]int64) *chunk.Chunk {
	fields := []*types.FieldType{
		types.NewFieldType(types.KindInt64),
		types.NewFieldType(types.KindInt64),
	}
	chk := chunk.NewChunkWithCapacity(fields, len(rows))
	for _, r := range rows {
		chk.Column(0).AppendInt64(r[0])
		chk.Column(1).AppendInt64(r[1])
	}
	return chk
}

func TestVectorizedFilter(t *testing.T) {
	chk := twoIntChunk([][2]int64{{1, 2}, {3, 3}, {5, 4}, {6, 6}})
	lt := NewCmpFunction(OpLT,
		NewColumn(0, types.KindInt64),
		NewColumn(1, types.KindInt64))

	selected, err := VectorizedFilter(CNFExprs{lt}, chk, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, false, false}, selected)
	// The input chunk is untouched.
	require.Equal(t, 4, chk.NumRows())
}

func TestVectorizedFilterAlwaysFalse(t *testing.T) {
	chk := twoIntChunk([][2]int64{{1, 2}, {3, 4}, {5, 6}})
	alwaysFalse := NewConstant(Int64Value(0))

	// Even a fully rejecting filter must be explicitly sized.
	selected, err := VectorizedFilter(CNFExprs{alwaysFalse}, chk, nil)
	require.NoError(t, err)
	require.Len(t, selected, 3)
	for _, s := range selected {
		require.False(t, s)
	}
}

func TestEvalAndFilter(t *testing.T) {
	chk := twoIntChunk([][2]int64{{1, 1}, {2, 5}, {3, 3}, {4, 0}})
	eq := NewCmpFunction(OpEQ,
		NewColumn(0, types.KindInt64),
		NewColumn(1, types.KindInt64))

	selected, err := EvalAndFilter(CNFExprs{eq}, chk)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, true, false}, selected)
	require.Equal(t, 2, chk.NumRows())
	require.Equal(t, int64(1), chk.GetRow(0).GetInt64(0))
	require.Equal(t, int64(3), chk.GetRow(1).GetInt64(0))
}

func TestNullComparison(t *testing.T) {
	fields := []*types.FieldType{types.NewFieldType(types.KindInt64)}
	chk := chunk.NewChunkWithCapacity(fields, 2)
	chk.Column(0).AppendNull()
	chk.Column(0).AppendInt64(1)

	eq := NewCmpFunction(OpEQ,
		NewColumn(0, types.KindInt64),
		NewConstant(Int64Value(1)))
	selected, err := VectorizedFilter(CNFExprs{eq}, chk, nil)
	require.NoError(t, err)
	// NULL = 1 is NULL, which filters the row out.
	require.Equal(t, []bool{false, true}, selected)
}

func TestLogicFunctions(t *testing.T) {
	chk := twoIntChunk([][2]int64{{1, 0}, {0, 0}, {1, 1}})
	c0 := NewColumn(0, types.KindInt64)
	c1 := NewColumn(1, types.KindInt64)

	and := NewLogicFunction(OpAnd, c0, c1)
	or := NewLogicFunction(OpOr, c0, c1)
	not := NewLogicFunction(OpNot, c0)

	selAnd, err := VectorizedFilter(CNFExprs{and}, chk, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{false, false, true}, selAnd)

	selOr, err := VectorizedFilter(CNFExprs{or}, chk, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, true}, selOr)

	selNot, err := VectorizedFilter(CNFExprs{not}, chk, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{false, true, false}, selNot)
}

type failingExpr struct{}

func (failingExpr) Eval(chunk.Row) (Value, error) {
	return Value{}, errors.New("evaluator blew up")
}

func (failingExpr) String() string { return "boom()" }

func TestFilterErrorPropagation(t *testing.T) {
	chk := twoIntChunk([][2]int64{{1, 2}})
	_, err := VectorizedFilter(CNFExprs{failingExpr{}}, chk, nil)
	require.ErrorContains(t, err, "evaluator blew up")

	err = ApplyConjuncts(CNFExprs{failingExpr{}}, chk)
	require.ErrorContains(t, err, "evaluator blew up")
	// The chunk is left untouched on error.
	require.Equal(t, 1, chk.NumRows())
}

func TestCNFString(t *testing.T) {
	exprs := CNFExprs{
		NewCmpFunction(OpGE, NewColumn(0, types.KindInt64), NewConstant(Int64Value(3))),
		NewCmpFunction(OpNE, NewColumn(1, types.KindInt64), NewConstant(StringValue("x"))),
	}
	require.Equal(t, `col#0 >= 3 AND col#1 != "x"`, exprs.String())
}

func TestCompareKindMismatch(t *testing.T) {
	chk := twoIntChunk([][2]int64{{1, 2}})
	bad := NewCmpFunction(OpEQ,
		NewColumn(0, types.KindInt64),
		NewConstant(StringValue("1")))
	_, err := VectorizedFilter(CNFExprs{bad}, chk, nil)
	require.ErrorContains(t, err, "cannot compare")
}
