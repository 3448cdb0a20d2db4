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
	"github.com/pingcap/errors"
	"github.com/vexdb/vex/pkg/util/chunk"
)

// VectorizedFilter evaluates the AND-combined exprs over every row of chk and
// returns the boolean row filter. The returned filter always has exactly
// chk.NumRows() entries, even when no row passes, so callers can index it
// unconditionally. selected is reused as the result buffer when large enough.
func VectorizedFilter(exprs CNFExprs, chk *chunk.Chunk, selected []bool) ([]bool, error) {
	numRows := chk.NumRows()
	if cap(selected) >= numRows {
		selected = selected[:numRows]
	} else {
		selected = make([]bool, numRows)
	}
	for i := range selected {
		selected[i] = true
	}
	for _, expr := range exprs {
		for i := 0; i < numRows; i++ {
			if !selected[i] {
				continue
			}
			val, isNull, err := evalBool(expr, chk.GetRow(i))
			if err != nil {
				return nil, errors.Trace(err)
			}
			selected[i] = val && !isNull
		}
	}
	return selected, nil
}

// EvalAndFilter evaluates exprs over chk, removes the rows that do not pass
// in place, and returns the row filter computed before removal.
func EvalAndFilter(exprs CNFExprs, chk *chunk.Chunk) ([]bool, error) {
	selected, err := VectorizedFilter(exprs, chk, nil)
	if err != nil {
		return nil, err
	}
	chk.Filter(selected)
	return selected, nil
}

// ApplyConjuncts evaluates exprs over chk and removes the rows that do not
// pass in place. Callers that need the filter use EvalAndFilter instead.
func ApplyConjuncts(exprs CNFExprs, chk *chunk.Chunk) error {
	if len(exprs) == 0 {
		return nil
	}
	_, err := EvalAndFilter(exprs, chk)
	return err
}
