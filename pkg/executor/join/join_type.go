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

package join

// JoinType identifies the semantics of a join.
type JoinType int

const (
	// InnerJoin keeps only matched row pairs.
	InnerJoin JoinType = iota
	// CrossJoin is an inner join without conjuncts.
	CrossJoin
	// LeftOuterJoin keeps every probe row, null-filling the build side of
	// unmatched ones.
	LeftOuterJoin
	// RightOuterJoin keeps every build row, null-filling the probe side of
	// unmatched ones.
	RightOuterJoin
	// FullOuterJoin combines left and right outer semantics.
	FullOuterJoin
)

// String implements fmt.Stringer.
func (t JoinType) String() string {
	switch t {
	case InnerJoin:
		return "inner"
	case CrossJoin:
		return "cross"
	case LeftOuterJoin:
		return "left_outer"
	case RightOuterJoin:
		return "right_outer"
	case FullOuterJoin:
		return "full_outer"
	}
	return "unknown"
}

// IsLeftOuter reports whether unmatched probe rows must be emitted.
func (t JoinType) IsLeftOuter() bool {
	return t == LeftOuterJoin || t == FullOuterJoin
}

// IsRightOuter reports whether unmatched build rows must be emitted.
func (t JoinType) IsRightOuter() bool {
	return t == RightOuterJoin || t == FullOuterJoin
}
