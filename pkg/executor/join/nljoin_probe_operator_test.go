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

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexdb/vex/pkg/executor/pipeline"
	"github.com/vexdb/vex/pkg/expression"
	"github.com/vexdb/vex/pkg/types"
	"github.com/vexdb/vex/pkg/util/chunk"
)

func intFieldTypes(n int) []*types.FieldType {
	fields := make([]*types.FieldType, n)
	for i := range fields {
		fields[i] = types.NewFieldType(types.KindInt64)
	}
	return fields
}

// int64Chunk builds a chunk from one int64 slice per column.
func int64Chunk(cols ...[]int64) *chunk.Chunk {
	chk := chunk.NewChunkWithCapacity(intFieldTypes(len(cols)), len(cols[0]))
	for c, vals := range cols {
		for _, v := range vals {
			chk.Column(c).AppendInt64(v)
		}
	}
	return chk
}

// newSealedJoinCtx creates a context whose build side is already
// materialized from the given chunks.
func newSealedJoinCtx(numProbers int, buildChunks ...*chunk.Chunk) *NLJoinContext {
	joinCtx := NewNLJoinContext(1, numProbers)
	for _, chk := range buildChunks {
		joinCtx.AppendBuildChunk(chk)
	}
	joinCtx.FinishOneBuildSinker()
	return joinCtx
}

func colEQColConjunct() expression.CNFExprs {
	return expression.CNFExprs{expression.NewCmpFunction(expression.OpEQ,
		expression.NewColumn(0, types.KindInt64),
		expression.NewColumn(1, types.KindInt64))}
}

func colLTColConjunct() expression.CNFExprs {
	return expression.CNFExprs{expression.NewCmpFunction(expression.OpLT,
		expression.NewColumn(0, types.KindInt64),
		expression.NewColumn(1, types.KindInt64))}
}

// driveProbe runs a probe operator to completion the way a driver would:
// push when it needs input, pull when it has output, finish when the probe
// side is exhausted.
func driveProbe(t *testing.T, op *NLJoinProbeOperator, state *pipeline.RuntimeState, probeChunks ...*chunk.Chunk) []*chunk.Chunk {
	t.Helper()
	require.NoError(t, op.Prepare(state))
	defer op.Close(state)

	var out []*chunk.Chunk
	pushed, finishing := 0, false
	for iter := 0; !op.IsFinished(); iter++ {
		require.Less(t, iter, 1<<16, "probe operator did not finish")
		if op.NeedInput() {
			if pushed < len(probeChunks) {
				require.NoError(t, op.PushChunk(state, probeChunks[pushed]))
				pushed++
			} else if !finishing {
				require.NoError(t, op.SetFinishing(state))
				finishing = true
			}
		}
		if op.HasOutput() {
			chk, err := op.PullChunk(state)
			require.NoError(t, err)
			if chk != nil && !chk.IsEmpty() {
				out = append(out, chk)
			}
		}
	}
	return out
}

type joinedRow struct {
	probe     int64
	build     int64
	probeNull bool
	buildNull bool
}

func (r joinedRow) String() string {
	left, right := "NULL", "NULL"
	if !r.probeNull {
		left = fmt.Sprintf("%d", r.probe)
	}
	if !r.buildNull {
		right = fmt.Sprintf("%d", r.build)
	}
	return fmt.Sprintf("(%s, %s)", left, right)
}

func collectJoinedRows(chunks []*chunk.Chunk) []joinedRow {
	var rows []joinedRow
	for _, chk := range chunks {
		for i := 0; i < chk.NumRows(); i++ {
			row := chk.GetRow(i)
			jr := joinedRow{probeNull: row.IsNull(0), buildNull: row.IsNull(1)}
			if !jr.probeNull {
				jr.probe = row.GetInt64(0)
			}
			if !jr.buildNull {
				jr.build = row.GetInt64(1)
			}
			rows = append(rows, jr)
		}
	}
	return rows
}

func TestInnerJoinProbeMajorOrder(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{10, 11, 12}))
	op := NewNLJoinProbeOperator(0, CrossJoin, nil, nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{1, 2})))
	expected := []joinedRow{
		{probe: 1, build: 10}, {probe: 1, build: 11}, {probe: 1, build: 12},
		{probe: 2, build: 10}, {probe: 2, build: 11}, {probe: 2, build: 12},
	}
	require.Equal(t, expected, rows)
}

func TestInnerJoinWithConjunct(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{2, 3, 4}))
	op := NewNLJoinProbeOperator(0, InnerJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{1, 2, 3})))
	require.Equal(t, []joinedRow{{probe: 2, build: 2}, {probe: 3, build: 3}}, rows)
}

func TestCrossJoinCompleteness(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1,
		int64Chunk([]int64{0, 1, 2}),
		int64Chunk([]int64{3, 4}))
	op := NewNLJoinProbeOperator(0, CrossJoin, nil, nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state,
		int64Chunk([]int64{0, 1, 2, 3, 4}),
		int64Chunk([]int64{5, 6})))
	require.Len(t, rows, 7*5)

	seen := make(map[joinedRow]int, len(rows))
	for _, r := range rows {
		seen[r]++
	}
	for p := int64(0); p < 7; p++ {
		for b := int64(0); b < 5; b++ {
			require.Equal(t, 1, seen[joinedRow{probe: p, build: b}], "pair (%d, %d)", p, b)
		}
	}
}

func TestLeftOuterJoinEmptyBuild(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1)
	op := NewNLJoinProbeOperator(0, LeftOuterJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{1, 2})))
	require.Equal(t, []joinedRow{
		{probe: 1, buildNull: true},
		{probe: 2, buildNull: true},
	}, rows)
}

func TestLeftOuterJoinSingleBuildChunk(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{2, 3}))
	op := NewNLJoinProbeOperator(0, LeftOuterJoin, colLTColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{1, 5})))
	require.Equal(t, []joinedRow{
		{probe: 1, build: 2},
		{probe: 1, build: 3},
		{probe: 5, buildNull: true},
	}, rows)
}

func TestLeftOuterJoinMultiBuildChunks(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{2}), int64Chunk([]int64{3}))
	op := NewNLJoinProbeOperator(0, LeftOuterJoin, colLTColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{1, 5})))
	require.ElementsMatch(t, []joinedRow{
		{probe: 1, build: 2},
		{probe: 1, build: 3},
		{probe: 5, buildNull: true},
	}, rows)
}

func TestLeftOuterJoinResumesAfterChunkSizeCap(t *testing.T) {
	// A chunk size smaller than one probe row's permutation forces
	// permuteChunk to stop after every row, so each batch resumes from a
	// cursor parked on the previous row's last pairing. The unmatched-row
	// windows must still map to the rows of the current batch.
	state := pipeline.NewRuntimeState(2)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{2, 3}))
	op := NewNLJoinProbeOperator(0, LeftOuterJoin, colLTColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{1, 5})))
	require.Equal(t, []joinedRow{
		{probe: 1, build: 2},
		{probe: 1, build: 3},
		{probe: 5, buildNull: true},
	}, rows)
}

func TestFullOuterJoinSmallChunkSize(t *testing.T) {
	state := pipeline.NewRuntimeState(2)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{2, 3}))
	op := NewNLJoinProbeOperator(0, FullOuterJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{2, 9, 3})))
	require.ElementsMatch(t, []joinedRow{
		{probe: 2, build: 2},
		{probe: 9, buildNull: true},
		{probe: 3, build: 3},
	}, rows)
}

func TestRightOuterJoinAllUnmatched(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{10, 20}))
	alwaysFalse := expression.CNFExprs{expression.NewConstant(expression.Int64Value(0))}
	op := NewNLJoinProbeOperator(0, RightOuterJoin, alwaysFalse, nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{1})))
	require.Equal(t, []joinedRow{
		{probeNull: true, build: 10},
		{probeNull: true, build: 20},
	}, rows)
}

func TestRightOuterJoinPartialMatch(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{2, 3}))
	op := NewNLJoinProbeOperator(0, RightOuterJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{2, 9})))
	require.Equal(t, []joinedRow{
		{probe: 2, build: 2},
		{probeNull: true, build: 3},
	}, rows)
}

func TestRightOuterJoinEmptyBuild(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1)
	op := NewNLJoinProbeOperator(0, RightOuterJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	require.False(t, op.NeedInput())
	rows := collectJoinedRows(driveProbe(t, op, state))
	require.Empty(t, rows)
}

func TestFullOuterJoin(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{2, 3}))
	op := NewNLJoinProbeOperator(0, FullOuterJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{2, 9})))
	require.Equal(t, []joinedRow{
		{probe: 2, build: 2},
		{probe: 9, buildNull: true},
		{probeNull: true, build: 3},
	}, rows)
}

func TestInnerJoinEmptyProbeSide(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{1, 2, 3}))
	op := NewNLJoinProbeOperator(0, InnerJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	// The probe side finishes without ever delivering a chunk; the operator
	// must finish cleanly with no output.
	rows := driveProbe(t, op, state)
	require.Empty(t, rows)
	require.True(t, op.IsFinished())
}

func TestInnerJoinSkipsEmptyBuild(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1)
	op := NewNLJoinProbeOperator(0, InnerJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	// An empty build side cannot match anything, so the operator refuses
	// input and finishes without seeing a probe chunk.
	require.False(t, op.NeedInput())
	rows := driveProbe(t, op, state, int64Chunk([]int64{1, 2, 3}))
	require.Empty(t, rows)
}

func TestProbeOutputBatching(t *testing.T) {
	const chunkSize = 64
	state := pipeline.NewRuntimeState(chunkSize)
	buildRows := make([]int64, 50)
	for i := range buildRows {
		buildRows[i] = int64(i)
	}
	probeRows := make([]int64, 8)
	for i := range probeRows {
		probeRows[i] = int64(i)
	}
	joinCtx := newSealedJoinCtx(1, int64Chunk(buildRows))
	op := NewNLJoinProbeOperator(0, CrossJoin, nil, nil, intFieldTypes(2), 1, 1, joinCtx)

	out := driveProbe(t, op, state, int64Chunk(probeRows))
	total := 0
	for i, chk := range out {
		total += chk.NumRows()
		if i+1 < len(out) {
			require.GreaterOrEqual(t, chk.NumRows(), chunkSize)
		}
		require.LessOrEqual(t, chk.NumRows(), chunkSize+len(buildRows))
	}
	require.Equal(t, len(probeRows)*len(buildRows), total)
}

func TestProbeFinishedIsSticky(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{7}))
	op := NewNLJoinProbeOperator(0, InnerJoin, colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)

	rows := collectJoinedRows(driveProbe(t, op, state, int64Chunk([]int64{7})))
	require.Equal(t, []joinedRow{{probe: 7, build: 7}}, rows)

	for i := 0; i < 3; i++ {
		require.True(t, op.IsFinished())
		require.False(t, op.HasOutput())
		chk, err := op.PullChunk(state)
		require.NoError(t, err)
		require.Nil(t, chk)
	}
}

func TestJoinStageRegressionPanics(t *testing.T) {
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{1}))
	op := NewNLJoinProbeOperator(0, RightOuterJoin, nil, nil, intFieldTypes(2), 1, 1, joinCtx)
	defer op.Close(nil)

	op.stage = stagePostRightJoin
	require.Panics(t, func() {
		op.advanceJoinStage(stageRightJoin)
	})
}

func TestEarlyTerminationSkipsRightJoinEmission(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := newSealedJoinCtx(1, int64Chunk([]int64{10, 20}))
	alwaysFalse := expression.CNFExprs{expression.NewConstant(expression.Int64Value(0))}
	op := NewNLJoinProbeOperator(0, RightOuterJoin, alwaysFalse, nil, intFieldTypes(2), 1, 1, joinCtx)

	require.NoError(t, op.SetFinished(state))
	rows := driveProbe(t, op, state, int64Chunk([]int64{1}))
	require.Empty(t, rows)
}

func TestRightOuterJoinMultiLane(t *testing.T) {
	state := pipeline.NewRuntimeState(pipeline.DefaultChunkSize)
	joinCtx := NewNLJoinContext(1, 2)

	probeInputs := [][]*chunk.Chunk{
		{int64Chunk([]int64{2})},
		{int64Chunk([]int64{3})},
	}
	sinks := []*pipeline.CollectSink{
		pipeline.NewCollectSink(1),
		pipeline.NewCollectSink(2),
	}

	err := pipeline.RunLanes(context.Background(), state, 3, func(lane int) []pipeline.Operator {
		if lane == 0 {
			return []pipeline.Operator{
				pipeline.NewBufferSource(0, []*chunk.Chunk{
					int64Chunk([]int64{2, 3}),
					int64Chunk([]int64{5, 7}),
				}),
				NewNLJoinBuildSinkOperator(0, joinCtx),
			}
		}
		probe := NewNLJoinProbeOperator(lane, RightOuterJoin,
			colEQColConjunct(), nil, intFieldTypes(2), 1, 1, joinCtx)
		return []pipeline.Operator{
			pipeline.NewBufferSource(lane, probeInputs[lane-1]),
			probe,
			sinks[lane-1],
		}
	})
	require.NoError(t, err)

	var all []*chunk.Chunk
	for _, sink := range sinks {
		all = append(all, sink.Results()...)
	}
	rows := collectJoinedRows(all)
	require.ElementsMatch(t, []joinedRow{
		{probe: 2, build: 2},
		{probe: 3, build: 3},
		{probeNull: true, build: 5},
		{probeNull: true, build: 7},
	}, rows)
}

func TestProbeOperatorColumnCountMismatchPanics(t *testing.T) {
	joinCtx := NewNLJoinContext(1, 1)
	require.Panics(t, func() {
		NewNLJoinProbeOperator(0, InnerJoin, nil, nil, intFieldTypes(2), 1, 2, joinCtx)
	})
}
