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
	"fmt"

	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/vexdb/vex/pkg/executor/pipeline"
	"github.com/vexdb/vex/pkg/expression"
	"github.com/vexdb/vex/pkg/metrics"
	"github.com/vexdb/vex/pkg/types"
	"github.com/vexdb/vex/pkg/util/chunk"
	"github.com/vexdb/vex/pkg/util/logutil"
	"go.uber.org/zap"
)

// joinStage is the internal state of one probe instance. Transitions are
// monotonic: Probe -> RightJoin -> PostRightJoin -> Finished, where RightJoin
// and PostRightJoin are only visited by the instance that wins the
// right-join emission gate.
type joinStage int

const (
	stageProbe joinStage = iota
	stageRightJoin
	stagePostRightJoin
	stageFinished
)

func (s joinStage) String() string {
	switch s {
	case stageProbe:
		return "probe"
	case stageRightJoin:
		return "right_join"
	case stagePostRightJoin:
		return "post_right_join"
	case stageFinished:
		return "finished"
	}
	return "unknown"
}

// NLJoinProbeOperator streams probe-side chunks against the materialized
// build side of an NLJoinContext, evaluating the join conjuncts over the
// cross-product pairings. It implements LEFT, RIGHT and FULL OUTER semantics
// without an equi-join hash path: unmatched probe rows are emitted inline
// with a null-filled build side, unmatched build rows are emitted by the one
// instance that wins the context's completion gate after all instances have
// merged their match flags.
//
// The operator is non-blocking. The permutation loop persists its cursors
// (probe row, build chunk index, batch start) on the operator so a call that
// stops early to respect the chunk-size contract resumes exactly where it
// left off.
type NLJoinProbeOperator struct {
	pipeline.BaseOperator
	joinType         JoinType
	colTypes         []*types.FieldType
	probeColumnCount int
	buildColumnCount int
	joinConjuncts    expression.CNFExprs
	otherConjuncts   expression.CNFExprs
	joinCtx          *NLJoinContext

	accumulator   chunk.Accumulator
	stage         joinStage
	inputFinished bool

	probeChunk      *chunk.Chunk
	probeRowStart   int
	probeRowCurrent int
	probeRowMatched bool

	currBuildChunkIndex     int
	currBuildChunk          *chunk.Chunk
	permutedBuildChunkIndex int

	// selfBuildMatchFlag is this instance's private build-row match flags,
	// merged into the shared flags through the completion gate. Only
	// allocated for right/full outer joins.
	selfBuildMatchFlag []bool
}

// NewNLJoinProbeOperator creates a probe operator for one lane, taking one
// reference on joinCtx. colTypes lists the probe columns followed by the
// build columns.
func NewNLJoinProbeOperator(
	driverSequence int,
	joinType JoinType,
	joinConjuncts, otherConjuncts expression.CNFExprs,
	colTypes []*types.FieldType,
	probeColumnCount, buildColumnCount int,
	joinCtx *NLJoinContext,
) *NLJoinProbeOperator {
	if probeColumnCount+buildColumnCount != len(colTypes) {
		panic(fmt.Sprintf("logical error: %d probe + %d build columns but %d column types",
			probeColumnCount, buildColumnCount, len(colTypes)))
	}
	joinCtx.Ref()
	return &NLJoinProbeOperator{
		BaseOperator:     pipeline.NewBaseOperator("nestloop_join_probe", driverSequence),
		joinType:         joinType,
		colTypes:         colTypes,
		probeColumnCount: probeColumnCount,
		buildColumnCount: buildColumnCount,
		joinConjuncts:    joinConjuncts,
		otherConjuncts:   otherConjuncts,
		joinCtx:          joinCtx,
	}
}

// Prepare implements pipeline.Operator.
func (o *NLJoinProbeOperator) Prepare(state *pipeline.RuntimeState) error {
	o.accumulator.SetDesiredSize(state.ChunkSize())
	o.AddInfoString("join_conjuncts", o.joinConjuncts.String())
	return nil
}

// Close implements pipeline.Operator.
func (o *NLJoinProbeOperator) Close(*pipeline.RuntimeState) {
	o.joinCtx.Unref()
}

// IsReady implements pipeline.DependencyOperator: the operator can neither
// accept nor emit data until the build side is fully materialized.
func (o *NLJoinProbeOperator) IsReady() bool {
	return o.joinCtx.IsBuildFinished()
}

func (o *NLJoinProbeOperator) isCurrProbeChunkFinished() bool {
	return o.probeChunk == nil || o.probeRowCurrent >= o.probeChunk.NumRows()
}

func (o *NLJoinProbeOperator) advanceJoinStage(stage joinStage) {
	if stage < o.stage {
		panic(fmt.Sprintf("logical error: join stage regression from %s to %s", o.stage, stage))
	}
	if o.stage != stage {
		o.stage = stage
		logutil.BgLogger().Debug("nljoin probe operator enters join stage",
			zap.Int("driverSequence", o.DriverSequence()),
			zap.Stringer("stage", stage))
	}
}

// skipProbe reports whether probing can be skipped entirely: an empty build
// side can never produce a match, except for left outer joins which still
// must emit every probe row.
func (o *NLJoinProbeOperator) skipProbe() bool {
	return o.IsReady() && !o.joinType.IsLeftOuter() && o.joinCtx.IsBuildEmpty()
}

// checkPostProbe drives the stage machine forward once probing is over. It
// runs at the top of every HasOutput call.
func (o *NLJoinProbeOperator) checkPostProbe() {
	skip := o.skipProbe()
	outputFinished := o.isCurrProbeChunkFinished() && o.accumulator.Empty()

	if (o.inputFinished && outputFinished) || skip {
		switch o.stage {
		case stageProbe:
			if !o.joinType.IsRightOuter() ||
				!o.joinCtx.FinishProbe(o.DriverSequence(), o.selfBuildMatchFlag) {
				o.advanceJoinStage(stageFinished)
			} else {
				o.advanceJoinStage(stageRightJoin)
			}
		case stageRightJoin:
			// Advanced to PostRightJoin by the pull path.
		case stagePostRightJoin:
			if outputFinished {
				o.advanceJoinStage(stageFinished)
			}
		case stageFinished:
		}
	}
}

// HasOutput implements pipeline.Operator.
func (o *NLJoinProbeOperator) HasOutput() bool {
	o.checkPostProbe()
	return o.stage != stageFinished
}

// NeedInput implements pipeline.Operator.
func (o *NLJoinProbeOperator) NeedInput() bool {
	if !o.IsReady() {
		return false
	}
	if o.skipProbe() {
		return false
	}
	return o.isCurrProbeChunkFinished()
}

// IsFinished implements pipeline.Operator.
func (o *NLJoinProbeOperator) IsFinished() bool {
	return (o.inputFinished || o.skipProbe()) && !o.HasOutput()
}

// SetFinishing implements pipeline.Operator.
func (o *NLJoinProbeOperator) SetFinishing(*pipeline.RuntimeState) error {
	o.checkPostProbe()
	o.inputFinished = true
	return nil
}

// SetFinished implements pipeline.Operator. This is the abnormal termination
// path: it propagates to the shared context, short-circuiting any pending
// right-join emission on every instance.
func (o *NLJoinProbeOperator) SetFinished(*pipeline.RuntimeState) error {
	o.joinCtx.SetFinished()
	return nil
}

func (o *NLJoinProbeOperator) numBuildChunks() int {
	return o.joinCtx.NumBuildChunks()
}

func (o *NLJoinProbeOperator) moveBuildChunkIndex(index int) {
	if index < 0 || index > o.numBuildChunks() {
		panic(fmt.Sprintf("logical error: build chunk index %d out of [0, %d]",
			index, o.numBuildChunks()))
	}
	if index < o.numBuildChunks() {
		o.currBuildChunk = o.joinCtx.BuildChunk(index)
	} else {
		o.currBuildChunk = nil
	}
	o.currBuildChunkIndex = index
}

func (o *NLJoinProbeOperator) newOutputChunk(state *pipeline.RuntimeState) *chunk.Chunk {
	return state.GetChunk(o.colTypes)
}

// initBuildMatch lazily sizes the private match flags to the build row
// count. Growth preserves flags already set, guarding against a buffer
// allocated before the build side was sealed.
func (o *NLJoinProbeOperator) initBuildMatch() {
	if o.joinType.IsRightOuter() && o.joinCtx.IsBuildFinished() &&
		len(o.selfBuildMatchFlag) < o.joinCtx.NumBuildRows() {
		grown := make([]bool, o.joinCtx.NumBuildRows())
		copy(grown, o.selfBuildMatchFlag)
		o.selfBuildMatchFlag = grown
	}
}

// PushChunk implements pipeline.Operator. It replaces the held probe chunk
// and rewinds every permutation cursor.
func (o *NLJoinProbeOperator) PushChunk(_ *pipeline.RuntimeState, chk *chunk.Chunk) error {
	o.initBuildMatch()
	o.probeChunk = chk
	o.probeRowStart = 0
	o.probeRowCurrent = 0
	o.probeRowMatched = false
	o.moveBuildChunkIndex(0)
	return nil
}

// permuteChunk builds one cross-product batch, resuming from the persisted
// cursors. The batch either pairs multiple probe rows against a single-chunk
// build side, or exactly one probe row against one build chunk: with more
// than one build chunk the loop returns after every pairing so the match
// bookkeeping can attribute the filter to that one pairing.
func (o *NLJoinProbeOperator) permuteChunk(state *pipeline.RuntimeState) *chunk.Chunk {
	multiBuildChunk := o.numBuildChunks() > 1
	// A previous call may have returned on the chunk-size cap right after the
	// current probe row saw its last build chunk. Advance past that row
	// before recording the batch start, or the filter windows of this batch
	// would be attributed to the already-finished row.
	if o.numBuildChunks() > 0 && o.currBuildChunkIndex >= o.numBuildChunks() {
		o.probeRowMatched = false
		o.moveBuildChunkIndex(0)
		o.probeRowCurrent++
	}
	output := o.newOutputChunk(state)
	o.probeRowStart = o.probeRowCurrent
	for o.probeRowCurrent < o.probeChunk.NumRows() {
		for o.currBuildChunkIndex < o.numBuildChunks() {
			o.permuteProbeRow(output)
			o.permutedBuildChunkIndex = o.currBuildChunkIndex
			o.moveBuildChunkIndex(o.currBuildChunkIndex + 1)
			if output.NumRows() >= state.ChunkSize() || multiBuildChunk {
				return output
			}
		}
		o.probeRowMatched = false
		o.moveBuildChunkIndex(0)
		o.probeRowCurrent++
	}
	return output
}

// permuteProbeRow pairs the current probe row with the whole current build
// chunk: probe columns replicate one value, build columns copy through.
func (o *NLJoinProbeOperator) permuteProbeRow(output *chunk.Chunk) {
	buildRows := o.currBuildChunk.NumRows()
	for i := range o.colTypes {
		if i < o.probeColumnCount {
			output.Column(i).AppendCellNTimes(o.probeChunk.Column(i), o.probeRowCurrent, buildRows)
		} else {
			output.Column(i).AppendRange(o.currBuildChunk.Column(i-o.probeColumnCount), 0, buildRows)
		}
	}
}

// permuteLeftJoin emits numRows probe rows starting at probeRowIndex with a
// null-filled build side, appending to output.
func (o *NLJoinProbeOperator) permuteLeftJoin(output *chunk.Chunk, probeRowIndex, numRows int) {
	for i := range o.colTypes {
		if i < o.probeColumnCount {
			output.Column(i).AppendRange(o.probeChunk.Column(i), probeRowIndex, probeRowIndex+numRows)
		} else {
			output.Column(i).AppendNulls(numRows)
		}
	}
}

// probe applies the join conjuncts to one permuted batch and maintains the
// outer-join match bookkeeping. The batch is filtered in place.
func (o *NLJoinProbeOperator) probe(batch *chunk.Chunk) error {
	if len(o.joinConjuncts) == 0 && !o.joinType.IsLeftOuter() && !o.joinType.IsRightOuter() {
		// Pure cross join: every permuted row is kept, no bookkeeping.
		return nil
	}

	var filter []bool
	if batch != nil && !batch.IsEmpty() {
		if len(o.joinConjuncts) == 0 {
			// No conjuncts: every permuted row matches. The outer-join
			// bookkeeping below still needs an explicit filter.
			filter = make([]bool, batch.NumRows())
			for i := range filter {
				filter[i] = true
			}
		} else {
			var err error
			filter, err = expression.EvalAndFilter(o.joinConjuncts, batch)
			if err != nil {
				return errors.Trace(err)
			}
		}
	}

	if o.joinType.IsLeftOuter() {
		switch {
		case o.numBuildChunks() == 0:
			// Empty build side: the whole probe chunk is unmatched.
			if o.probeRowCurrent != o.probeChunk.NumRows() {
				panic("logical error: probe cursor must be exhausted for an empty build side")
			}
			o.permuteLeftJoin(batch, 0, o.probeChunk.NumRows())
		case o.numBuildChunks() == 1:
			// One build chunk, possibly multiple probe rows per batch: the
			// filter partitions into fixed windows of the build row count,
			// one window per probe row.
			numBuildRows := o.joinCtx.NumBuildRows()
			for i := 0; i+numBuildRows <= len(filter); i += numBuildRows {
				if !containNonzero(filter[i : i+numBuildRows]) {
					probeRowIndex := o.probeRowStart + i/numBuildRows
					o.permuteLeftJoin(batch, probeRowIndex, 1)
				}
			}
		default:
			// Multiple build chunks, single probe row per batch: accumulate
			// the matched flag across batches; emit once the row has seen
			// every build chunk without a match.
			o.probeRowMatched = o.probeRowMatched || containNonzero(filter)
			probeRowFinished := o.currBuildChunkIndex >= o.numBuildChunks()
			if !o.probeRowMatched && probeRowFinished {
				o.permuteLeftJoin(batch, o.probeRowCurrent, 1)
			}
		}
	}

	if o.joinType.IsRightOuter() && filter != nil {
		if o.numBuildChunks() == 1 {
			numBuildRows := o.joinCtx.NumBuildRows()
			for i := 0; i+numBuildRows <= len(filter); i += numBuildRows {
				orBools(o.selfBuildMatchFlag, filter[i:i+numBuildRows])
			}
		} else {
			flagStart := o.joinCtx.BuildChunkStart(o.permutedBuildChunkIndex)
			orBools(o.selfBuildMatchFlag[flagStart:], filter)
		}
	}

	return nil
}

// permuteRightJoin emits the build rows left unmatched by every probe
// instance combined, null-filling the probe side. Runs exactly once, on the
// instance that won the completion gate.
func (o *NLJoinProbeOperator) permuteRightJoin(state *pipeline.RuntimeState) error {
	sharedFlag := o.joinCtx.SharedMatchFlag()
	if sharedFlag.UnsafeAllSet() {
		return nil
	}

	matchFlagIndex := 0
	for chunkIndex := 0; chunkIndex < o.numBuildChunks(); chunkIndex++ {
		o.moveBuildChunkIndex(chunkIndex)
		buildRows := o.currBuildChunk.NumRows()

		output := o.newOutputChunk(state)
		for col := range o.colTypes {
			if col < o.probeColumnCount {
				unmatched := sharedFlag.UnsafeCountUnset(matchFlagIndex, buildRows)
				if unmatched > 0 {
					output.Column(col).AppendNulls(unmatched)
				}
			} else {
				src := o.currBuildChunk.Column(col - o.probeColumnCount)
				for i := 0; i < buildRows; i++ {
					if !sharedFlag.UnsafeIsSet(matchFlagIndex + i) {
						output.Column(col).AppendRange(src, i, i+1)
					}
				}
			}
		}

		if err := expression.ApplyConjuncts(o.otherConjuncts, output); err != nil {
			return errors.Trace(err)
		}
		metrics.NLJoinRightEmitRows.Add(float64(output.NumRows()))
		o.accumulator.Push(output)
		matchFlagIndex += buildRows
	}
	return nil
}

// PullChunk implements pipeline.Operator.
//
// Nested-loop join algorithm:
//  1. Permute a batch from the probe and build sides, up to the chunk size.
//  2. Apply the join conjuncts, maintain outer-join match bookkeeping.
//  3. Batch results through the accumulator so downstream sees chunks of a
//     steady size.
func (o *NLJoinProbeOperator) PullChunk(state *pipeline.RuntimeState) (*chunk.Chunk, error) {
	failpoint.Inject("nlJoinProbeError", func() {
		failpoint.Return(nil, errors.New("nlJoinProbeError failpoint triggered"))
	})

	switch o.stage {
	case stageProbe:
	case stageRightJoin:
		if !o.joinType.IsRightOuter() {
			panic("logical error: right join stage on a non right-outer join")
		}
		if err := o.permuteRightJoin(state); err != nil {
			return nil, err
		}
		o.accumulator.Finalize()
		o.advanceJoinStage(stagePostRightJoin)
	case stagePostRightJoin:
	case stageFinished:
		return nil, nil
	}

	if chk := o.accumulator.Pull(); chk != nil {
		return o.emit(chk), nil
	}
	for o.probeChunk != nil && o.probeRowCurrent < o.probeChunk.NumRows() {
		batch := o.permuteChunk(state)
		if err := o.probe(batch); err != nil {
			return nil, err
		}
		if err := expression.ApplyConjuncts(o.otherConjuncts, batch); err != nil {
			return nil, errors.Trace(err)
		}
		o.accumulator.Push(batch)
		if res := o.accumulator.Pull(); res != nil {
			return o.emit(res), nil
		}
	}
	o.accumulator.Finalize()
	return o.emit(o.accumulator.Pull()), nil
}

func (o *NLJoinProbeOperator) emit(chk *chunk.Chunk) *chunk.Chunk {
	if chk != nil {
		metrics.NLJoinOutputRows.WithLabelValues(o.joinType.String()).Add(float64(chk.NumRows()))
	}
	return chk
}

func containNonzero(filter []bool) bool {
	for _, f := range filter {
		if f {
			return true
		}
	}
	return false
}

func orBools(dst, src []bool) {
	for i, s := range src {
		if s {
			dst[i] = true
		}
	}
}
