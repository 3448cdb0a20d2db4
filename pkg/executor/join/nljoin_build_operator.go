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
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/vexdb/vex/pkg/executor/pipeline"
	"github.com/vexdb/vex/pkg/util/chunk"
)

// NLJoinBuildSinkOperator materializes the build (right) side of a
// nested-loop join into the shared NLJoinContext. One instance exists per
// build lane; the last instance to finish seals the build side.
type NLJoinBuildSinkOperator struct {
	pipeline.BaseOperator
	joinCtx   *NLJoinContext
	finishing bool
}

// NewNLJoinBuildSinkOperator creates a build sink bound to joinCtx, taking
// one context reference.
func NewNLJoinBuildSinkOperator(driverSequence int, joinCtx *NLJoinContext) *NLJoinBuildSinkOperator {
	joinCtx.Ref()
	return &NLJoinBuildSinkOperator{
		BaseOperator: pipeline.NewBaseOperator("nestloop_join_build_sink", driverSequence),
		joinCtx:      joinCtx,
	}
}

// Prepare implements pipeline.Operator.
func (o *NLJoinBuildSinkOperator) Prepare(state *pipeline.RuntimeState) error {
	o.joinCtx.AttachMemTracker(state.MemTracker())
	return nil
}

// HasOutput implements pipeline.Operator. Sinks never produce output.
func (o *NLJoinBuildSinkOperator) HasOutput() bool { return false }

// NeedInput implements pipeline.Operator.
func (o *NLJoinBuildSinkOperator) NeedInput() bool {
	return !o.finishing && !o.joinCtx.IsFinished()
}

// IsFinished implements pipeline.Operator.
func (o *NLJoinBuildSinkOperator) IsFinished() bool {
	return o.finishing || o.joinCtx.IsFinished()
}

// PushChunk implements pipeline.Operator.
func (o *NLJoinBuildSinkOperator) PushChunk(_ *pipeline.RuntimeState, chk *chunk.Chunk) error {
	failpoint.Inject("nlJoinBuildError", func() {
		failpoint.Return(errors.New("nlJoinBuildError failpoint triggered"))
	})
	o.joinCtx.AppendBuildChunk(chk)
	return nil
}

// PullChunk implements pipeline.Operator.
func (o *NLJoinBuildSinkOperator) PullChunk(*pipeline.RuntimeState) (*chunk.Chunk, error) {
	panic("logical error: pull from nestloop join build sink")
}

// SetFinishing implements pipeline.Operator. The last build sink to finish
// opens the build-finished latch.
func (o *NLJoinBuildSinkOperator) SetFinishing(*pipeline.RuntimeState) error {
	if !o.finishing {
		o.finishing = true
		o.joinCtx.FinishOneBuildSinker()
	}
	return nil
}

// SetFinished implements pipeline.Operator.
func (o *NLJoinBuildSinkOperator) SetFinished(state *pipeline.RuntimeState) error {
	o.joinCtx.SetFinished()
	// Release the latch so probe instances are not stuck waiting on a build
	// side that will never complete.
	return o.SetFinishing(state)
}

// Close implements pipeline.Operator.
func (o *NLJoinBuildSinkOperator) Close(*pipeline.RuntimeState) {
	o.joinCtx.Unref()
}
