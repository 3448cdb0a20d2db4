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

package pipeline

import (
	"github.com/vexdb/vex/pkg/util/chunk"
)

// Operator is one stage of a pipeline, driven chunk by chunk by a Driver.
// Operators never block: every method completes its work and returns, and
// partial progress is resumed on the next call via state kept on the
// operator. The driver consults the predicates each scheduling tick and calls
// PushChunk only after NeedInput reported true, PullChunk only after
// HasOutput reported true.
type Operator interface {
	// Prepare does one-time setup before the first scheduling tick.
	Prepare(state *RuntimeState) error
	// HasOutput reports whether PullChunk may produce more data.
	HasOutput() bool
	// NeedInput reports whether the operator can accept a chunk.
	NeedInput() bool
	// IsFinished reports overall completion: no more input wanted and no
	// more output pending.
	IsFinished() bool
	// PushChunk hands one input chunk to the operator.
	PushChunk(state *RuntimeState, chk *chunk.Chunk) error
	// PullChunk returns the next output chunk, or nil if none is ready.
	PullChunk(state *RuntimeState) (*chunk.Chunk, error)
	// SetFinishing signals that no more input will be pushed.
	SetFinishing(state *RuntimeState) error
	// SetFinished is the abnormal early-termination signal, e.g. when a
	// downstream limit is satisfied or the query is cancelled.
	SetFinished(state *RuntimeState) error
	// Close releases the operator's resources. Called exactly once.
	Close(state *RuntimeState)
}

// DependencyOperator is an Operator that must wait for an external
// dependency (e.g. a materialized build side) before it can make progress.
type DependencyOperator interface {
	Operator
	// IsReady reports whether the dependency is satisfied. Until then the
	// driver neither pushes to nor pulls from the operator.
	IsReady() bool
}

// OperatorReady reports whether op's dependency, if any, is satisfied.
func OperatorReady(op Operator) bool {
	if dep, ok := op.(DependencyOperator); ok {
		return dep.IsReady()
	}
	return true
}

// BaseOperator carries the identity and diagnostics shared by all operators.
type BaseOperator struct {
	name           string
	driverSequence int
	infoStrings    map[string]string
}

// NewBaseOperator creates a BaseOperator with the given name and lane.
func NewBaseOperator(name string, driverSequence int) BaseOperator {
	return BaseOperator{
		name:           name,
		driverSequence: driverSequence,
		infoStrings:    make(map[string]string),
	}
}

// Name returns the operator name.
func (o *BaseOperator) Name() string {
	return o.name
}

// DriverSequence returns the lane index of this operator instance.
func (o *BaseOperator) DriverSequence() int {
	return o.driverSequence
}

// AddInfoString records a diagnostic key/value for observability.
func (o *BaseOperator) AddInfoString(key, value string) {
	o.infoStrings[key] = value
}

// InfoString returns a recorded diagnostic value.
func (o *BaseOperator) InfoString(key string) string {
	return o.infoStrings[key]
}
