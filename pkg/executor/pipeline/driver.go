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
	"context"
	"time"

	"github.com/pingcap/errors"
	"github.com/vexdb/vex/pkg/util/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// idleWait is how long a driver parks when no operator made progress in a
// tick, e.g. while waiting for the build side to materialize.
const idleWait = 50 * time.Microsecond

// Driver cooperatively schedules one lane: a chain of operators from source
// to sink. Each tick it polls the lifecycle predicates and moves at most one
// chunk between every adjacent operator pair. Operators never block, so a
// tick always completes; the driver parks briefly when nothing progressed.
type Driver struct {
	state         *RuntimeState
	ops           []Operator
	finishingSent []bool
}

// NewDriver creates a driver for the given operator chain. ops must hold at
// least a source and a sink.
func NewDriver(state *RuntimeState, ops ...Operator) *Driver {
	if len(ops) < 2 {
		panic("logical error: a driver needs at least two operators")
	}
	return &Driver{
		state:         state,
		ops:           ops,
		finishingSent: make([]bool, len(ops)),
	}
}

// Run drives the lane until the sink finishes, an operator fails, or ctx is
// cancelled. On failure every operator receives SetFinished before Run
// returns, tearing the lane down.
func (d *Driver) Run(ctx context.Context) error {
	for _, op := range d.ops {
		if err := op.Prepare(d.state); err != nil {
			d.abort()
			d.closeAll()
			return errors.Trace(err)
		}
	}
	defer d.closeAll()

	for {
		select {
		case <-ctx.Done():
			d.abort()
			return errors.Trace(ctx.Err())
		default:
		}

		progress := false
		for i := 0; i+1 < len(d.ops); i++ {
			up, down := d.ops[i], d.ops[i+1]
			if OperatorReady(up) && OperatorReady(down) && up.HasOutput() && down.NeedInput() {
				chk, err := up.PullChunk(d.state)
				if err != nil {
					d.abort()
					return errors.Trace(err)
				}
				if chk != nil && !chk.IsEmpty() {
					if err := down.PushChunk(d.state, chk); err != nil {
						d.abort()
						return errors.Trace(err)
					}
					progress = true
				}
			}
			if !d.finishingSent[i] && up.IsFinished() {
				if err := down.SetFinishing(d.state); err != nil {
					d.abort()
					return errors.Trace(err)
				}
				d.finishingSent[i] = true
				progress = true
			}
		}

		if d.ops[len(d.ops)-1].IsFinished() {
			return nil
		}
		if !progress {
			time.Sleep(idleWait)
		}
	}
}

// abort propagates the early-termination signal to every operator.
func (d *Driver) abort() {
	for _, op := range d.ops {
		if err := op.SetFinished(d.state); err != nil {
			logutil.BgLogger().Warn("operator SetFinished failed during abort",
				zap.Error(err))
		}
	}
}

func (d *Driver) closeAll() {
	for _, op := range d.ops {
		op.Close(d.state)
	}
}

// RunLanes builds and runs numLanes drivers concurrently, one scheduling
// goroutine per lane. buildLane returns the operator chain of one lane. The
// first lane failure cancels the rest.
func RunLanes(ctx context.Context, state *RuntimeState, numLanes int, buildLane func(lane int) []Operator) error {
	g, gctx := errgroup.WithContext(ctx)
	for lane := 0; lane < numLanes; lane++ {
		ops := buildLane(lane)
		g.Go(func() error {
			return NewDriver(state, ops...).Run(gctx)
		})
	}
	return errors.Trace(g.Wait())
}
