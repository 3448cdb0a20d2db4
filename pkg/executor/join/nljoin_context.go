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
	"sync"

	"github.com/vexdb/vex/pkg/metrics"
	"github.com/vexdb/vex/pkg/util/bitmap"
	"github.com/vexdb/vex/pkg/util/chunk"
	"github.com/vexdb/vex/pkg/util/logutil"
	"github.com/vexdb/vex/pkg/util/memory"
	atomicutil "go.uber.org/atomic"
	"go.uber.org/zap"
)

// NLJoinContext is the build-side context shared by all probe instances of
// one nested-loop join. Build sink operators materialize right-side chunks
// into it; once the last sinker finishes, the build-finished latch opens and
// the probe operators start. For right/full outer joins it also owns the
// shared per-build-row match flags merged from every probe instance.
//
// The context is reference counted: every probe operator takes a reference
// on construction and releases it on Close; the build chunks are released
// when the last reference goes away.
type NLJoinContext struct {
	mu struct {
		sync.Mutex
		buildChunks []*chunk.Chunk
	}

	// Immutable after the build-finished latch opens.
	buildChunkStarts []int
	numBuildRows     int

	numBuildSinkers    atomicutil.Int32
	buildFinished      atomicutil.Bool
	sharedMatchFlag    *bitmap.ConcurrentBitmap
	numProbers         int32
	numFinishedProbers atomicutil.Int32
	finished           atomicutil.Bool
	refCount           atomicutil.Int32
	attachOnce         sync.Once
	memTracker         *memory.Tracker
}

// NewNLJoinContext creates a context fed by numBuildSinkers build sink
// operators and probed by numProbers probe operators.
func NewNLJoinContext(numBuildSinkers, numProbers int) *NLJoinContext {
	ctx := &NLJoinContext{
		numProbers: int32(numProbers),
		memTracker: memory.NewTracker("nljoin_build", -1),
	}
	ctx.numBuildSinkers.Store(int32(numBuildSinkers))
	return ctx
}

// Ref takes one reference on the context.
func (c *NLJoinContext) Ref() {
	c.refCount.Add(1)
}

// Unref releases one reference. The last release frees the build chunks.
func (c *NLJoinContext) Unref() {
	if c.refCount.Add(-1) == 0 {
		c.mu.Lock()
		c.mu.buildChunks = nil
		c.mu.Unlock()
		c.memTracker.Consume(-c.memTracker.BytesConsumed())
		c.memTracker.Detach()
	}
}

// AttachMemTracker attaches the context's tracker to parent, once.
func (c *NLJoinContext) AttachMemTracker(parent *memory.Tracker) {
	c.attachOnce.Do(func() {
		c.memTracker.AttachTo(parent)
	})
}

// AppendBuildChunk materializes one build-side chunk. Empty chunks are
// dropped so a zero-row build side is always represented as zero chunks.
func (c *NLJoinContext) AppendBuildChunk(chk *chunk.Chunk) {
	if chk == nil || chk.IsEmpty() {
		return
	}
	c.mu.Lock()
	c.mu.buildChunks = append(c.mu.buildChunks, chk)
	c.mu.Unlock()
	c.memTracker.Consume(chk.MemoryUsage())
	metrics.NLJoinBuildRows.Add(float64(chk.NumRows()))
}

// FinishOneBuildSinker is called by each build sink operator when its input
// is exhausted. The last caller seals the build side: chunk offsets and the
// shared match flags are computed and the build-finished latch opens.
func (c *NLJoinContext) FinishOneBuildSinker() {
	if c.numBuildSinkers.Add(-1) != 0 {
		return
	}
	c.mu.Lock()
	chunks := c.mu.buildChunks
	c.mu.Unlock()

	c.buildChunkStarts = make([]int, len(chunks)+1)
	for i, chk := range chunks {
		c.buildChunkStarts[i+1] = c.buildChunkStarts[i] + chk.NumRows()
	}
	c.numBuildRows = c.buildChunkStarts[len(chunks)]
	c.sharedMatchFlag = bitmap.NewConcurrentBitmap(c.numBuildRows)
	c.buildFinished.Store(true)
	logutil.BgLogger().Debug("nljoin build side materialized",
		zap.Int("chunks", len(chunks)),
		zap.Int("rows", c.numBuildRows))
}

// IsBuildFinished reports whether the build side is fully materialized.
func (c *NLJoinContext) IsBuildFinished() bool {
	return c.buildFinished.Load()
}

// IsBuildEmpty reports whether the materialized build side holds no rows.
// Only meaningful once IsBuildFinished is true.
func (c *NLJoinContext) IsBuildEmpty() bool {
	return c.numBuildRows == 0
}

// NumBuildChunks returns the number of materialized build chunks.
func (c *NLJoinContext) NumBuildChunks() int {
	if len(c.buildChunkStarts) == 0 {
		return 0
	}
	return len(c.buildChunkStarts) - 1
}

// NumBuildRows returns the total build-side row count.
func (c *NLJoinContext) NumBuildRows() int {
	return c.numBuildRows
}

// BuildChunk returns the build chunk at index.
func (c *NLJoinContext) BuildChunk(index int) *chunk.Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.buildChunks[index]
}

// BuildChunkStart returns the global starting row offset of the build chunk
// at index, used to address the shared match flags.
func (c *NLJoinContext) BuildChunkStart(index int) int {
	return c.buildChunkStarts[index]
}

// SharedMatchFlag returns the fully merged per-build-row match flags. Only
// the FinishProbe winner may read it.
func (c *NLJoinContext) SharedMatchFlag() *bitmap.ConcurrentBitmap {
	return c.sharedMatchFlag
}

// FinishProbe merges one probe instance's private match flags into the
// shared flags and reports whether the caller must perform the right-join
// unmatched emission. Exactly one caller wins: the one whose merge completes
// the set, so the winner observes every other instance's flags. An early
// SetFinished makes everyone lose, short-circuiting the emission.
func (c *NLJoinContext) FinishProbe(driverSequence int, selfMatchFlag []bool) bool {
	for i, matched := range selfMatchFlag {
		if matched {
			c.sharedMatchFlag.Set(i)
		}
	}
	if c.finished.Load() {
		return false
	}
	won := c.numFinishedProbers.Add(1) == c.numProbers
	if won {
		logutil.BgLogger().Debug("nljoin probe instance won right join emission",
			zap.Int("driverSequence", driverSequence))
	}
	return won
}

// SetFinished is the abnormal early-termination signal. It short-circuits
// any pending right-join emission on every probe instance.
func (c *NLJoinContext) SetFinished() {
	c.finished.Store(true)
}

// IsFinished reports whether the join was terminated early.
func (c *NLJoinContext) IsFinished() bool {
	return c.finished.Load()
}
