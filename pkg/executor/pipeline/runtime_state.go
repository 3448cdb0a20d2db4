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
	"github.com/vexdb/vex/pkg/types"
	"github.com/vexdb/vex/pkg/util/chunk"
	"github.com/vexdb/vex/pkg/util/memory"
)

// DefaultChunkSize is the default target row count of chunks flowing between
// operators.
const DefaultChunkSize = 1024

// RuntimeState carries the per-query execution state shared by the operators
// of one pipeline: the chunk size contract, the chunk pool and the query
// level memory tracker.
type RuntimeState struct {
	chunkSize  int
	chunkPool  *chunk.Pool
	memTracker *memory.Tracker
}

// NewRuntimeState creates a RuntimeState with the given target chunk size.
func NewRuntimeState(chunkSize int) *RuntimeState {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &RuntimeState{
		chunkSize:  chunkSize,
		chunkPool:  chunk.NewPool(chunkSize),
		memTracker: memory.NewTracker("query", -1),
	}
}

// ChunkSize returns the target row count of output chunks.
func (s *RuntimeState) ChunkSize() int {
	return s.chunkSize
}

// MemTracker returns the query-level memory tracker.
func (s *RuntimeState) MemTracker() *memory.Tracker {
	return s.memTracker
}

// GetChunk acquires a pooled chunk with the given column types.
func (s *RuntimeState) GetChunk(fields []*types.FieldType) *chunk.Chunk {
	return s.chunkPool.GetChunk(fields)
}

// PutChunk returns a chunk acquired by GetChunk to the pool.
func (s *RuntimeState) PutChunk(fields []*types.FieldType, chk *chunk.Chunk) {
	s.chunkPool.PutChunk(fields, chk)
}
