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

// BufferSource is a source operator that replays a fixed sequence of chunks.
type BufferSource struct {
	BaseOperator
	chunks   []*chunk.Chunk
	finished bool
}

// NewBufferSource creates a BufferSource feeding the given chunks in order.
func NewBufferSource(driverSequence int, chunks []*chunk.Chunk) *BufferSource {
	return &BufferSource{
		BaseOperator: NewBaseOperator("buffer_source", driverSequence),
		chunks:       chunks,
	}
}

// Prepare implements Operator.
func (s *BufferSource) Prepare(*RuntimeState) error { return nil }

// HasOutput implements Operator.
func (s *BufferSource) HasOutput() bool { return !s.finished && len(s.chunks) > 0 }

// NeedInput implements Operator.
func (s *BufferSource) NeedInput() bool { return false }

// IsFinished implements Operator.
func (s *BufferSource) IsFinished() bool { return s.finished || len(s.chunks) == 0 }

// PushChunk implements Operator. Sources accept no input.
func (s *BufferSource) PushChunk(*RuntimeState, *chunk.Chunk) error {
	panic("logical error: push to a source operator")
}

// PullChunk implements Operator.
func (s *BufferSource) PullChunk(*RuntimeState) (*chunk.Chunk, error) {
	if s.finished || len(s.chunks) == 0 {
		return nil, nil
	}
	chk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chk, nil
}

// SetFinishing implements Operator.
func (s *BufferSource) SetFinishing(*RuntimeState) error { return nil }

// SetFinished implements Operator.
func (s *BufferSource) SetFinished(*RuntimeState) error {
	s.finished = true
	return nil
}

// Close implements Operator.
func (s *BufferSource) Close(*RuntimeState) {}

// CollectSink is a sink operator that gathers all chunks pushed to it.
type CollectSink struct {
	BaseOperator
	results   []*chunk.Chunk
	finishing bool
}

// NewCollectSink creates a CollectSink.
func NewCollectSink(driverSequence int) *CollectSink {
	return &CollectSink{BaseOperator: NewBaseOperator("collect_sink", driverSequence)}
}

// Prepare implements Operator.
func (s *CollectSink) Prepare(*RuntimeState) error { return nil }

// HasOutput implements Operator.
func (s *CollectSink) HasOutput() bool { return false }

// NeedInput implements Operator.
func (s *CollectSink) NeedInput() bool { return !s.finishing }

// IsFinished implements Operator.
func (s *CollectSink) IsFinished() bool { return s.finishing }

// PushChunk implements Operator.
func (s *CollectSink) PushChunk(_ *RuntimeState, chk *chunk.Chunk) error {
	if chk != nil && !chk.IsEmpty() {
		s.results = append(s.results, chk)
	}
	return nil
}

// PullChunk implements Operator. Sinks produce no output.
func (s *CollectSink) PullChunk(*RuntimeState) (*chunk.Chunk, error) {
	panic("logical error: pull from a sink operator")
}

// SetFinishing implements Operator.
func (s *CollectSink) SetFinishing(*RuntimeState) error {
	s.finishing = true
	return nil
}

// SetFinished implements Operator.
func (s *CollectSink) SetFinished(*RuntimeState) error {
	s.finishing = true
	return nil
}

// Close implements Operator.
func (s *CollectSink) Close(*RuntimeState) {}

// Results returns the collected chunks.
func (s *CollectSink) Results() []*chunk.Chunk {
	return s.results
}

// NumResultRows returns the total row count across collected chunks.
func (s *CollectSink) NumResultRows() int {
	rows := 0
	for _, chk := range s.results {
		rows += chk.NumRows()
	}
	return rows
}
