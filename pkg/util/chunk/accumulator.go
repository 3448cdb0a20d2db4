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

package chunk

// Accumulator buffers produced chunks and re-batches them so that the
// consumer sees chunks of at least the desired size. A partial remainder is
// only released by Finalize, which flushes whatever is buffered.
type Accumulator struct {
	desiredSize int
	current     *Chunk
	ready       []*Chunk
}

// SetDesiredSize sets the minimum row count of chunks released by Pull.
func (a *Accumulator) SetDesiredSize(size int) {
	a.desiredSize = size
}

// Push buffers one produced chunk. The accumulator takes ownership of chk.
func (a *Accumulator) Push(chk *Chunk) {
	if chk == nil || chk.IsEmpty() {
		return
	}
	if a.current == nil {
		if chk.NumRows() >= a.desiredSize {
			a.ready = append(a.ready, chk)
			return
		}
		a.current = chk
		return
	}
	a.current.Append(chk, 0, chk.NumRows())
	if a.current.NumRows() >= a.desiredSize {
		a.ready = append(a.ready, a.current)
		a.current = nil
	}
}

// Pull returns the next full-size chunk, or nil if none is ready.
func (a *Accumulator) Pull() *Chunk {
	if len(a.ready) == 0 {
		return nil
	}
	chk := a.ready[0]
	a.ready = a.ready[1:]
	return chk
}

// Finalize flushes the buffered partial chunk, if any, so the next Pull can
// return an undersized remainder.
func (a *Accumulator) Finalize() {
	if a.current != nil && !a.current.IsEmpty() {
		a.ready = append(a.ready, a.current)
	}
	a.current = nil
}

// Empty reports whether the accumulator holds no rows at all.
func (a *Accumulator) Empty() bool {
	return len(a.ready) == 0 && (a.current == nil || a.current.IsEmpty())
}
