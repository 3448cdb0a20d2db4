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

import (
	"container/list"
	"math/rand"
	"sync"

	"github.com/vexdb/vex/pkg/types"
)

// Pool is a shared pool of chunk columns, used to amortize column
// allocations across operators that create many short-lived chunks.
type Pool struct {
	varLenColPool  *colPool
	fixLenColPool8 *colPool
	maxChunkSize   int
}

// NewPool creates a Pool whose chunks hold up to maxChunkSize rows.
func NewPool(maxChunkSize int) *Pool {
	numShards := 8
	return &Pool{
		varLenColPool:  newColPool(numShards, types.VarElemLen),
		fixLenColPool8: newColPool(numShards, 8),
		maxChunkSize:   maxChunkSize,
	}
}

// GetChunk acquires a chunk with the given column types from the pool.
func (p *Pool) GetChunk(fields []*types.FieldType) *Chunk {
	chk := &Chunk{
		columns:  make([]*Column, 0, len(fields)),
		capacity: p.maxChunkSize,
	}
	for _, f := range fields {
		if f.FixedSize() == types.VarElemLen {
			chk.columns = append(chk.columns, p.varLenColPool.get(p.maxChunkSize))
		} else {
			chk.columns = append(chk.columns, p.fixLenColPool8.get(p.maxChunkSize))
		}
	}
	return chk
}

// PutChunk returns the columns of chk to the pool. The caller must not use
// chk afterwards.
func (p *Pool) PutChunk(fields []*types.FieldType, chk *Chunk) {
	for i, f := range fields {
		chk.columns[i].Reset()
		if f.FixedSize() == types.VarElemLen {
			p.varLenColPool.put(chk.columns[i])
		} else {
			p.fixLenColPool8.put(chk.columns[i])
		}
	}
	chk.columns = nil
}

type colPool struct {
	shards  []colPoolShard
	elemLen int
}

func newColPool(numShards, elemLen int) *colPool {
	return &colPool{
		shards:  make([]colPoolShard, numShards),
		elemLen: elemLen,
	}
}

func (cp *colPool) put(col *Column) {
	ordinal := rand.Int() % len(cp.shards)
	cp.shards[ordinal].put(col)
}

func (cp *colPool) get(capacity int) *Column {
	ordinal := rand.Int() % len(cp.shards)
	if col := cp.shards[ordinal].get(); col != nil {
		return col
	}
	if cp.elemLen == types.VarElemLen {
		return newVarLenColumn(capacity)
	}
	return newFixedLenColumn(cp.elemLen, capacity)
}

type colPoolShard struct {
	sync.Mutex
	cols *list.List
}

func (ps *colPoolShard) put(col *Column) {
	ps.Lock()
	defer ps.Unlock()
	if ps.cols == nil {
		ps.cols = list.New()
	}
	ps.cols.PushFront(col)
}

func (ps *colPoolShard) get() *Column {
	ps.Lock()
	defer ps.Unlock()
	if ps.cols != nil && ps.cols.Len() > 0 {
		head := ps.cols.Front()
		return ps.cols.Remove(head).(*Column)
	}
	return nil
}
