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
	"fmt"

	"github.com/vexdb/vex/pkg/types"
)

// InitialCapacity is the default preallocated row capacity of a chunk.
const InitialCapacity = 32

// Chunk stores multiple rows of data in columnar format. Operators exchange
// data chunk by chunk instead of row by row.
type Chunk struct {
	columns  []*Column
	capacity int
}

// NewChunkWithCapacity creates a chunk with the given column types, with room
// for capacity rows.
func NewChunkWithCapacity(fields []*types.FieldType, capacity int) *Chunk {
	chk := &Chunk{
		columns:  make([]*Column, 0, len(fields)),
		capacity: capacity,
	}
	for _, ft := range fields {
		chk.columns = append(chk.columns, NewColumn(ft, capacity))
	}
	return chk
}

// NumCols returns the number of columns in the chunk.
func (c *Chunk) NumCols() int {
	return len(c.columns)
}

// NumRows returns the number of rows in the chunk.
func (c *Chunk) NumRows() int {
	if len(c.columns) == 0 {
		return 0
	}
	return c.columns[0].length
}

// IsEmpty reports whether the chunk holds no rows.
func (c *Chunk) IsEmpty() bool {
	return c.NumRows() == 0
}

// Column returns the i-th column.
func (c *Chunk) Column(i int) *Column {
	return c.columns[i]
}

// Capacity returns the row capacity the chunk was created with.
func (c *Chunk) Capacity() int {
	return c.capacity
}

// Reset truncates the chunk to zero rows, keeping allocated buffers.
func (c *Chunk) Reset() {
	for _, col := range c.columns {
		col.Reset()
	}
}

// Append appends rows in [begin, end) of other to c.
func (c *Chunk) Append(other *Chunk, begin, end int) {
	if len(c.columns) != len(other.columns) {
		panic(fmt.Sprintf("logical error: append chunk with %d columns to chunk with %d columns",
			len(other.columns), len(c.columns)))
	}
	for i, col := range c.columns {
		col.AppendRange(other.columns[i], begin, end)
	}
}

// Filter keeps only the rows whose flag in selected is true, compacting the
// chunk in place. len(selected) must equal NumRows.
func (c *Chunk) Filter(selected []bool) {
	if len(selected) != c.NumRows() {
		panic(fmt.Sprintf("logical error: filter length %d mismatches chunk rows %d",
			len(selected), c.NumRows()))
	}
	allSelected := true
	for _, s := range selected {
		if !s {
			allSelected = false
			break
		}
	}
	if allSelected {
		return
	}
	for i, col := range c.columns {
		var filtered *Column
		if col.isFixed() {
			filtered = newFixedLenColumn(len(col.elemBuf), len(selected))
		} else {
			filtered = newVarLenColumn(len(selected))
		}
		for begin := 0; begin < len(selected); {
			if !selected[begin] {
				begin++
				continue
			}
			end := begin + 1
			for end < len(selected) && selected[end] {
				end++
			}
			filtered.AppendRange(col, begin, end)
			begin = end
		}
		c.columns[i] = filtered
	}
}

// GetRow returns the row at rowIdx.
func (c *Chunk) GetRow(rowIdx int) Row {
	return Row{c: c, idx: rowIdx}
}

// MemoryUsage returns the bytes held by all column buffers.
func (c *Chunk) MemoryUsage() int64 {
	var sum int64
	for _, col := range c.columns {
		sum += col.MemoryUsage()
	}
	return sum
}

// Row represents one row of data in a chunk.
type Row struct {
	c   *Chunk
	idx int
}

// Idx returns the row index inside its chunk.
func (r Row) Idx() int {
	return r.idx
}

// IsNull reports whether the value at colIdx is null.
func (r Row) IsNull(colIdx int) bool {
	return r.c.columns[colIdx].IsNull(r.idx)
}

// GetInt64 returns the int64 value at colIdx.
func (r Row) GetInt64(colIdx int) int64 {
	return r.c.columns[colIdx].GetInt64(r.idx)
}

// GetFloat64 returns the float64 value at colIdx.
func (r Row) GetFloat64(colIdx int) float64 {
	return r.c.columns[colIdx].GetFloat64(r.idx)
}

// GetString returns the string value at colIdx.
func (r Row) GetString(colIdx int) string {
	return r.c.columns[colIdx].GetString(r.idx)
}
