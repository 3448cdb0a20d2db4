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
	"encoding/binary"
	"math"

	"github.com/vexdb/vex/pkg/types"
)

// Column stores one column of data in Apache Arrow-like layout: a null
// bitmap where a set bit means NOT null, the element data, and, for
// variable-length elements, an offsets array.
type Column struct {
	length     int
	nullBitmap []byte
	offsets    []int32
	data       []byte
	elemBuf    []byte
}

func newFixedLenColumn(elemLen, capacity int) *Column {
	return &Column{
		elemBuf:    make([]byte, elemLen),
		data:       make([]byte, 0, capacity*elemLen),
		nullBitmap: make([]byte, 0, (capacity+7)>>3),
	}
}

func newVarLenColumn(capacity int) *Column {
	estimatedElemLen := 8
	return &Column{
		offsets:    make([]int32, 1, capacity+1),
		data:       make([]byte, 0, capacity*estimatedElemLen),
		nullBitmap: make([]byte, 0, (capacity+7)>>3),
	}
}

// NewColumn creates a column of the given field type with room for capacity
// elements.
func NewColumn(ft *types.FieldType, capacity int) *Column {
	if size := ft.FixedSize(); size != types.VarElemLen {
		return newFixedLenColumn(size, capacity)
	}
	return newVarLenColumn(capacity)
}

func (c *Column) isFixed() bool {
	return c.elemBuf != nil
}

// Length returns the number of elements in the column.
func (c *Column) Length() int {
	return c.length
}

// Reset truncates the column to zero elements, keeping allocated buffers.
func (c *Column) Reset() {
	c.length = 0
	c.nullBitmap = c.nullBitmap[:0]
	if !c.isFixed() {
		c.offsets = c.offsets[:1]
	}
	c.data = c.data[:0]
}

// IsNull reports whether the element at rowIdx is null.
func (c *Column) IsNull(rowIdx int) bool {
	nullByte := c.nullBitmap[rowIdx/8]
	return nullByte&(1<<(uint(rowIdx)&7)) == 0
}

func (c *Column) appendNullBitmap(notNull bool) {
	idx := c.length >> 3
	if idx >= len(c.nullBitmap) {
		c.nullBitmap = append(c.nullBitmap, 0)
	}
	if notNull {
		pos := uint(c.length) & 7
		c.nullBitmap[idx] |= byte(1 << pos)
	}
}

// appendMultiSameNullBitmap appends multiple same bit value to `nullBitmap`.
// notNull means not null. num means the number of bits that should be appended.
func (c *Column) appendMultiSameNullBitmap(notNull bool, num int) {
	numNewBytes := ((c.length + num + 7) >> 3) - len(c.nullBitmap)
	b := byte(0)
	if notNull {
		b = 0xff
	}
	for i := 0; i < numNewBytes; i++ {
		c.nullBitmap = append(c.nullBitmap, b)
	}
	if !notNull {
		return
	}
	// 1. Set all the remaining bits in the last slot of old c.nullBitmap to 1.
	numRemainingBits := uint(c.length % 8)
	bitMask := byte(^((1 << numRemainingBits) - 1))
	c.nullBitmap[c.length/8] |= bitMask
	// 2. Set all the redundant bits in the last slot of new c.nullBitmap to 0.
	numRedundantBits := uint(len(c.nullBitmap)*8 - c.length - num)
	bitMask = byte(1<<(8-numRedundantBits)) - 1
	c.nullBitmap[len(c.nullBitmap)-1] &= bitMask
}

// AppendNull appends a null element.
func (c *Column) AppendNull() {
	c.appendNullBitmap(false)
	if c.isFixed() {
		c.data = append(c.data, c.elemBuf...)
	} else {
		c.offsets = append(c.offsets, c.offsets[len(c.offsets)-1])
	}
	c.length++
}

// AppendNulls appends n null elements.
func (c *Column) AppendNulls(n int) {
	if n <= 0 {
		return
	}
	c.appendMultiSameNullBitmap(false, n)
	if c.isFixed() {
		for i := 0; i < n; i++ {
			c.data = append(c.data, c.elemBuf...)
		}
	} else {
		last := c.offsets[len(c.offsets)-1]
		for i := 0; i < n; i++ {
			c.offsets = append(c.offsets, last)
		}
	}
	c.length += n
}

func (c *Column) finishAppendFixed() {
	c.data = append(c.data, c.elemBuf...)
	c.appendNullBitmap(true)
	c.length++
}

// AppendInt64 appends an int64 element.
func (c *Column) AppendInt64(i int64) {
	binary.LittleEndian.PutUint64(c.elemBuf, uint64(i))
	c.finishAppendFixed()
}

// AppendFloat64 appends a float64 element.
func (c *Column) AppendFloat64(f float64) {
	binary.LittleEndian.PutUint64(c.elemBuf, math.Float64bits(f))
	c.finishAppendFixed()
}

// AppendString appends a string element.
func (c *Column) AppendString(str string) {
	c.data = append(c.data, str...)
	c.offsets = append(c.offsets, int32(len(c.data)))
	c.appendNullBitmap(true)
	c.length++
}

// GetInt64 returns the int64 element at rowIdx.
func (c *Column) GetInt64(rowIdx int) int64 {
	return int64(binary.LittleEndian.Uint64(c.data[rowIdx*8:]))
}

// GetFloat64 returns the float64 element at rowIdx.
func (c *Column) GetFloat64(rowIdx int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(c.data[rowIdx*8:]))
}

// GetString returns the string element at rowIdx.
func (c *Column) GetString(rowIdx int) string {
	return string(c.data[c.offsets[rowIdx]:c.offsets[rowIdx+1]])
}

// AppendRange appends the elements in [begin, end) of src to c.
func (c *Column) AppendRange(src *Column, begin, end int) {
	if begin >= end {
		return
	}
	if c.isFixed() {
		elemLen := len(c.elemBuf)
		c.data = append(c.data, src.data[begin*elemLen:end*elemLen]...)
	} else {
		start, stop := src.offsets[begin], src.offsets[end]
		c.data = append(c.data, src.data[start:stop]...)
		for i := begin; i < end; i++ {
			elemLen := src.offsets[i+1] - src.offsets[i]
			c.offsets = append(c.offsets, c.offsets[len(c.offsets)-1]+elemLen)
		}
	}
	// appendNullBitmap addresses the bit at c.length, so the length must
	// advance element by element.
	for i := begin; i < end; i++ {
		c.appendNullBitmap(!src.IsNull(i))
		c.length++
	}
}

// AppendCellNTimes appends the element at rowIdx of src to c, repeated n
// times. Used by the join permutation loop to replicate one probe value
// against a whole build chunk.
func (c *Column) AppendCellNTimes(src *Column, rowIdx, n int) {
	if n <= 0 {
		return
	}
	if src.IsNull(rowIdx) {
		c.AppendNulls(n)
		return
	}
	c.appendMultiSameNullBitmap(true, n)
	if c.isFixed() {
		elemLen := len(c.elemBuf)
		elem := src.data[rowIdx*elemLen : (rowIdx+1)*elemLen]
		for i := 0; i < n; i++ {
			c.data = append(c.data, elem...)
		}
	} else {
		elem := src.data[src.offsets[rowIdx]:src.offsets[rowIdx+1]]
		elemLen := int32(len(elem))
		for i := 0; i < n; i++ {
			c.data = append(c.data, elem...)
			c.offsets = append(c.offsets, c.offsets[len(c.offsets)-1]+elemLen)
		}
	}
	c.length += n
}

// MemoryUsage returns the number of bytes held by the column buffers.
func (c *Column) MemoryUsage() int64 {
	return int64(cap(c.data) + cap(c.nullBitmap) + cap(c.offsets)*4 + cap(c.elemBuf))
}
