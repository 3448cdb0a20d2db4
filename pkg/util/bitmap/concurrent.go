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

package bitmap

import "sync/atomic"

const segmentWidth = 32

// ConcurrentBitmap is a bitmap that allows concurrent Set from multiple
// goroutines. Bits are only ever turned on, never off, so readers that
// observe a set bit can rely on it staying set.
type ConcurrentBitmap struct {
	segments []uint32
	bitLen   int
}

// NewConcurrentBitmap creates a bitmap of bitLen bits, all unset.
func NewConcurrentBitmap(bitLen int) *ConcurrentBitmap {
	return &ConcurrentBitmap{
		segments: make([]uint32, (bitLen+segmentWidth-1)/segmentWidth),
		bitLen:   bitLen,
	}
}

// BitLen returns the number of bits in the bitmap.
func (b *ConcurrentBitmap) BitLen() int {
	return b.bitLen
}

// Set turns on the bit at bitIndex. Safe for concurrent use.
func (b *ConcurrentBitmap) Set(bitIndex int) {
	segment := &b.segments[bitIndex/segmentWidth]
	mask := uint32(1) << (uint(bitIndex) % segmentWidth)
	for {
		old := atomic.LoadUint32(segment)
		if old&mask != 0 {
			return
		}
		if atomic.CompareAndSwapUint32(segment, old, old|mask) {
			return
		}
	}
}

// UnsafeIsSet reports whether the bit at bitIndex is on, without any memory
// ordering guarantee. Callers must synchronize with writers externally.
func (b *ConcurrentBitmap) UnsafeIsSet(bitIndex int) bool {
	return b.segments[bitIndex/segmentWidth]&(uint32(1)<<(uint(bitIndex)%segmentWidth)) != 0
}

// UnsafeAllSet reports whether every bit is on. Same caveat as UnsafeIsSet.
func (b *ConcurrentBitmap) UnsafeAllSet() bool {
	for i := 0; i < b.bitLen; i++ {
		if !b.UnsafeIsSet(i) {
			return false
		}
	}
	return true
}

// UnsafeCountUnset returns the number of unset bits in [start, start+count).
func (b *ConcurrentBitmap) UnsafeCountUnset(start, count int) int {
	unset := 0
	for i := start; i < start+count; i++ {
		if !b.UnsafeIsSet(i) {
			unset++
		}
	}
	return unset
}
