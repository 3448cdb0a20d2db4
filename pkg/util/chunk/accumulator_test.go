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
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexdb/vex/pkg/types"
)

func int64Chunk(vals ...int64) *Chunk {
	chk := NewChunkWithCapacity([]*types.FieldType{types.NewFieldType(types.KindInt64)}, len(vals))
	for _, v := range vals {
		chk.Column(0).AppendInt64(v)
	}
	return chk
}

func TestAccumulatorBatching(t *testing.T) {
	var acc Accumulator
	acc.SetDesiredSize(5)
	require.True(t, acc.Empty())

	acc.Push(int64Chunk(1, 2))
	require.Nil(t, acc.Pull())
	require.False(t, acc.Empty())

	acc.Push(int64Chunk(3, 4))
	require.Nil(t, acc.Pull())

	// Crossing the desired size releases one consolidated chunk.
	acc.Push(int64Chunk(5, 6))
	got := acc.Pull()
	require.NotNil(t, got)
	require.Equal(t, 6, got.NumRows())
	for i := 0; i < 6; i++ {
		require.Equal(t, int64(i+1), got.GetRow(i).GetInt64(0))
	}
	require.True(t, acc.Empty())
	require.Nil(t, acc.Pull())
}

func TestAccumulatorOversizedPush(t *testing.T) {
	var acc Accumulator
	acc.SetDesiredSize(4)

	// A chunk already at or above the desired size passes through intact.
	acc.Push(int64Chunk(1, 2, 3, 4, 5, 6))
	got := acc.Pull()
	require.NotNil(t, got)
	require.Equal(t, 6, got.NumRows())
}

func TestAccumulatorFinalize(t *testing.T) {
	var acc Accumulator
	acc.SetDesiredSize(10)

	acc.Push(int64Chunk(1, 2, 3))
	require.Nil(t, acc.Pull())

	acc.Finalize()
	got := acc.Pull()
	require.NotNil(t, got)
	require.Equal(t, 3, got.NumRows())
	require.Nil(t, acc.Pull())
	require.True(t, acc.Empty())

	// Finalize with nothing buffered releases nothing.
	acc.Finalize()
	require.Nil(t, acc.Pull())

	// The accumulator can be reused after a finalize.
	acc.Push(int64Chunk(7))
	acc.Finalize()
	got = acc.Pull()
	require.NotNil(t, got)
	require.Equal(t, int64(7), got.GetRow(0).GetInt64(0))
}

func TestAccumulatorIgnoresEmptyChunks(t *testing.T) {
	var acc Accumulator
	acc.SetDesiredSize(2)
	acc.Push(nil)
	acc.Push(int64Chunk())
	require.True(t, acc.Empty())
	acc.Finalize()
	require.Nil(t, acc.Pull())
}
