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

package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerConsume(t *testing.T) {
	tracker := NewTracker("test", -1)
	require.Equal(t, int64(0), tracker.BytesConsumed())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Consume(10)
		}()
	}
	wg.Wait()
	require.Equal(t, int64(100), tracker.BytesConsumed())
	require.Equal(t, int64(100), tracker.MaxConsumed())

	tracker.Consume(-100)
	require.Equal(t, int64(0), tracker.BytesConsumed())
	require.Equal(t, int64(100), tracker.MaxConsumed())
}

func TestTrackerAttachDetach(t *testing.T) {
	parent := NewTracker("parent", -1)
	child1 := NewTracker("child1", -1)
	child2 := NewTracker("child2", -1)

	child1.Consume(50)
	child1.AttachTo(parent)
	require.Equal(t, int64(50), parent.BytesConsumed())

	child2.AttachTo(parent)
	child2.Consume(30)
	require.Equal(t, int64(80), parent.BytesConsumed())

	child1.Detach()
	require.Equal(t, int64(30), parent.BytesConsumed())
	require.Equal(t, "child1", child1.Label())

	// Re-attach moves the consumed bytes to the new parent.
	other := NewTracker("other", -1)
	child2.AttachTo(other)
	require.Equal(t, int64(0), parent.BytesConsumed())
	require.Equal(t, int64(30), other.BytesConsumed())
}
