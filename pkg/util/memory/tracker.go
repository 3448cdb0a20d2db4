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
	"sync/atomic"

	"github.com/vexdb/vex/pkg/util/logutil"
	"go.uber.org/zap"
)

// Tracker tracks the memory usage of an operator or a whole query. Trackers
// form a tree: consumption reported to a tracker is also reported to its
// ancestors. Only Consume, BytesConsumed and AttachTo are safe for
// concurrent use.
type Tracker struct {
	mu struct {
		sync.Mutex
		children []*Tracker
	}
	label         string
	bytesConsumed int64
	bytesLimit    int64
	maxConsumed   int64
	parent        *Tracker
}

// NewTracker creates a memory tracker. bytesLimit <= 0 means no limit; when
// the limit is exceeded the tracker logs, it never aborts.
func NewTracker(label string, bytesLimit int64) *Tracker {
	return &Tracker{label: label, bytesLimit: bytesLimit}
}

// Label returns the tracker's label.
func (t *Tracker) Label() string {
	return t.label
}

// AttachTo attaches this tracker as a child of parent, detaching it from its
// previous parent first. Consumed bytes move with the tracker.
func (t *Tracker) AttachTo(parent *Tracker) {
	if t.parent != nil {
		t.parent.remove(t)
	}
	parent.mu.Lock()
	parent.mu.children = append(parent.mu.children, t)
	parent.mu.Unlock()
	t.parent = parent
	t.parent.Consume(t.BytesConsumed())
}

// Detach detaches this tracker from its parent.
func (t *Tracker) Detach() {
	if t.parent == nil {
		return
	}
	t.parent.remove(t)
	t.parent = nil
}

func (t *Tracker) remove(oldChild *Tracker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, child := range t.mu.children {
		if child == oldChild {
			t.Consume(-oldChild.BytesConsumed())
			t.mu.children = append(t.mu.children[:i], t.mu.children[i+1:]...)
			return
		}
	}
}

// Consume is called when memory usage grows (bytes > 0) or shrinks
// (bytes < 0), propagating the delta to all ancestors.
func (t *Tracker) Consume(bytes int64) {
	for tracker := t; tracker != nil; tracker = tracker.parent {
		consumed := atomic.AddInt64(&tracker.bytesConsumed, bytes)
		for {
			max := atomic.LoadInt64(&tracker.maxConsumed)
			if consumed <= max || atomic.CompareAndSwapInt64(&tracker.maxConsumed, max, consumed) {
				break
			}
		}
		if tracker.bytesLimit > 0 && consumed > tracker.bytesLimit {
			logutil.BgLogger().Warn("memory usage exceeds quota",
				zap.String("label", tracker.label),
				zap.Int64("consumed", consumed),
				zap.Int64("quota", tracker.bytesLimit))
		}
	}
}

// BytesConsumed returns the number of bytes currently tracked.
func (t *Tracker) BytesConsumed() int64 {
	return atomic.LoadInt64(&t.bytesConsumed)
}

// MaxConsumed returns the high-water mark of tracked bytes.
func (t *Tracker) MaxConsumed() int64 {
	return atomic.LoadInt64(&t.maxConsumed)
}
