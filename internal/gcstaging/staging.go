// Copyright 2025 Google LLC
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

// Package gcstaging models the filesystem's in-memory GC-inode list
// reused as a dedup staging area (spec §4.4, §5): "the in-memory GC-inode
// list is reused as a staging list... concurrent GC is prohibited while
// dedup is in progress."
package gcstaging

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bachm44/nilfs2dedup/internal/logger"
)

// runKey is the singleflight key every dedup run shares: there is only
// ever one logical "is a dedup run in progress" question to ask.
const runKey = "dedup-run"

// List is the staging list plus the "gc-running" flag the driver's
// pre-flight/post-flight steps manipulate (spec §4.4).
type List struct {
	mu        sync.Mutex
	inodes    []uint64
	gcRunning bool

	group singleflight.Group
}

// New returns an empty staging list.
func New() *List {
	return &List{}
}

// Stage appends ino to the staging list.
func (l *List) Stage(ino uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inodes = append(l.inodes, ino)
}

// Staged returns a snapshot of the currently staged inode numbers.
func (l *List) Staged() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint64, len(l.inodes))
	copy(out, l.inodes)
	return out
}

// Clear empties the staging list (spec §4.4 post-flight: "clear the
// GC-inode staging list").
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inodes = nil
}

// SetGCRunning flips the "gc-running" flag. The driver's post-flight step
// clears it (spec §4.4: "clear the... 'gc-running' flag").
func (l *List) SetGCRunning(running bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gcRunning = running
}

// GCRunning reports whether the GC sweep that owns this staging list is
// currently in progress.
func (l *List) GCRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gcRunning
}

// RunExclusive runs fn only if no other dedup run is currently using this
// staging list, collapsing concurrent callers onto the in-flight run the
// way the underlying filesystem's single-writer assumption on the
// GC-inode list forbids concurrent GC while dedup is in progress (spec
// §5). Extends beyond spec.md's literal scope: the spec assumes a single
// caller thread and does not itself define concurrent-run arbitration;
// this is a defensive adaptation recorded in DESIGN.md.
func (l *List) RunExclusive(fn func() (int, error)) (int, error) {
	v, err, shared := l.group.Do(runKey, func() (interface{}, error) {
		n, err := fn()
		return n, err
	})
	if shared {
		logger.Debugf("gcstaging: dedup run result shared with a concurrent caller")
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
