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

// Package txn wraps one (src, dst) dedup pair in a filesystem transaction
// (spec §4.3): acquire the transaction lock, mutate the DAT, ask the
// segment writer to emit the log write, release. Any failure after the DAT mutation clears the staged,
// uncommitted pre-image before the lock is released.
package txn

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bachm44/nilfs2dedup/internal/clock"
	"github.com/bachm44/nilfs2dedup/internal/dat"
	"github.com/bachm44/nilfs2dedup/internal/logger"
	"github.com/bachm44/nilfs2dedup/internal/segment"
)

// Transaction runs one dedup pair to completion under a shared filesystem
// lock. Its zero value is not usable; construct with New.
type Transaction struct {
	// lock is the filesystem transaction lock (spec §5: "the filesystem
	// transaction lock serialises DAT mutations across all writers").
	// Every Dedup call holds it for the whole pair, so pairs run through
	// the same lock commit in strict sequential order.
	lock *sync.Mutex

	store  dat.Store
	writer segment.Writer
	clock  clock.Clock
}

// New returns a Transaction over store and writer, serialised by lock,
// timestamping its trace log with the real wall clock.
func New(lock *sync.Mutex, store dat.Store, writer segment.Writer) *Transaction {
	return NewWithClock(lock, store, writer, clock.RealClock{})
}

// NewWithClock is New with an injectable clock, for tests that need to
// assert on the logged begin/commit duration without sleeping.
func NewWithClock(lock *sync.Mutex, store dat.Store, writer segment.Writer, clk clock.Clock) *Transaction {
	return &Transaction{lock: lock, store: store, writer: writer, clock: clk}
}

// Dedup runs one (src, dst) pair: verify, mutate, write, commit — or clear
// the staged pre-image and release on any failure.
func (t *Transaction) Dedup(ctx context.Context, src, dst dat.VBlockNr) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	id := uuid.NewString()
	begin := t.clock.Now()
	logger.Tracef("txn %s: begin dedup src=%d dst=%d at %s", id, src, dst, begin.Format("15:04:05.000"))

	if _, err := t.store.Translate(dst); err != nil {
		logger.Warnf("txn %s: destination %d not resolvable: %v", id, dst, err)
		return fmt.Errorf("%w: %v", ErrDatTranslateFailed, err)
	}

	if err := dat.DedupPair(t.store, src, dst); err != nil {
		t.store.Rollback()
		logger.Warnf("txn %s: rollback: dedup_pair src=%d dst=%d after %s: %v", id, src, dst, t.clock.Now().Sub(begin), err)
		return err
	}

	if err := t.writer.MoveBlock(ctx, segment.MoveBlock{SrcVBlockNr: src, DstVBlockNr: dst}); err != nil {
		t.store.Rollback()
		logger.Warnf("txn %s: rollback: segment write src=%d dst=%d after %s: %v", id, src, dst, t.clock.Now().Sub(begin), err)
		return fmt.Errorf("%w: %v", ErrSegmentWriteFailed, err)
	}

	t.store.Commit()
	logger.Tracef("txn %s: commit dedup src=%d dst=%d after %s", id, src, dst, t.clock.Now().Sub(begin))
	return nil
}
