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

// Package segment speaks to the segment constructor / writer: the
// log-structured write-out path that is an excluded collaborator of this
// module (spec §1). The dedup transaction asks it to persist one DAT
// mutation; the real segment writer owns write ordering and segment
// allocation, neither of which this module reimplements.
package segment

import (
	"context"

	"github.com/bachm44/nilfs2dedup/internal/dat"
)

// MoveBlock describes the single log write a dedup pair's commit requires:
// the DAT entries touched by one DedupPair call, handed to the segment
// writer as a `move_block` request (spec §4.3).
type MoveBlock struct {
	SrcVBlockNr dat.VBlockNr
	DstVBlockNr dat.VBlockNr
}

// Writer is the segment constructor's entry point as seen by this module.
type Writer interface {
	// MoveBlock schedules the log write for one dedup pair. A non-nil
	// error maps to SegmentWriteFailed at the transaction layer.
	MoveBlock(ctx context.Context, mb MoveBlock) error
}

// FakeWriter is an in-memory Writer for tests: it records every accepted
// request and can be configured to reject specific destinations, modelling
// "the log writer rejects the commit" (spec §4.3, §7).
type FakeWriter struct {
	Rejected map[dat.VBlockNr]bool
	Moves    []MoveBlock
}

var _ Writer = (*FakeWriter)(nil)

// NewFakeWriter returns a writer that accepts every request.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{Rejected: make(map[dat.VBlockNr]bool)}
}

func (w *FakeWriter) MoveBlock(ctx context.Context, mb MoveBlock) error {
	if w.Rejected[mb.DstVBlockNr] {
		delete(w.Rejected, mb.DstVBlockNr)
		return ErrSegmentWriteFailed
	}
	w.Moves = append(w.Moves, mb)
	return nil
}

// RejectNext causes the next MoveBlock for this destination to fail once.
func (w *FakeWriter) RejectNext(dst dat.VBlockNr) {
	w.Rejected[dst] = true
}
