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

package dat

import "sync"

// Store is the DAT metadata inode's block map, abstracted down to the
// operations the editor (§4.1) needs. A real mount backs this with the DAT
// inode's own block map read through the buffer cache; tests and the
// in-process driver back it with MemStore.
//
// Stage freezes the pre-image of the entry it replaces: a Stage call does
// not become visible to Load/Translate until Commit runs. Rollback discards
// every staged write since the last Commit, which is how the enclosing
// transaction (package txn) undoes a completed promote_to_source when
// promote_to_destination subsequently fails inside DedupPair (spec §4.1,
// §4.3: "clear the DAT's dirty bit before releasing").
//
// Isolation of concurrent readers from an in-flight Stage is provided by the
// caller holding the filesystem transaction lock (package txn) for the
// whole pair, not by Store itself — spec §5 serialises all DAT mutation
// through that single lock, so Store only needs to support the commit/
// rollback pair, not per-entry reader isolation.
type Store interface {
	// Load returns the current entry for v: the staged value if Stage has
	// been called for v since the last Commit/Rollback, else the committed
	// value. Returns InvalidEntry-wrapping error if v has never been seen.
	Load(v VBlockNr) (Entry, error)

	// Stage records e as v's new value, pending Commit. It does not mutate
	// committed state.
	Stage(e Entry) error

	// Translate resolves v all the way to a physical BlockNr, following a
	// DESTINATION's back-reference through its SOURCE.
	Translate(v VBlockNr) (BlockNr, error)

	// Commit promotes every staged write to committed and clears the
	// staged set.
	Commit()

	// Rollback discards every staged write since the last Commit.
	Rollback()
}

// MemStore is an in-memory Store, used by the driver's tests and by any
// caller that has already materialised the DAT's block map into memory.
type MemStore struct {
	mu        sync.Mutex
	committed map[VBlockNr]RawEntry
	staged    map[VBlockNr]RawEntry
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		committed: make(map[VBlockNr]RawEntry),
		staged:    make(map[VBlockNr]RawEntry),
	}
}

// Seed installs entries as already-committed state, for test setup.
func (s *MemStore) Seed(entries ...Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.committed[e.VBlockNr()] = EncodeEntry(e)
	}
}

func (s *MemStore) Load(v VBlockNr) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(v)
}

func (s *MemStore) loadLocked(v VBlockNr) (Entry, error) {
	if r, ok := s.staged[v]; ok {
		return DecodeEntry(r), nil
	}
	if r, ok := s.committed[v]; ok {
		return DecodeEntry(r), nil
	}
	return nil, invalidEntry(v)
}

func (s *MemStore) Stage(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[e.VBlockNr()] = EncodeEntry(e)
	return nil
}

func (s *MemStore) Translate(v VBlockNr) (BlockNr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translateLocked(v, 0)
}

// translateLocked follows at most one DESTINATION hop; spec §3 forbids
// DESTINATION→DESTINATION chains, so depth never needs to exceed 1, but the
// guard keeps a corrupt chain from spinning forever instead of surfacing as
// InvalidEntry.
func (s *MemStore) translateLocked(v VBlockNr, depth int) (BlockNr, error) {
	if depth > 1 {
		return 0, invalidEntry(v)
	}
	e, err := s.loadLocked(v)
	if err != nil {
		return 0, err
	}
	switch te := e.(type) {
	case Standard:
		if te.Blocknr == 0 {
			return 0, invalidEntry(v)
		}
		return te.Blocknr, nil
	case Source:
		if te.Blocknr == 0 {
			return 0, invalidEntry(v)
		}
		return te.Blocknr, nil
	case Destination:
		return s.translateLocked(te.SourceVBlockNr, depth+1)
	default:
		return 0, invalidEntry(v)
	}
}

func (s *MemStore) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.staged {
		s.committed[k] = v
	}
	s.staged = make(map[VBlockNr]RawEntry)
}

func (s *MemStore) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = make(map[VBlockNr]RawEntry)
}
