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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeededStore(t *testing.T) *MemStore {
	t.Helper()
	s := NewMemStore()
	s.Seed(
		Standard{Vblocknr: 10, Blocknr: 1000},
		Standard{Vblocknr: 20, Blocknr: 2000},
		Standard{Vblocknr: 30, Blocknr: 3000},
		Standard{Vblocknr: 40, Blocknr: 4000},
	)
	return s
}

// S1 — single-pair success (spec §8).
func TestDedupPair_SinglePairSuccess(t *testing.T) {
	s := newSeededStore(t)

	require.NoError(t, DedupPair(s, 10, 20))
	s.Commit()

	src, err := s.Load(10)
	require.NoError(t, err)
	assert.Equal(t, StateSource, src.(Source).entryState())
	assert.EqualValues(t, 2, src.ReferenceCount())

	dst, err := s.Load(20)
	require.NoError(t, err)
	assert.Equal(t, StateDestination, dst.(Destination).entryState())

	p, err := s.Translate(20)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, p)
}

// S2 — self-link rejected.
func TestDedupPair_SelfLinkRejected(t *testing.T) {
	s := newSeededStore(t)

	err := DedupPair(s, 10, 10)
	assert.ErrorIs(t, err, ErrSelfLink)

	s.Rollback()
	e, err := s.Load(10)
	require.NoError(t, err)
	assert.Equal(t, StateStandard, e.(Standard).entryState())
}

// S3 — destination already a DESTINATION.
func TestDedupPair_DestinationAlreadyDestination(t *testing.T) {
	s := newSeededStore(t)
	require.NoError(t, DedupPair(s, 10, 20))
	s.Commit()

	err := DedupPair(s, 30, 20)
	assert.ErrorIs(t, err, ErrNotEligible)
}

// S4 — multi-destination, mixed outcomes.
func TestDedupPair_MultiDestinationMixedOutcomes(t *testing.T) {
	s := newSeededStore(t)

	require.NoError(t, DedupPair(s, 10, 20))
	s.Commit()

	// 30's translation fails: simulate by giving it no live block.
	s.Seed(Standard{Vblocknr: 30, Blocknr: 0})
	err := DedupPair(s, 10, 30)
	assert.ErrorIs(t, err, ErrInvalidEntry)
	s.Rollback()

	require.NoError(t, DedupPair(s, 10, 40))
	s.Commit()

	t20, err := s.Translate(20)
	require.NoError(t, err)
	t40, err := s.Translate(40)
	require.NoError(t, err)
	t10, err := s.Translate(10)
	require.NoError(t, err)
	assert.Equal(t, t10, t20)
	assert.Equal(t, t10, t40)

	src, err := s.Load(10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, src.ReferenceCount())
}

// Invariant 1.
func TestPromoteToSource_SetsStateAndRefcount(t *testing.T) {
	s := newSeededStore(t)
	e, err := PromoteToSource(s, 10)
	require.NoError(t, err)
	assert.Equal(t, StateSource, e.entryState())
	assert.GreaterOrEqual(t, e.ReferenceCount(), uint32(1))
}

// Invariant 2.
func TestPromoteToDestination_TranslatesThroughSource(t *testing.T) {
	s := newSeededStore(t)
	_, err := PromoteToSource(s, 10)
	require.NoError(t, err)
	_, err = PromoteToDestination(s, 10, 20)
	require.NoError(t, err)
	s.Commit()

	td, err := s.Translate(20)
	require.NoError(t, err)
	ts, err := s.Translate(10)
	require.NoError(t, err)
	assert.Equal(t, ts, td)
}

// Invariant 5: dedup is not idempotent on an already-deduplicated pair.
func TestDedupPair_AlreadyDeduplicatedIsRejected(t *testing.T) {
	s := newSeededStore(t)
	require.NoError(t, DedupPair(s, 10, 20))
	s.Commit()

	err := DedupPair(s, 10, 20)
	assert.ErrorIs(t, err, ErrNotEligible)
}

// Round-trip/law: promote_to_source followed by rollback leaves the entry
// observably STANDARD.
func TestPromoteToSource_RollbackRestoresStandard(t *testing.T) {
	s := newSeededStore(t)
	_, err := PromoteToSource(s, 10)
	require.NoError(t, err)

	s.Rollback()

	e, err := s.Load(10)
	require.NoError(t, err)
	assert.Equal(t, StateStandard, e.(Standard).entryState())
}

func TestPromoteToSource_InvalidEntry(t *testing.T) {
	s := NewMemStore()
	s.Seed(Standard{Vblocknr: 1, Blocknr: 0})
	_, err := PromoteToSource(s, 1)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestPromoteToSource_NotEligibleOnDestination(t *testing.T) {
	s := newSeededStore(t)
	require.NoError(t, DedupPair(s, 10, 20))
	s.Commit()

	_, err := PromoteToSource(s, 20)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestPromoteToDestination_SelfLink(t *testing.T) {
	s := newSeededStore(t)
	_, err := PromoteToDestination(s, 10, 10)
	assert.ErrorIs(t, err, ErrSelfLink)
}

func TestPromoteToDestination_UnknownVBlockNrSkipped(t *testing.T) {
	s := newSeededStore(t)
	_, err := PromoteToSource(s, 10)
	require.NoError(t, err)

	_, err = PromoteToDestination(s, 10, 999)
	assert.Error(t, err)
}
