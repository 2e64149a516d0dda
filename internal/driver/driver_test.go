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

package driver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bachm44/nilfs2dedup/internal/dat"
	"github.com/bachm44/nilfs2dedup/internal/gcstaging"
	"github.com/bachm44/nilfs2dedup/internal/metrics"
	"github.com/bachm44/nilfs2dedup/internal/segment"
	"github.com/bachm44/nilfs2dedup/internal/txn"
)

func newDriver(store *dat.MemStore, w *segment.FakeWriter) (*Driver, *gcstaging.List) {
	tx := txn.New(&sync.Mutex{}, store, w)
	staging := gcstaging.New()
	return New(store, tx, staging, metrics.New()), staging
}

// S1 — single-pair success, implicit convention.
func TestDedup_SinglePairSuccess(t *testing.T) {
	store := dat.NewMemStore()
	store.Seed(
		dat.Standard{Vblocknr: 10, Blocknr: 1000},
		dat.Standard{Vblocknr: 20, Blocknr: 2000},
	)
	d, staging := newDriver(store, segment.NewFakeWriter())
	staging.Stage(42)
	staging.SetGCRunning(true)

	n, err := d.Dedup(context.Background(), 1, []Descriptor{
		{VBlockNr: 10},
		{VBlockNr: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := store.Translate(20)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, p)

	assert.Empty(t, staging.Staged())
	assert.False(t, staging.GCRunning())
}

// S2 — self-link rejected, explicit convention.
func TestDedup_SelfLinkSkipped(t *testing.T) {
	store := dat.NewMemStore()
	store.Seed(dat.Standard{Vblocknr: 10, Blocknr: 1000})
	d, _ := newDriver(store, segment.NewFakeWriter())

	n, err := d.Dedup(context.Background(), 1, []Descriptor{
		{VBlockNr: 10, Flags: FlagSrc},
		{VBlockNr: 10, Flags: FlagDst},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// S3 — destination already a DESTINATION.
func TestDedup_DestinationAlreadyDestinationSkipped(t *testing.T) {
	store := dat.NewMemStore()
	store.Seed(
		dat.Standard{Vblocknr: 10, Blocknr: 1000},
		dat.Standard{Vblocknr: 20, Blocknr: 2000},
		dat.Standard{Vblocknr: 30, Blocknr: 3000},
	)
	d, _ := newDriver(store, segment.NewFakeWriter())

	_, err := d.Dedup(context.Background(), 1, []Descriptor{{VBlockNr: 10}, {VBlockNr: 20}})
	require.NoError(t, err)

	n, err := d.Dedup(context.Background(), 1, []Descriptor{
		{VBlockNr: 30, Flags: FlagSrc},
		{VBlockNr: 20, Flags: FlagDst},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// S4 — multi-destination, mixed outcomes, explicit convention.
func TestDedup_MultiDestinationMixedOutcomes(t *testing.T) {
	store := dat.NewMemStore()
	store.Seed(
		dat.Standard{Vblocknr: 10, Blocknr: 1000},
		dat.Standard{Vblocknr: 20, Blocknr: 2000},
		dat.Standard{Vblocknr: 30, Blocknr: 0}, // translation fails: no live block
		dat.Standard{Vblocknr: 40, Blocknr: 4000},
	)
	d, _ := newDriver(store, segment.NewFakeWriter())

	n, err := d.Dedup(context.Background(), 1, []Descriptor{
		{VBlockNr: 10, Flags: FlagSrc},
		{VBlockNr: 20, Flags: FlagDst},
		{VBlockNr: 30, Flags: FlagDst},
		{VBlockNr: 40, Flags: FlagDst},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t10, _ := store.Translate(10)
	t20, _ := store.Translate(20)
	t40, _ := store.Translate(40)
	assert.Equal(t, t10, t20)
	assert.Equal(t, t10, t40)
}

func TestDedup_TooFewBlocksRejected(t *testing.T) {
	store := dat.NewMemStore()
	d, _ := newDriver(store, segment.NewFakeWriter())

	_, err := d.Dedup(context.Background(), 1, []Descriptor{{VBlockNr: 10}})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = d.Dedup(context.Background(), 1, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDedup_StrayDstBeforeSrcSkipped(t *testing.T) {
	store := dat.NewMemStore()
	store.Seed(
		dat.Standard{Vblocknr: 10, Blocknr: 1000},
		dat.Standard{Vblocknr: 20, Blocknr: 2000},
		dat.Standard{Vblocknr: 30, Blocknr: 3000},
	)
	d, _ := newDriver(store, segment.NewFakeWriter())

	n, err := d.Dedup(context.Background(), 1, []Descriptor{
		{VBlockNr: 20, Flags: FlagDst}, // stray, no SRC seen yet
		{VBlockNr: 10, Flags: FlagSrc},
		{VBlockNr: 30, Flags: FlagDst},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Translate(20)
	// 20 was never touched: still STANDARD, translates to its own block.
	require.NoError(t, err)
	p, _ := store.Translate(20)
	assert.EqualValues(t, 2000, p)
}

func TestMarkSuperblockNeedsUpdate_Idempotent(t *testing.T) {
	store := dat.NewMemStore()
	d, _ := newDriver(store, segment.NewFakeWriter())

	d.MarkSuperblockNeedsUpdate()
	d.MarkSuperblockNeedsUpdate()
	assert.True(t, d.discontinued)
}
