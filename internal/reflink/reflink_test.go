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

package reflink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bachm44/nilfs2dedup/internal/inode"
	"github.com/bachm44/nilfs2dedup/internal/metrics"
)

const blockSize = 8

// S5 — reflink whole file.
func TestDedup_WholeFileReflink(t *testing.T) {
	a := inode.NewMemInode(1, []byte("X"))
	b := inode.NewMemInode(2, []byte("X"))

	require.NoError(t, ValidateRemapArgs(0, 0, 1, a.Size(), RemapFileDedup))
	require.NoError(t, Dedup(context.Background(), a, b, blockSize, metrics.New()))

	assert.True(t, b.IsDedupMarker())
	assert.EqualValues(t, MarkerSize, b.Size())
	assert.EqualValues(t, 1, a.DedupRefCount())

	buf := make([]byte, MarkerSize)
	n, err := b.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	m, err := DecodeMarker(buf[:n])
	require.NoError(t, err)
	assert.EqualValues(t, a.ID(), m.SourceIno)
}

// S6 — reflink chain rejected.
func TestDedup_ChainRejected(t *testing.T) {
	a := inode.NewMemInode(1, []byte("X"))
	b := inode.NewMemInode(2, []byte("X"))
	c := inode.NewMemInode(3, []byte("X"))

	require.NoError(t, Dedup(context.Background(), a, b, blockSize, metrics.New()))

	err := Dedup(context.Background(), c, b, blockSize, metrics.New())
	assert.ErrorIs(t, err, ErrUnsupported)
	// b untouched by the rejected second call: still pointing at a.
	assert.EqualValues(t, 1, a.DedupRefCount())
	assert.EqualValues(t, 0, c.DedupRefCount())
	buf := make([]byte, MarkerSize)
	n, err := b.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	m, err := DecodeMarker(buf[:n])
	require.NoError(t, err)
	assert.EqualValues(t, a.ID(), m.SourceIno)
}

func TestDedup_MultiBlockSourceRejected(t *testing.T) {
	a := inode.NewMemInode(1, make([]byte, blockSize+1))
	b := inode.NewMemInode(2, make([]byte, blockSize+1))

	err := Dedup(context.Background(), a, b, blockSize, metrics.New())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestValidateRemapArgs(t *testing.T) {
	assert.NoError(t, ValidateRemapArgs(0, 0, 10, 10, RemapFileDedup))
	assert.Error(t, ValidateRemapArgs(1, 0, 10, 10, RemapFileDedup))
	assert.Error(t, ValidateRemapArgs(0, 0, 5, 10, RemapFileDedup))
	assert.Error(t, ValidateRemapArgs(0, 0, 10, 10, 0))
}
