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

package fuseshim

import (
	"context"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bachm44/nilfs2dedup/internal/inode"
	"github.com/bachm44/nilfs2dedup/internal/metrics"
	"github.com/bachm44/nilfs2dedup/internal/reflink"
)

func TestRemapFileRange_WholeFileDedup(t *testing.T) {
	src := inode.NewMemInode(1, []byte("XXXXXXXX"))
	dst := inode.NewMemInode(2, []byte("XXXXXXXX"))

	lookup := func(_ context.Context, id fuseops.InodeID) (inode.Inode, bool) {
		switch id {
		case 1:
			return src, true
		case 2:
			return dst, true
		}
		return nil, false
	}

	n, err := RemapFileRange(context.Background(), RemapFileRangeOp{
		Src: 1, Dst: 2, Len: 8, Flags: reflink.RemapFileDedup,
	}, lookup, 8, metrics.New())
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)
	assert.True(t, dst.IsDedupMarker())
}

func TestRemapFileRange_UnknownInode(t *testing.T) {
	lookup := func(context.Context, fuseops.InodeID) (inode.Inode, bool) { return nil, false }
	_, err := RemapFileRange(context.Background(), RemapFileRangeOp{Src: 1, Dst: 2, Len: 1}, lookup, 8, metrics.New())
	assert.Error(t, err)
}

func TestReadFile_DelegatesAfterMaterialisation(t *testing.T) {
	src := inode.NewMemInode(1, []byte("hello"))
	dst := inode.NewMemInode(2, []byte("hello"))
	require.NoError(t, reflink.Dedup(context.Background(), src, dst, 8, metrics.New()))

	lookup := func(_ context.Context, ino uint64) (inode.Inode, bool) {
		if ino == uint64(src.ID()) {
			return src, true
		}
		return nil, false
	}

	data, err := ReadFile(context.Background(), ReadFileOp{Inode: 2, Offset: 0, Size: 5}, dst, lookup)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
