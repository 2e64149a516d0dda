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

	"github.com/bachm44/nilfs2dedup/internal/compare"
	"github.com/bachm44/nilfs2dedup/internal/inode"
	"github.com/bachm44/nilfs2dedup/internal/logger"
	"github.com/bachm44/nilfs2dedup/internal/metrics"
)

// RemapFileDedup is the flag bit this module accepts on remap_file_range
// (spec §6), matching Linux's REMAP_FILE_DEDUP (1 << 0).
const RemapFileDedup = 1 << 0

// ValidateRemapArgs checks the remap_file_range arguments against the one
// shape this module handles (spec §4.5: "both positions are zero with
// len == src.size (whole-file clone over identical content)").
func ValidateRemapArgs(srcOff, dstOff, length, srcSize int64, flags uint32) error {
	if flags&RemapFileDedup == 0 {
		return ErrUnsupported
	}
	if srcOff != 0 || dstOff != 0 {
		return ErrUnsupported
	}
	if length != srcSize {
		return ErrUnsupported
	}
	return nil
}

// Dedup runs the reflink algorithm (spec §4.5) after the caller has
// validated the remap arguments. Both inodes must already be locked under
// the VFS-provided inode locks (spec §4.5 "Contracts"); Dedup does not
// acquire them itself.
func Dedup(ctx context.Context, src, dst inode.Inode, blockSize int64, h metrics.Handle) error {
	// Step 1: reject chaining a reflink onto an already-deduplicated
	// destination before anything else runs — in particular before the
	// comparator, since a marker's 8-byte payload would otherwise fail a
	// same-size check against a differently-sized fresh source and be
	// misreported as a content mismatch instead of Unsupported (spec §7, S6).
	if dst.IsDedupMarker() {
		h.ReflinkRejected(ctx, "chained_marker")
		logger.Warnf("reflink: destination ino=%d already carries a dedup marker, chaining rejected", dst.ID())
		return ErrUnsupported
	}

	// nilfs_extent_same runs compare_extents before nilfs_clone; this
	// module keeps that ordering rather than trusting the caller's claim
	// of equality.
	if !compare.ExtentsEqual(ctx, src, dst, blockSize) {
		h.ReflinkRejected(ctx, "content_mismatch")
		logger.Warnf("reflink: source ino=%d and destination ino=%d are not byte-equal", src.ID(), dst.ID())
		return ErrContentMismatch
	}

	if src.Size() > blockSize {
		h.ReflinkRejected(ctx, "multi_block_source")
		logger.Warnf("reflink: source ino=%d spans more than one block (size=%d, block=%d)", src.ID(), src.Size(), blockSize)
		return ErrUnsupported
	}

	// Step 3: wait for in-flight direct I/O on the destination, truncate to
	// zero. This module does not model a direct-I/O wait queue; the caller
	// is expected to have already drained it under the inode lock, the way
	// the VFS remap entry point does before calling in.
	dst.Truncate(0)

	// Step 4: bump the source's in-memory dedup reference count.
	src.IncrementDedupRefCount()

	// Step 5: mark the destination as a dedup marker inode.
	dst.SetDedupMarker(true)

	// Step 6: overwrite block 0 with the marker payload; size becomes the
	// marker's byte length.
	dst.WriteBlockZero(EncodeMarker(Marker{SourceIno: uint64(src.ID())}))

	// Step 7: in a real mount, mark the destination inode dirty for
	// writeback here; MemInode has no dirty bit of its own to set because
	// every mutation above is already visible to the next Load/ReadAt.

	h.ReflinkAccepted(ctx)
	logger.Infof("reflink: ino=%d now a dedup marker pointing at source ino=%d", dst.ID(), src.ID())
	return nil
}
