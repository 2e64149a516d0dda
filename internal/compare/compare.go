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

// Package compare proves byte-equality between two inodes' data extents
// (spec §4.2), the precondition every dedup pair must satisfy before the
// DAT is touched.
package compare

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/bachm44/nilfs2dedup/internal/logger"
)

// BlockSource is the page-cache-backed view of one inode's data that the
// comparator reads through. A real mount backs this with the buffer cache
// (the "excluded collaborator" of spec §1); tests back it with an
// in-memory byte slice.
type BlockSource interface {
	// Size is the inode's current byte length.
	Size() int64

	// ReadAt fetches len(p) bytes starting at off, the way
	// gcsproxy.MutableContent's ReadAt reads through a lease.ReadProxy.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
}

// ExtentsEqual compares src and dst block-by-block (spec §4.2). It returns
// false, not an error, on any mismatch or I/O failure — the caller decides
// whether that is ContentMismatch or a plain "not eligible, try again
// later"; only a logged warning distinguishes the two paths here.
func ExtentsEqual(ctx context.Context, src, dst BlockSource, blockSize int64) bool {
	if src.Size() != dst.Size() {
		return false
	}
	if blockSize <= 0 {
		logger.Warnf("compare: invalid block size %d", blockSize)
		return false
	}

	size := src.Size()
	srcBuf := make([]byte, blockSize)
	dstBuf := make([]byte, blockSize)

	for off := int64(0); off < size; off += blockSize {
		n := blockSize
		if remaining := size - off; remaining < n {
			n = remaining
		}

		sn, err := readFull(ctx, src, srcBuf[:n], off)
		if err != nil {
			logger.Warnf("compare: reading source block at offset %d: %v", off, err)
			return false
		}
		dn, err := readFull(ctx, dst, dstBuf[:n], off)
		if err != nil {
			logger.Warnf("compare: reading destination block at offset %d: %v", off, err)
			return false
		}
		if sn != dn || !bytes.Equal(srcBuf[:sn], dstBuf[:dn]) {
			return false
		}
	}

	return true
}

func readFull(ctx context.Context, s BlockSource, p []byte, off int64) (int, error) {
	n, err := s.ReadAt(ctx, p, off)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read at %d: %w", off, err)
	}
	return n, nil
}
