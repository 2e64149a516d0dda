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

// Package reflink handles the whole-file dedup case reached from
// remap_file_range(REMAP_FILE_DEDUP) (spec §4.5).
package reflink

import "encoding/binary"

// MarkerSize is the byte length of the payload written into a dedup
// destination inode's first block (spec §6: "{source_ino: u64}
// (little-endian)").
const MarkerSize = 8

// Marker is the decoded form of a dedup destination's block 0.
type Marker struct {
	SourceIno uint64
}

// EncodeMarker returns the little-endian on-disk payload for m.
func EncodeMarker(m Marker) []byte {
	buf := make([]byte, MarkerSize)
	binary.LittleEndian.PutUint64(buf, m.SourceIno)
	return buf
}

// DecodeMarker interprets buf (at least MarkerSize bytes) as a Marker.
func DecodeMarker(buf []byte) (Marker, error) {
	if len(buf) < MarkerSize {
		return Marker{}, ErrInvalidMarker
	}
	return Marker{SourceIno: binary.LittleEndian.Uint64(buf[:MarkerSize])}, nil
}
