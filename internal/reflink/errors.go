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

import "errors"

// ErrInvalidMarker means a buffer too short to hold a Marker was decoded.
var ErrInvalidMarker = errors.New("reflink: buffer too small for marker")

// ErrUnsupported covers every input the reflink path refuses outright
// (spec §7, §8): chaining onto an already-deduplicated inode, a
// multi-block source, or a remap call outside the accepted flag/offset/
// length combination.
var ErrUnsupported = errors.New("reflink: unsupported")

// ErrContentMismatch means the comparator found the source and
// destination extents are not byte-equal (spec §7: "ContentMismatch —
// comparator reports unequal blocks. The caller of the reflink path
// receives a bad-extent error.").
var ErrContentMismatch = errors.New("reflink: source and destination content differ")
