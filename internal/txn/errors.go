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

package txn

import "errors"

// ErrDatTranslateFailed means the destination's current translation could
// not be resolved — the block is already gone (spec §4.3, §7).
var ErrDatTranslateFailed = errors.New("txn: destination translation failed")

// ErrSegmentWriteFailed means the segment writer rejected the commit
// (spec §4.3, §7).
var ErrSegmentWriteFailed = errors.New("txn: segment write failed")
