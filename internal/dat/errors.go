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
	"errors"
	"fmt"
)

// Sentinel errors from the DAT-entry editor (spec §4.1, §7). Per-pair
// callers use errors.Is against these to decide whether to skip and
// continue.
var (
	// ErrInvalidEntry means a vblocknr has no live physical block backing
	// it (its BlockNr field is zero).
	ErrInvalidEntry = errors.New("dat: invalid entry (no live block)")

	// ErrNotEligible means a transition was attempted on an entry whose
	// state is not STANDARD, or PromoteToDestination was given a source
	// whose state is not SOURCE.
	ErrNotEligible = errors.New("dat: entry not eligible (state is not STANDARD)")

	// ErrSelfLink means src_vblocknr == dst_vblocknr.
	ErrSelfLink = errors.New("dat: source and destination vblocknr are identical")
)

// EntryError wraps one of the sentinel errors above with the vblocknr it
// was raised for, so log lines can name the offending entry without every
// caller having to format it by hand.
type EntryError struct {
	VBlockNr VBlockNr
	Err      error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("dat: vblocknr %d: %v", e.VBlockNr, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

func invalidEntry(v VBlockNr) error  { return &EntryError{VBlockNr: v, Err: ErrInvalidEntry} }
func notEligible(v VBlockNr) error   { return &EntryError{VBlockNr: v, Err: ErrNotEligible} }
func selfLink(v VBlockNr) error      { return &EntryError{VBlockNr: v, Err: ErrSelfLink} }
