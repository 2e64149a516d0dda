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

// Package dat models the Disk Address Translation map: the persistent,
// indirect map from virtual block numbers to physical block numbers that
// every file's block map is addressed through (spec §3).
package dat

import "fmt"

// VBlockNr is a stable, logical block address held in a file's block map.
type VBlockNr uint64

// BlockNr is a concrete physical location on the device.
type BlockNr uint64

// State is the three-valued lifecycle a DAT entry moves through (spec §3).
type State int

const (
	StateStandard State = iota
	StateSource
	StateDestination
)

func (s State) String() string {
	switch s {
	case StateStandard:
		return "STANDARD"
	case StateSource:
		return "SOURCE"
	case StateDestination:
		return "DESTINATION"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RawEntry is the on-disk encoding of a DAT entry (spec §6, "Persistent
// state"): unchanged layout, three-valued state, and the overloaded
// BlockNr field a DESTINATION entry repurposes to hold its source's
// VBlockNr.
type RawEntry struct {
	VBlockNr       VBlockNr
	BlockNr        BlockNr // overloaded: holds a VBlockNr when State == StateDestination
	Start          uint64
	End            uint64
	ReferenceCount uint32
	State          State
}

// Entry is the in-memory, type-safe view of a RawEntry. Go has no sum
// types, so the three lifecycle states are modeled as three structs behind
// a closed interface instead of a raw three-valued enum plus an overloaded
// field — the representation the design notes (spec §9) call for:
// "a tagged variant... rather than three-valued state + overloaded field;
// this eliminates the overload hazard while preserving on-disk format."
// DecodeEntry/EncodeEntry convert to and from the RawEntry layout that
// actually gets persisted.
type Entry interface {
	// VBlockNr is the key every variant is stored under.
	VBlockNr() VBlockNr

	// ReferenceCount is the number of logical holders (spec §3).
	ReferenceCount() uint32

	entryState() State
	raw() RawEntry
}

// Standard is a DAT entry that has not participated in a dedup: it
// resolves directly to a physical block and nothing points at it via a
// Destination.
type Standard struct {
	Vblocknr VBlockNr
	Blocknr  BlockNr
	Start    uint64
	End      uint64
}

func (e Standard) VBlockNr() VBlockNr      { return e.Vblocknr }
func (e Standard) ReferenceCount() uint32  { return 1 }
func (e Standard) entryState() State       { return StateStandard }
func (e Standard) raw() RawEntry {
	return RawEntry{
		VBlockNr: e.Vblocknr, BlockNr: e.Blocknr, Start: e.Start, End: e.End,
		ReferenceCount: 1, State: StateStandard,
	}
}

// Source is a DAT entry that one or more Destination entries now point at.
// ReferenceCount is 1 (itself) plus the number of Destinations pointing at
// it (spec §3 invariant).
type Source struct {
	Vblocknr VBlockNr
	Blocknr  BlockNr
	Start    uint64
	End      uint64
	Refs     uint32 // 1 + count of destinations pointing here
}

func (e Source) VBlockNr() VBlockNr     { return e.Vblocknr }
func (e Source) ReferenceCount() uint32 { return e.Refs }
func (e Source) entryState() State      { return StateSource }
func (e Source) raw() RawEntry {
	return RawEntry{
		VBlockNr: e.Vblocknr, BlockNr: e.Blocknr, Start: e.Start, End: e.End,
		ReferenceCount: e.Refs, State: StateSource,
	}
}

// Destination is a DAT entry that has been redirected to resolve through a
// Source entry instead of a physical block of its own. SourceVBlockNr is
// the decoded form of the on-disk overloaded BlockNr field.
type Destination struct {
	Vblocknr       VBlockNr
	SourceVBlockNr VBlockNr
	Start          uint64
	End            uint64
}

func (e Destination) VBlockNr() VBlockNr     { return e.Vblocknr }
func (e Destination) ReferenceCount() uint32 { return 1 }
func (e Destination) entryState() State      { return StateDestination }
func (e Destination) raw() RawEntry {
	return RawEntry{
		VBlockNr: e.Vblocknr, BlockNr: BlockNr(e.SourceVBlockNr), Start: e.Start, End: e.End,
		ReferenceCount: 1, State: StateDestination,
	}
}

var (
	_ Entry = Standard{}
	_ Entry = Source{}
	_ Entry = Destination{}
)

// EncodeEntry returns the persistent encoding of e.
func EncodeEntry(e Entry) RawEntry { return e.raw() }

// DecodeEntry interprets a RawEntry's State field and returns the
// corresponding tagged variant.
func DecodeEntry(r RawEntry) Entry {
	switch r.State {
	case StateSource:
		return Source{Vblocknr: r.VBlockNr, Blocknr: r.BlockNr, Start: r.Start, End: r.End, Refs: r.ReferenceCount}
	case StateDestination:
		return Destination{Vblocknr: r.VBlockNr, SourceVBlockNr: VBlockNr(r.BlockNr), Start: r.Start, End: r.End}
	default:
		return Standard{Vblocknr: r.VBlockNr, Blocknr: r.BlockNr, Start: r.Start, End: r.End}
	}
}
