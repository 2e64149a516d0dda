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

// Package driver implements the dedup driver: it classifies a caller-
// supplied block list into (source, destination) pairs and emits one
// transaction per pair (spec §4.4).
package driver

import "github.com/bachm44/nilfs2dedup/internal/dat"

// Flag marks a Descriptor's role when the caller uses the explicit-flags
// convention (spec §3, §4.4).
type Flag int

const (
	// FlagNone means the caller is using the implicit convention:
	// blocks[0] is the source, everything after it a destination.
	FlagNone Flag = iota
	FlagSrc
	FlagDst
)

func (f Flag) String() string {
	switch f {
	case FlagSrc:
		return "SRC"
	case FlagDst:
		return "DST"
	default:
		return "NONE"
	}
}

// Descriptor is one entry of the caller-supplied block list (spec §3,
// "Deduplication block descriptor").
type Descriptor struct {
	Ino      uint64
	Cno      uint64
	VBlockNr dat.VBlockNr
	BlockNr  dat.BlockNr
	Offset   uint64
	Flags    Flag
}

// pair is one classified (source, destination) the driver will run a
// transaction for.
type pair struct {
	src Descriptor
	dst Descriptor
}

// classify turns blocks into pairs using whichever of the two input
// conventions (spec §4.4) the caller used. A FlagNone-only list is read as
// implicit; any FlagSrc/FlagDst presence switches to the explicit-flags
// walk.
func classify(blocks []Descriptor) []pair {
	explicit := false
	for _, b := range blocks {
		if b.Flags != FlagNone {
			explicit = true
			break
		}
	}

	if !explicit {
		if len(blocks) < 2 {
			return nil
		}
		src := blocks[0]
		pairs := make([]pair, 0, len(blocks)-1)
		for _, dst := range blocks[1:] {
			pairs = append(pairs, pair{src: src, dst: dst})
		}
		return pairs
	}

	var pairs []pair
	var haveSrc bool
	var src Descriptor
	for _, b := range blocks {
		switch b.Flags {
		case FlagSrc:
			src = b
			haveSrc = true
		case FlagDst:
			if !haveSrc {
				// "a stray DST before any SRC is skipped" (spec §4.4).
				continue
			}
			pairs = append(pairs, pair{src: src, dst: b})
		}
	}
	return pairs
}
