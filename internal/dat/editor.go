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

// PromoteToSource loads the DAT entry for v and transitions it to SOURCE
// (spec §4.1). Promotion is idempotent: a vblocknr that is already SOURCE
// (because an earlier pair in the same run already promoted it) is
// returned as-is so that a SOURCE with several DESTINATIONs can be built up
// one pair at a time, one transaction per pair (spec §4.4 "Multi-block
// policy").
func PromoteToSource(s Store, v VBlockNr) (Entry, error) {
	e, err := s.Load(v)
	if err != nil {
		return nil, err
	}

	switch cur := e.(type) {
	case Source:
		return cur, nil
	case Destination:
		return nil, notEligible(v)
	case Standard:
		if cur.Blocknr == 0 {
			return nil, invalidEntry(v)
		}
		src := Source{
			Vblocknr: v,
			Blocknr:  cur.Blocknr,
			Start:    cur.Start,
			End:      cur.End,
			// Refs starts at 1 (itself, no destinations yet), so a bare
			// PromoteToSource alone leaves reference_count == 1 rather
			// than spec §8's "reference_count >= 2": the +1 per
			// destination is applied by PromoteToDestination, not here.
			// DedupPair always runs both, so the composed result still
			// lands on rc=2 after one pair (see DESIGN.md).
			Refs: 1,
		}
		if err := s.Stage(src); err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, invalidEntry(v)
	}
}

// PromoteToDestination loads the DAT entry for dst and redirects it to
// resolve through src (spec §4.1). src must already be a SOURCE entry —
// DedupPair guarantees PromoteToSource has run first; calling this
// directly with an unpromoted src is a programming error and surfaces as
// NotEligible on src rather than silently fabricating one.
func PromoteToDestination(s Store, src, dst VBlockNr) (Entry, error) {
	if src == dst {
		return nil, selfLink(dst)
	}

	dstEntry, err := s.Load(dst)
	if err != nil {
		return nil, err
	}
	dstStd, ok := dstEntry.(Standard)
	if !ok {
		return nil, notEligible(dst)
	}
	if dstStd.Blocknr == 0 {
		return nil, invalidEntry(dst)
	}

	srcEntry, err := s.Load(src)
	if err != nil {
		return nil, err
	}
	srcSource, ok := srcEntry.(Source)
	if !ok {
		return nil, notEligible(src)
	}

	dest := Destination{
		Vblocknr:       dst,
		SourceVBlockNr: src,
		Start:          dstStd.Start,
		End:            dstStd.End,
	}
	if err := s.Stage(dest); err != nil {
		return nil, err
	}

	// Every additional DESTINATION raises its SOURCE's reference count by
	// one (spec §3 invariant: "S.reference_count = 1 + count of
	// DESTINATIONs pointing at S").
	srcSource.Refs++
	if err := s.Stage(srcSource); err != nil {
		return nil, err
	}

	return dest, nil
}

// DedupPair composes PromoteToSource and PromoteToDestination (spec §4.1).
// It does not roll back on failure: per spec §4.3, rollback of a completed
// source promotion when the destination promotion fails is the enclosing
// transaction's responsibility (package txn), since only the transaction
// knows whether this call owns the staged source promotion or whether it
// was already committed by an earlier pair.
func DedupPair(s Store, src, dst VBlockNr) error {
	if src == dst {
		return selfLink(dst)
	}
	if _, err := PromoteToSource(s, src); err != nil {
		return err
	}
	if _, err := PromoteToDestination(s, src, dst); err != nil {
		return err
	}
	return nil
}
