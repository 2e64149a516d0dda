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

package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bachm44/nilfs2dedup/internal/dat"
	"github.com/bachm44/nilfs2dedup/internal/gcstaging"
	"github.com/bachm44/nilfs2dedup/internal/logger"
	"github.com/bachm44/nilfs2dedup/internal/metrics"
	"github.com/bachm44/nilfs2dedup/internal/txn"
)

// Driver owns one run of the dedup entry point (spec §4.4).
type Driver struct {
	store   dat.Store
	tx      *txn.Transaction
	staging *gcstaging.List
	metrics metrics.Handle

	discontinueOnce sync.Once
	discontinued    bool
}

// New returns a Driver. The filesystem transaction lock shared across every
// pair this driver runs is the one tx was constructed with.
func New(store dat.Store, tx *txn.Transaction, staging *gcstaging.List, h metrics.Handle) *Driver {
	return &Driver{store: store, tx: tx, staging: staging, metrics: h}
}

// MarkSuperblockNeedsUpdate records the pre-flight signal from spec §4.4
// ("if the filesystem layer signals 'superblock needs update', mark the
// store discontinued once before the first transaction"). Idempotent.
func (d *Driver) MarkSuperblockNeedsUpdate() {
	d.discontinueOnce.Do(func() {
		d.discontinued = true
		logger.Infof("driver: superblock needs update, DAT store marked discontinued")
	})
}

// Dedup runs blocks[] through the classifier and commits one transaction
// per accepted pair (spec §4.4). It returns the count of pairs
// deduplicated. Per-pair errors are logged and skipped; the one exception
// is a post-commit invariant violation, which stops the run and is
// returned (wrapping ErrInvariantViolation) with the count so far.
func (d *Driver) Dedup(ctx context.Context, ino uint64, blocks []Descriptor) (int, error) {
	if len(blocks) < 2 {
		d.metrics.DedupRejected(ctx, "too_few_blocks")
		return 0, fmt.Errorf("%w: need at least 2 block descriptors, got %d", ErrUnsupported, len(blocks))
	}

	pairs := classify(blocks)
	deduped := 0

	for _, p := range pairs {
		err := d.runPair(ctx, p)
		if err == nil {
			deduped++
			d.metrics.DedupAccepted(ctx)
			continue
		}

		if errors.Is(err, ErrInvariantViolation) {
			// Spec §7: "fatal (process-abort class) — the filesystem
			// cannot safely continue." The driver stops the run; the
			// caller decides whether that means os.Exit (cfg.Debug.
			// ExitOnInvariantViolation) or just surfacing the error.
			d.postFlight()
			logger.Infof("driver: ino=%d deduplicated %d blocks", ino, deduped)
			return deduped, err
		}

		logger.Warnf("driver: ino=%d skipping pair src=%d dst=%d: %v", ino, p.src.VBlockNr, p.dst.VBlockNr, err)
		d.metrics.DedupSkipped(ctx, skipReason(err))
	}

	d.postFlight()
	logger.Infof("driver: ino=%d deduplicated %d blocks", ino, deduped)
	return deduped, nil
}

func (d *Driver) runPair(ctx context.Context, p pair) error {
	if err := d.tx.Dedup(ctx, p.src.VBlockNr, p.dst.VBlockNr); err != nil {
		return err
	}

	// Post-commit invariant check (spec §4.4 step 3): fatal if violated.
	srcPhys, err1 := d.store.Translate(p.src.VBlockNr)
	dstPhys, err2 := d.store.Translate(p.dst.VBlockNr)
	if err1 != nil || err2 != nil || srcPhys != dstPhys {
		logger.Errorf("driver: post-commit invariant violated for src=%d dst=%d", p.src.VBlockNr, p.dst.VBlockNr)
		return fmt.Errorf("%w: src=%d dst=%d", ErrInvariantViolation, p.src.VBlockNr, p.dst.VBlockNr)
	}

	return nil
}

// postFlight clears the GC-inode staging list and the gc-running flag
// (spec §4.4 post-flight).
func (d *Driver) postFlight() {
	d.staging.Clear()
	d.staging.SetGCRunning(false)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, dat.ErrInvalidEntry):
		return "invalid_entry"
	case errors.Is(err, dat.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, dat.ErrSelfLink):
		return "self_link"
	case errors.Is(err, txn.ErrDatTranslateFailed):
		return "translate_failed"
	case errors.Is(err, txn.ErrSegmentWriteFailed):
		return "segment_write_failed"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "unknown"
	}
}
