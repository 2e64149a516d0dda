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

package cmd

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bachm44/nilfs2dedup/internal/blockio"
	"github.com/bachm44/nilfs2dedup/internal/dat"
	"github.com/bachm44/nilfs2dedup/internal/driver"
	"github.com/bachm44/nilfs2dedup/internal/gcstaging"
	"github.com/bachm44/nilfs2dedup/internal/ioctl"
	"github.com/bachm44/nilfs2dedup/internal/logger"
	"github.com/bachm44/nilfs2dedup/internal/metrics"
	"github.com/bachm44/nilfs2dedup/internal/segment"
	"github.com/bachm44/nilfs2dedup/internal/txn"
)

// minFreeBytesForRun is a conservative floor of free space on the temp
// directory below which dedup won't even attempt a run. Not named in
// spec.md; a defensive extension (see DESIGN.md).
const minFreeBytesForRun = 16 << 20

var dedupCmd = &cobra.Command{
	Use:   "dedup <descriptor-file.json>",
	Short: "Run one dedup ioctl request (spec §4.4) against a fresh in-memory DAT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(string(RuntimeConfig.Logging.Format), string(RuntimeConfig.Logging.Severity))

		payload, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading descriptor file: %w", err)
		}

		req, err := ioctl.DecodeRequest(payload)
		if err != nil {
			return fmt.Errorf("decoding descriptor file: %w", err)
		}
		if len(req.Blocks) > RuntimeConfig.Dat.MaxDestinationsPerRun {
			return fmt.Errorf("descriptor file lists %d blocks, exceeding max-destinations-per-run=%d", len(req.Blocks), RuntimeConfig.Dat.MaxDestinationsPerRun)
		}

		if free, err := blockio.FreeBytes(os.TempDir()); err != nil {
			logger.Warnf("dedup: could not check free space on %s: %v", os.TempDir(), err)
		} else if free < minFreeBytesForRun {
			return fmt.Errorf("dedup: only %d bytes free on %s, need at least %d", free, os.TempDir(), minFreeBytesForRun)
		}

		store := dat.NewMemStore()
		for _, b := range req.Blocks {
			store.Seed(dat.Standard{Vblocknr: dat.VBlockNr(b.VBlockNr), Blocknr: dat.BlockNr(b.BlockNr)})
		}

		writer := segment.NewFakeWriter()
		tx := txn.New(&sync.Mutex{}, store, writer)
		staging := gcstaging.New()

		h, err := metrics.NewOTelHandle()
		if err != nil {
			logger.Warnf("dedup: falling back to noop metrics: %v", err)
			h = metrics.New()
		}

		d := driver.New(store, tx, staging, h)
		n, err := ioctl.Run(cmd.Context(), d, payload)
		if err != nil {
			logger.Errorf("dedup: run stopped after %d accepted pairs: %v", n, err)
			if errors.Is(err, driver.ErrInvariantViolation) && RuntimeConfig.Debug.ExitOnInvariantViolation {
				os.Exit(1)
			}
			return err
		}

		logger.Infof("dedup: %d pair(s) accepted, %d block(s) moved by the segment writer", n, len(writer.Moves))
		fmt.Printf("accepted=%d moved=%d\n", n, len(writer.Moves))
		return nil
	},
}
