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

// Package ioctl is the ioctl entry point (spec §6): an implementation-
// defined opcode hands the driver an explicit block list, out of scope
// plumbing this module only needs to decode.
package ioctl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bachm44/nilfs2dedup/internal/dat"
	"github.com/bachm44/nilfs2dedup/internal/driver"
)

// Request is the wire shape of one ioctl call: an inode reference and the
// block descriptor array the driver consumes as in spec §4.4.
type Request struct {
	Ino    uint64              `json:"ino"`
	Blocks []driver.Descriptor `json:"blocks"`
}

// DecodeRequest parses an ioctl payload. Descriptor.Flags round-trips as
// its String() form ("SRC", "DST", "NONE") in JSON for readability; a
// numeric encoding would work just as well but would not survive a human
// re-reading a captured ioctl buffer during debugging.
func DecodeRequest(payload []byte) (Request, error) {
	var wire struct {
		Ino    uint64 `json:"ino"`
		Blocks []struct {
			Ino      uint64 `json:"ino"`
			Cno      uint64 `json:"cno"`
			VBlockNr uint64 `json:"vblocknr"`
			BlockNr  uint64 `json:"blocknr"`
			Offset   uint64 `json:"offset"`
			Flags    string `json:"flags"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Request{}, fmt.Errorf("ioctl: decode request: %w", err)
	}

	req := Request{Ino: wire.Ino, Blocks: make([]driver.Descriptor, 0, len(wire.Blocks))}
	for _, b := range wire.Blocks {
		var flag driver.Flag
		switch b.Flags {
		case "SRC":
			flag = driver.FlagSrc
		case "DST":
			flag = driver.FlagDst
		case "", "NONE":
			flag = driver.FlagNone
		default:
			return Request{}, fmt.Errorf("ioctl: unknown flag %q", b.Flags)
		}
		req.Blocks = append(req.Blocks, driver.Descriptor{
			Ino:      b.Ino,
			Cno:      b.Cno,
			VBlockNr: dat.VBlockNr(b.VBlockNr),
			BlockNr:  dat.BlockNr(b.BlockNr),
			Offset:   b.Offset,
			Flags:    flag,
		})
	}
	return req, nil
}

// Run decodes payload and invokes d.Dedup with the resulting block list.
func Run(ctx context.Context, d *driver.Driver, payload []byte) (int, error) {
	req, err := DecodeRequest(payload)
	if err != nil {
		return 0, err
	}
	return d.Dedup(ctx, req.Ino, req.Blocks)
}
