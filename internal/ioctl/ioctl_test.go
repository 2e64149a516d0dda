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

package ioctl

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bachm44/nilfs2dedup/internal/dat"
	"github.com/bachm44/nilfs2dedup/internal/driver"
	"github.com/bachm44/nilfs2dedup/internal/gcstaging"
	"github.com/bachm44/nilfs2dedup/internal/metrics"
	"github.com/bachm44/nilfs2dedup/internal/segment"
	"github.com/bachm44/nilfs2dedup/internal/txn"
)

func TestDecodeRequest(t *testing.T) {
	payload := []byte(`{"ino":1,"blocks":[
		{"vblocknr":10,"blocknr":1000,"flags":"SRC"},
		{"vblocknr":20,"blocknr":2000,"flags":"DST"}
	]}`)

	req, err := DecodeRequest(payload)
	require.NoError(t, err)
	assert.EqualValues(t, 1, req.Ino)
	require.Len(t, req.Blocks, 2)
	assert.Equal(t, driver.FlagSrc, req.Blocks[0].Flags)
	assert.Equal(t, driver.FlagDst, req.Blocks[1].Flags)
}

func TestDecodeRequest_UnknownFlag(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"ino":1,"blocks":[{"vblocknr":1,"flags":"BOGUS"}]}`))
	assert.Error(t, err)
}

func TestRun_EndToEnd(t *testing.T) {
	store := dat.NewMemStore()
	store.Seed(
		dat.Standard{Vblocknr: 10, Blocknr: 1000},
		dat.Standard{Vblocknr: 20, Blocknr: 2000},
	)
	tx := txn.New(&sync.Mutex{}, store, segment.NewFakeWriter())
	d := driver.New(store, tx, gcstaging.New(), metrics.New())

	payload := []byte(`{"ino":1,"blocks":[
		{"vblocknr":10,"blocknr":1000,"flags":"SRC"},
		{"vblocknr":20,"blocknr":2000,"flags":"DST"}
	]}`)

	n, err := Run(context.Background(), d, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
