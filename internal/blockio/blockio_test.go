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

package blockio

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RejectsNonPositiveSizes(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "dev"), 0, 4096)
	assert.Error(t, err)
	_, err = Open(filepath.Join(t.TempDir(), "dev"), 4, 0)
	assert.Error(t, err)
}

func TestDevice_WriteBlockThenReadBlockRoundTrips(t *testing.T) {
	dev, err := Open(filepath.Join(t.TempDir(), "dev"), 4, 16)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.WriteBlock(2, []byte("hello")))

	got, err := dev.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("hello"), make([]byte, 11)...), got)
}

func TestDevice_WriteBlockOutOfRange(t *testing.T) {
	dev, err := Open(filepath.Join(t.TempDir(), "dev"), 2, 16)
	require.NoError(t, err)
	defer dev.Close()

	assert.Error(t, dev.WriteBlock(5, []byte("x")))
}

func TestDevice_SatisfiesBlockSource(t *testing.T) {
	dev, err := Open(filepath.Join(t.TempDir(), "dev"), 2, 16)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.WriteBlock(0, []byte("block-zero-data!")))

	assert.EqualValues(t, 32, dev.Size())
	buf := make([]byte, 16)
	n, err := dev.ReadAt(context.Background(), buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, "block-zero-data!", string(buf))
}

func TestFreeBytes_ReportsPositiveValueForTempDir(t *testing.T) {
	free, err := FreeBytes(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}
