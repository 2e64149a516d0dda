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

package gcstaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageAndClear(t *testing.T) {
	l := New()
	l.Stage(1)
	l.Stage(2)
	assert.Equal(t, []uint64{1, 2}, l.Staged())

	l.Clear()
	assert.Empty(t, l.Staged())
}

func TestGCRunningFlag(t *testing.T) {
	l := New()
	assert.False(t, l.GCRunning())
	l.SetGCRunning(true)
	assert.True(t, l.GCRunning())
	l.SetGCRunning(false)
	assert.False(t, l.GCRunning())
}

func TestRunExclusive_PropagatesResultAndError(t *testing.T) {
	l := New()

	n, err := l.RunExclusive(func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = l.RunExclusive(func() (int, error) { return 0, errors.New("boom") })
	assert.Error(t, err)
}

func TestRunExclusive_CollapsesConcurrentCallers(t *testing.T) {
	l := New()
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]int, 4)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			n, err := l.RunExclusive(func() (int, error) {
				return 7, nil
			})
			require.NoError(t, err)
			results[i] = n
		}(i)
	}
	close(start)
	wg.Wait()

	for _, n := range results {
		assert.Equal(t, 7, n)
	}
}
