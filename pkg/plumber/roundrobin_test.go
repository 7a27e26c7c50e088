/*
Copyright 2022 The Katalyst Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package plumber

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/kubewharf/nic-plumber/pkg/plumber/state"
)

func newTestRoundRobin(t *testing.T, root string) (*RoundRobin, *state.FileCounterStore) {
	t.Helper()

	store, err := state.NewFileCounterStore(root, "tester", nil, nil)
	require.NoError(t, err)
	return NewRoundRobin(store), store
}

func TestNextIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cur  int64
		n    int
		want int64
	}{
		{cur: -1, n: 3, want: 0},
		{cur: 0, n: 3, want: 1},
		{cur: 2, n: 3, want: 0},
		{cur: 7, n: 3, want: 2},
		{cur: -1, n: 1, want: 0},
		{cur: -5, n: 3, want: 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextIndex(tt.cur, tt.n), "next of %d in %d", tt.cur, tt.n)
	}
}

func TestRoundRobinRotation(t *testing.T) {
	t.Parallel()

	rr, store := newTestRoundRobin(t, t.TempDir())
	bucket := Bucket{"cxi0", "cxi1", "cxi2"}

	var got []string
	for i := 0; i < 7; i++ {
		nic, err := rr.Next(0, bucket)
		require.NoError(t, err)
		got = append(got, nic)
	}
	assert.Equal(t, []string{"cxi0", "cxi1", "cxi2", "cxi0", "cxi1", "cxi2", "cxi0"}, got)

	// buckets rotate independently
	nic, err := rr.Next(1, Bucket{"cxi3", "cxi4"})
	require.NoError(t, err)
	assert.Equal(t, "cxi3", nic)

	content, err := os.ReadFile(store.Path(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(content))
}

func TestRoundRobinPersistence(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first, _ := newTestRoundRobin(t, root)
	nic, err := first.Next(0, Bucket{"cxi0", "cxi1", "cxi2"})
	require.NoError(t, err)
	assert.Equal(t, "cxi0", nic)
	nic, err = first.Next(0, Bucket{"cxi0", "cxi1", "cxi2"})
	require.NoError(t, err)
	assert.Equal(t, "cxi1", nic)

	// a new arbiter picks up the cursor left behind
	second, _ := newTestRoundRobin(t, root)
	nic, err = second.Next(0, Bucket{"cxi0", "cxi1", "cxi2"})
	require.NoError(t, err)
	assert.Equal(t, "cxi2", nic)

	// cursor 2 is consumed modulo the shrunk bucket
	third, _ := newTestRoundRobin(t, root)
	nic, err = third.Next(0, Bucket{"cxi0", "cxi1"})
	require.NoError(t, err)
	assert.Equal(t, "cxi1", nic)
	nic, err = third.Next(0, Bucket{"cxi0", "cxi1"})
	require.NoError(t, err)
	assert.Equal(t, "cxi0", nic)
}

func TestRoundRobinConcurrent(t *testing.T) {
	t.Parallel()

	const rounds = 16
	root := t.TempDir()
	bucket := Bucket{"cxi0", "cxi1", "cxi2", "cxi3"}

	var (
		mtx    sync.Mutex
		counts = make(map[string]int)
	)

	g := new(errgroup.Group)
	for i := 0; i < rounds*len(bucket); i++ {
		g.Go(func() error {
			// every contender opens the cursor through its own store, as
			// separate processes would
			store, err := state.NewFileCounterStore(root, "tester", nil, nil)
			if err != nil {
				return err
			}
			nic, err := NewRoundRobin(store).Next(0, bucket)
			if err != nil {
				return err
			}

			mtx.Lock()
			counts[nic]++
			mtx.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, nic := range bucket {
		assert.Equal(t, rounds, counts[nic], "nic %s", nic)
	}

	content, err := os.ReadFile(filepath.Join(root, "tester-nic-plumber", "0"))
	require.NoError(t, err)
	require.Len(t, content, state.CounterWidth)
	assert.Equal(t, uint64(len(bucket)-1), binary.LittleEndian.Uint64(content))
}

func TestRoundRobinErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty bucket", func(t *testing.T) {
		t.Parallel()

		rr, store := newTestRoundRobin(t, t.TempDir())
		_, err := rr.Next(0, Bucket{})
		assert.Equal(t, KindEmptyBucket, KindOf(err))
		assert.NoFileExists(t, store.Path(0))
	})

	t.Run("corrupt state", func(t *testing.T) {
		t.Parallel()

		rr, store := newTestRoundRobin(t, t.TempDir())
		require.NoError(t, os.MkdirAll(store.Dir(), 0o700))
		require.NoError(t, os.WriteFile(store.Path(0), []byte{1, 2, 3}, 0o600))

		_, err := rr.Next(0, Bucket{"cxi0", "cxi1"})
		assert.Equal(t, KindCorruptState, KindOf(err))
		assert.Contains(t, err.Error(), store.Path(0))

		// the lock is released on failure
		require.NoError(t, os.WriteFile(store.Path(0), nil, 0o600))
		nic, err := rr.Next(0, Bucket{"cxi0", "cxi1"})
		require.NoError(t, err)
		assert.Equal(t, "cxi0", nic)
	})

	t.Run("state directory", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		rr, store := newTestRoundRobin(t, root)
		require.NoError(t, os.WriteFile(store.Dir(), []byte("not a directory"), 0o600))

		_, err := rr.Next(0, Bucket{"cxi0", "cxi1"})
		assert.Equal(t, KindStateDirectoryError, KindOf(err))
	})

	t.Run("state directory accessible to others", func(t *testing.T) {
		t.Parallel()

		rr, store := newTestRoundRobin(t, t.TempDir())
		require.NoError(t, os.Mkdir(store.Dir(), 0o700))
		require.NoError(t, os.Chmod(store.Dir(), 0o777))

		_, err := rr.Next(0, Bucket{"cxi0", "cxi1"})
		assert.Equal(t, KindStateDirectoryError, KindOf(err))
		assert.NoFileExists(t, store.Path(0))
	})

	t.Run("symlinked state file", func(t *testing.T) {
		t.Parallel()

		rr, store := newTestRoundRobin(t, t.TempDir())
		require.NoError(t, os.Mkdir(store.Dir(), 0o700))
		victim := filepath.Join(t.TempDir(), "victim")
		require.NoError(t, os.WriteFile(victim, nil, 0o600))
		require.NoError(t, os.Symlink(victim, store.Path(0)))

		_, err := rr.Next(0, Bucket{"cxi0", "cxi1"})
		assert.Equal(t, KindStateFileError, KindOf(err))
		assert.True(t, errors.Is(err, unix.ELOOP), "got %v", err)

		content, err := os.ReadFile(victim)
		require.NoError(t, err)
		assert.Empty(t, content)
	})

	t.Run("state file", func(t *testing.T) {
		t.Parallel()

		rr, store := newTestRoundRobin(t, t.TempDir())
		require.NoError(t, os.MkdirAll(store.Path(0), 0o700))

		_, err := rr.Next(0, Bucket{"cxi0", "cxi1"})
		assert.Equal(t, KindStateFileError, KindOf(err))
	})
}
