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

package general

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEnsurePrivateDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "state")
	require.NoError(t, EnsurePrivateDirectory(dir, 0o700))
	// an existing private directory is reused
	require.NoError(t, EnsurePrivateDirectory(dir, 0o700))

	info, err := os.Lstat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	file := filepath.Join(t.TempDir(), "regular")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Error(t, EnsurePrivateDirectory(file, 0o700))

	assert.Error(t, EnsurePrivateDirectory(filepath.Join(t.TempDir(), "missing", "nested"), 0o700))

	shared := filepath.Join(t.TempDir(), "shared")
	require.NoError(t, os.Mkdir(shared, 0o700))
	require.NoError(t, os.Chmod(shared, 0o777))
	assert.Error(t, EnsurePrivateDirectory(shared, 0o700))

	require.NoError(t, os.Chmod(shared, 0o750))
	assert.Error(t, EnsurePrivateDirectory(shared, 0o700))

	// a symlink to a private directory is refused as well
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(dir, link))
	assert.Error(t, EnsurePrivateDirectory(link, 0o700))
}

func TestEnsurePrivateDirectoryForeignOwner(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("changing the owner of a directory needs root")
	}
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "state")
	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, os.Chown(dir, 65534, 65534))
	assert.Error(t, EnsurePrivateDirectory(dir, 0o700))
}

func TestFlock(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "lock")

	_, err := OpenFlock("", 0o600)
	assert.Error(t, err)

	first, err := OpenFlock(lockPath, 0o600)
	require.NoError(t, err)
	defer func() { _ = first.Release() }()

	second, err := OpenFlock(lockPath, 0o600)
	require.NoError(t, err)
	defer func() { _ = second.Release() }()

	require.NoError(t, first.Lock())
	assert.Equal(t, unix.EWOULDBLOCK, second.TryLock())

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())

	// closing the holder drops the lock as well
	require.NoError(t, first.Lock())
	require.NoError(t, first.Release())
	require.NoError(t, second.TryLock())
}

func TestOpenFlockRefusesSymlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	victim := filepath.Join(dir, "victim")
	require.NoError(t, os.WriteFile(victim, []byte("payload"), 0o600))
	link := filepath.Join(dir, "counter")
	require.NoError(t, os.Symlink(victim, link))

	_, err := OpenFlock(link, 0o600)
	assert.ErrorIs(t, err, unix.ELOOP)

	content, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestOpenFlockKeepsContent(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "counter")
	require.NoError(t, os.WriteFile(lockPath, []byte("payload"), 0o600))

	f, err := OpenFlock(lockPath, 0o600)
	require.NoError(t, err)
	defer func() { _ = f.Release() }()

	buf := make([]byte, 7)
	n, err := f.File().ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))
}

func TestNilFlock(t *testing.T) {
	t.Parallel()

	var f *Flock
	assert.Error(t, f.Lock())
	assert.Error(t, f.TryLock())
	assert.NoError(t, f.Unlock())
	assert.NoError(t, f.Release())
}
