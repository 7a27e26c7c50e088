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
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// EnsurePrivateDirectory creates dir with the given permission if it is
// absent. An existing dir is only accepted if it is a real directory (not a
// symlink) owned by the effective user and inaccessible to group and others.
func EnsurePrivateDirectory(dir string, perm os.FileMode) error {
	err := os.Mkdir(dir, perm)
	if err == nil || !os.IsExist(err) {
		return err
	}

	var st unix.Stat_t
	if err := unix.Lstat(dir, &st); err != nil {
		return &os.PathError{Op: "lstat", Path: dir, Err: err}
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	if st.Uid != uint32(os.Geteuid()) {
		return fmt.Errorf("%s is owned by uid %d, expect %d", dir, st.Uid, os.Geteuid())
	}
	if mode := os.FileMode(st.Mode).Perm(); mode&0o077 != 0 {
		return fmt.Errorf("%s has mode %v, which is accessible to group or others", dir, mode)
	}
	return nil
}

// Flock is an advisory whole-file lock on an opened file; the same file
// can be used for reading and writing while the lock is held.
type Flock struct {
	LockFile string
	lock     *os.File
}

// OpenFlock opens (creating if absent, never truncating) the given file for
// read-write access. A symlink at file is refused with ELOOP. The lock is
// not acquired until Lock is called.
func OpenFlock(file string, perm os.FileMode) (*Flock, error) {
	if file == "" {
		return nil, errors.New("cannot create flock on empty path")
	}

	lock, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_SYNC|unix.O_NOFOLLOW, perm)
	if err != nil {
		return nil, err
	}
	return &Flock{
		LockFile: file,
		lock:     lock,
	}, nil
}

// File returns the underlying file of the lock.
func (f *Flock) File() *os.File {
	return f.lock
}

// Lock blocks until an exclusive lock is held.
func (f *Flock) Lock() error {
	if f == nil || f.lock == nil {
		return errors.New("cannot use lock on a nil flock")
	}

	for {
		err := unix.Flock(int(f.lock.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			return err
		}
	}
}

// TryLock acquires an exclusive lock without blocking, it returns
// unix.EWOULDBLOCK if the lock is held by others.
func (f *Flock) TryLock() error {
	if f == nil || f.lock == nil {
		return errors.New("cannot use lock on a nil flock")
	}
	return unix.Flock(int(f.lock.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func (f *Flock) Unlock() error {
	if f == nil || f.lock == nil {
		return nil
	}
	return unix.Flock(int(f.lock.Fd()), unix.LOCK_UN)
}

// Release closes the file; closing also drops any lock still held on it.
func (f *Flock) Release() error {
	if f == nil || f.lock == nil {
		return nil
	}
	return f.lock.Close()
}
