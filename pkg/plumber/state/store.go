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

// Package state keeps the round-robin cursors shared by all nic-plumber
// processes of one user on a node. Each cursor lives in its own file and is
// only accessed under an exclusive flock of that file.
package state // import "github.com/kubewharf/nic-plumber/pkg/plumber/state"

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/kubewharf/nic-plumber/pkg/metrics"
	"github.com/kubewharf/nic-plumber/pkg/util/general"
)

const (
	// DirSuffix is appended to the identity to name the state directory
	DirSuffix = "nic-plumber"

	// CounterWidth is the on-disk size of a cursor: one little-endian int64
	CounterWidth = 8
	// Uninitialized is the cursor of a bucket nothing was selected from yet,
	// an absent or empty file reads as Uninitialized.
	Uninitialized int64 = -1

	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

const metricsNameLockWaitSeconds = "lock_wait_seconds"

var (
	ErrStateDirectory = errors.New("state directory error")
	ErrStateFile      = errors.New("state file error")
	ErrCorruptState   = errors.New("corrupt state")
)

// classifiedError tags a failure with one of the sentinels above while
// keeping the underlying error in the chain, so both errors.Is(err, ErrStateFile)
// and errors.Is(err, fs.ErrPermission) hold.
type classifiedError struct {
	class error
	cause error
	msg   string
}

func (e *classifiedError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.msg, e.cause, e.class)
}

func (e *classifiedError) Is(target error) bool {
	return target == e.class
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func classify(class, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Wrapf(class, format, args...)
	}
	return &classifiedError{class: class, cause: cause, msg: fmt.Sprintf(format, args...)}
}

// CounterStore hands out exclusive access to per-key cursors
type CounterStore interface {
	// Open blocks until the cursor of key is exclusively held by the caller,
	// the returned Counter must be closed on every path.
	Open(key int) (*Counter, error)
}

// FileCounterStore stores the cursor of bucket <key> in <root>/<identity>-nic-plumber/<key>
type FileCounterStore struct {
	dir     string
	clock   clockwork.Clock
	emitter metrics.MetricEmitter
}

var _ CounterStore = &FileCounterStore{}

func NewFileCounterStore(root, identity string, clock clockwork.Clock, emitter metrics.MetricEmitter) (*FileCounterStore, error) {
	if identity == "" || strings.ContainsRune(identity, filepath.Separator) || identity == "." || identity == ".." {
		return nil, errors.Wrapf(ErrStateDirectory, "invalid identity %q", identity)
	}
	if root == "" {
		root = os.TempDir()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if emitter == nil {
		emitter = metrics.DummyMetrics{}
	}

	return &FileCounterStore{
		dir:     filepath.Join(root, fmt.Sprintf("%s-%s", identity, DirSuffix)),
		clock:   clock,
		emitter: emitter,
	}, nil
}

// Dir returns the state directory of the store
func (s *FileCounterStore) Dir() string {
	return s.dir
}

// Path returns the cursor file of the given key
func (s *FileCounterStore) Path(key int) string {
	return filepath.Join(s.dir, strconv.Itoa(key))
}

func (s *FileCounterStore) Open(key int) (*Counter, error) {
	if key < 0 {
		return nil, errors.Wrapf(ErrStateFile, "invalid key %d", key)
	}

	if err := general.EnsurePrivateDirectory(s.dir, dirPerm); err != nil {
		return nil, classify(ErrStateDirectory, err, "prepare %s", s.dir)
	}

	path := s.Path(key)
	lock, err := general.OpenFlock(path, filePerm)
	if err != nil {
		return nil, classify(ErrStateFile, err, "open %s", path)
	}

	start := s.clock.Now()
	if err := lock.TryLock(); err != nil {
		general.InfofV(2, "%s is locked by another process, waiting", path)
		if err := lock.Lock(); err != nil {
			_ = lock.Release()
			return nil, classify(ErrStateFile, err, "lock %s", path)
		}
	}

	waited := s.clock.Since(start)
	general.InfofV(4, "locked %s after %v", path, waited)
	_ = s.emitter.StoreFloat64(metricsNameLockWaitSeconds, waited.Seconds(), metrics.MetricTypeNameRaw,
		metrics.MetricTag{Key: "bucket", Val: strconv.Itoa(key)})

	return &Counter{path: path, lock: lock}, nil
}

// Counter is an exclusively locked cursor file
type Counter struct {
	path string
	lock *general.Flock
}

func (c *Counter) Path() string {
	return c.path
}

// Read returns Uninitialized for an empty file; any size other than zero or
// CounterWidth, and any negative value but Uninitialized, is ErrCorruptState.
func (c *Counter) Read() (int64, error) {
	f := c.lock.File()
	info, err := f.Stat()
	if err != nil {
		return Uninitialized, classify(ErrStateFile, err, "stat %s", c.path)
	}

	switch info.Size() {
	case 0:
		return Uninitialized, nil
	case CounterWidth:
	default:
		return Uninitialized, errors.Wrapf(ErrCorruptState, "%s has %d bytes, expect %d", c.path, info.Size(), CounterWidth)
	}

	buf := make([]byte, CounterWidth)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !(err == io.EOF && n == CounterWidth) {
		if n > 0 && n < CounterWidth {
			return Uninitialized, errors.Wrapf(ErrCorruptState, "short read of %d bytes from %s", n, c.path)
		}
		return Uninitialized, classify(ErrStateFile, err, "read %s", c.path)
	}

	val := int64(binary.LittleEndian.Uint64(buf))
	if val < Uninitialized {
		return Uninitialized, errors.Wrapf(ErrCorruptState, "%s holds invalid cursor %d", c.path, val)
	}
	return val, nil
}

func (c *Counter) Write(val int64) error {
	if val < Uninitialized {
		return errors.Wrapf(ErrStateFile, "invalid cursor %d for %s", val, c.path)
	}

	buf := make([]byte, CounterWidth)
	binary.LittleEndian.PutUint64(buf, uint64(val))

	f := c.lock.File()
	if n, err := f.WriteAt(buf, 0); err != nil || n != CounterWidth {
		return classify(ErrStateFile, err, "write %s: wrote %d bytes", c.path, n)
	}
	if err := f.Truncate(CounterWidth); err != nil {
		return classify(ErrStateFile, err, "truncate %s", c.path)
	}
	return nil
}

// Close unlocks and closes the file; the file is closed even if unlock fails.
func (c *Counter) Close() error {
	unlockErr := c.lock.Unlock()
	releaseErr := c.lock.Release()
	if unlockErr != nil {
		return classify(ErrStateFile, unlockErr, "unlock %s", c.path)
	}
	if releaseErr != nil {
		return classify(ErrStateFile, releaseErr, "close %s", c.path)
	}
	return nil
}
