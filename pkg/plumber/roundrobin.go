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
	"github.com/pkg/errors"

	"github.com/kubewharf/nic-plumber/pkg/plumber/state"
	"github.com/kubewharf/nic-plumber/pkg/util/general"
)

var rrLogger = general.LoggerWithPrefix("round-robin", general.LoggingPKGShort)

// RoundRobin rotates through a bucket with a cursor shared by every
// process that uses the same CounterStore.
type RoundRobin struct {
	store state.CounterStore
}

var _ Drawer = &RoundRobin{}

func NewRoundRobin(store state.CounterStore) *RoundRobin {
	return &RoundRobin{store: store}
}

func (r *RoundRobin) Draw(key int, bucket Bucket) (string, error) {
	return r.Next(key, bucket)
}

// Next advances the cursor of bucket key and returns the NIC it points at.
// The cursor is held locked from the read until the write is persisted.
func (r *RoundRobin) Next(key int, bucket Bucket) (nic string, err error) {
	n := len(bucket)
	if n == 0 {
		return "", newError(KindEmptyBucket, nil, "bucket %d has no nic", key)
	}

	counter, err := r.store.Open(key)
	if err != nil {
		return "", stateError(err, key)
	}
	defer func() {
		if closeErr := counter.Close(); closeErr != nil {
			rrLogger.Errorf("release cursor of bucket %d: %v", key, closeErr)
			if err == nil {
				nic, err = "", stateError(closeErr, key)
			}
		}
	}()

	cur, err := counter.Read()
	if err != nil {
		return "", stateError(err, key)
	}

	next := nextIndex(cur, n)
	if err := counter.Write(next); err != nil {
		return "", stateError(err, key)
	}

	rrLogger.InfofV(4, "cursor of bucket %d moved from %d to %d at %s", key, cur, next, counter.Path())
	return bucket[next], nil
}

// nextIndex returns (cur+1) mod n in [0, n)
func nextIndex(cur int64, n int) int64 {
	size := int64(n)
	next := (cur + 1) % size
	if next < 0 {
		next += size
	}
	return next
}

func stateError(err error, key int) error {
	switch {
	case errors.Is(err, state.ErrCorruptState):
		return newError(KindCorruptState, err, "cursor of bucket %d", key)
	case errors.Is(err, state.ErrStateDirectory):
		return newError(KindStateDirectoryError, err, "cursor of bucket %d", key)
	default:
		return newError(KindStateFileError, err, "cursor of bucket %d", key)
	}
}
