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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bucket  string
		nic     string
		wantErr bool
	}{
		{name: "numa roundrobin", bucket: "numa", nic: "roundrobin"},
		{name: "all random", bucket: "all", nic: "random"},
		{name: "surrounding spaces", bucket: " numa\n", nic: "random "},
		{name: "unknown bucket", bucket: "socket", nic: "random", wantErr: true},
		{name: "unknown nic", bucket: "all", nic: "round-robin", wantErr: true},
		{name: "case sensitive", bucket: "NUMA", nic: "random", wantErr: true},
		{name: "empty", bucket: "", nic: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bp, bErr := ParseBucketPolicy(tt.bucket)
			np, nErr := ParseNICPolicy(tt.nic)
			if !tt.wantErr {
				require.NoError(t, bErr)
				require.NoError(t, nErr)
				assert.True(t, bp.Valid())
				assert.True(t, np.Valid())
				return
			}

			err := bErr
			if err == nil {
				err = nErr
			}
			require.Error(t, err)
			assert.Equal(t, KindUnknownPolicy, KindOf(err))
		})
	}
}

func TestBucketSet(t *testing.T) {
	t.Parallel()

	set := BucketSet{3: {"cxi3"}, 0: {"cxi0", "cxi1"}, 1: {"cxi2"}}
	assert.Equal(t, []int{0, 1, 3}, set.Keys())
	assert.Equal(t, 4, set.NICCount())
	assert.Empty(t, BucketSet{}.Keys())
	assert.Equal(t, 0, BucketSet{}.NICCount())
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cause := errors.New("flock: bad file descriptor")
	err := newError(KindStateFileError, cause, "cursor of bucket %d", 1)
	assert.Equal(t, "StateFileError: cursor of bucket 1: flock: bad file descriptor", err.Error())
	assert.True(t, errors.Is(err, cause))

	wrapped := errors.Wrap(err, "resolve cxi://")
	assert.Equal(t, KindStateFileError, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindStateFileError))
	assert.False(t, IsKind(wrapped, KindCorruptState))

	assert.Equal(t, Kind(""), KindOf(cause))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, IsKind(nil, ""))

	assert.Equal(t, "EmptyBucket: bucket 2 has no nic", newError(KindEmptyBucket, nil, "bucket %d has no nic", 2).Error())
}
