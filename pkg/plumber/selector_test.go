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

	"github.com/kubewharf/nic-plumber/pkg/metrics"
	"github.com/kubewharf/nic-plumber/pkg/util/machine"
)

type recordingDrawer struct {
	nic   string
	err   error
	calls []int
}

func (d *recordingDrawer) Draw(key int, _ Bucket) (string, error) {
	d.calls = append(d.calls, key)
	return d.nic, d.err
}

func TestSelectNIC(t *testing.T) {
	t.Parallel()

	twoNodes := BucketSet{0: {"cxi0", "cxi1"}, 1: {"cxi2", "cxi3"}}

	tests := []struct {
		name         string
		bucketPolicy BucketPolicy
		set          BucketSet
		node         int
		nodeErr      error
		wantKey      int
		wantNIC      string
		wantKind     Kind
		wantDraws    []int
		wantProbed   int
	}{
		{
			name:         "single bucket skips the probe",
			bucketPolicy: BucketPolicyNUMA,
			set:          BucketSet{0: {"cxi0", "cxi1"}},
			node:         7,
			wantKey:      0,
			wantNIC:      "drawn",
			wantDraws:    []int{0},
		},
		{
			name:         "single bucket under all",
			bucketPolicy: BucketPolicyAll,
			set:          BucketSet{0: {"cxi0", "cxi1", "cxi2"}},
			nodeErr:      errors.New("unreachable"),
			wantKey:      0,
			wantNIC:      "drawn",
			wantDraws:    []int{0},
		},
		{
			name:         "bucket of the current node",
			bucketPolicy: BucketPolicyNUMA,
			set:          twoNodes,
			node:         1,
			wantKey:      1,
			wantNIC:      "drawn",
			wantDraws:    []int{1},
			wantProbed:   1,
		},
		{
			name:         "single nic bucket is not drawn from",
			bucketPolicy: BucketPolicyNUMA,
			set:          BucketSet{0: {"cxi0", "cxi1"}, 1: {"cxi2"}},
			node:         1,
			wantKey:      1,
			wantNIC:      "cxi2",
			wantProbed:   1,
		},
		{
			name:         "locality unavailable",
			bucketPolicy: BucketPolicyNUMA,
			set:          twoNodes,
			nodeErr:      errors.New("getcpu: operation not permitted"),
			wantKind:     KindLocalityUnavailable,
			wantProbed:   1,
		},
		{
			name:         "no bucket for current node",
			bucketPolicy: BucketPolicyNUMA,
			set:          twoNodes,
			node:         2,
			wantKind:     KindInconsistentPolicy,
			wantProbed:   1,
		},
		{
			name:         "several buckets under all",
			bucketPolicy: BucketPolicyAll,
			set:          twoNodes,
			wantKind:     KindInconsistentPolicy,
		},
		{
			name:         "no bucket",
			bucketPolicy: BucketPolicyAll,
			set:          BucketSet{},
			wantKind:     KindEmptyBucket,
		},
		{
			name:         "empty bucket",
			bucketPolicy: BucketPolicyAll,
			set:          BucketSet{0: {}},
			wantKind:     KindEmptyBucket,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			probe := &machine.FakeLocalityProbe{Node: tt.node, Err: tt.nodeErr}
			drawer := &recordingDrawer{nic: "drawn"}
			s := NewSelector(probe, map[NICPolicy]Drawer{NICPolicyRoundRobin: drawer}, nil)

			key, nic, err := s.SelectNIC(tt.bucketPolicy, NICPolicyRoundRobin, tt.set)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				assert.Empty(t, nic)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantKey, key)
				assert.Equal(t, tt.wantNIC, nic)
			}
			assert.Equal(t, tt.wantDraws, drawer.calls)
			assert.Equal(t, tt.wantProbed, probe.Calls)
		})
	}
}

func TestSelectNICDrawers(t *testing.T) {
	t.Parallel()

	set := BucketSet{0: {"cxi0", "cxi1"}}
	probe := &machine.FakeLocalityProbe{}

	s := NewSelector(probe, map[NICPolicy]Drawer{}, nil)
	_, _, err := s.SelectNIC(BucketPolicyAll, NICPolicyRandom, set)
	assert.Equal(t, KindUnknownPolicy, KindOf(err))

	// an unknown policy is harmless as long as nothing has to be drawn
	_, nic, err := s.SelectNIC(BucketPolicyAll, NICPolicy("fastest"), BucketSet{0: {"cxi0"}})
	require.NoError(t, err)
	assert.Equal(t, "cxi0", nic)

	failing := &recordingDrawer{err: newError(KindCorruptState, nil, "cursor of bucket 0")}
	s = NewSelector(probe, map[NICPolicy]Drawer{NICPolicyRoundRobin: failing}, nil)
	_, nic, err = s.SelectNIC(BucketPolicyAll, NICPolicyRoundRobin, set)
	assert.Equal(t, KindCorruptState, KindOf(err))
	assert.Empty(t, nic)
}

func TestSelectNICMetrics(t *testing.T) {
	t.Parallel()

	emitter := metrics.NewPrometheusMetricsEmitter("nic_plumber")
	s := NewSelector(&machine.FakeLocalityProbe{Node: 1}, map[NICPolicy]Drawer{
		NICPolicyRandom: NewRandom(func() int64 { return 1 }),
	}, emitter)

	set := BucketSet{0: {"cxi0", "cxi1"}, 1: {"cxi2"}}
	for i := 0; i < 3; i++ {
		_, nic, err := s.SelectNIC(BucketPolicyNUMA, NICPolicyRandom, set)
		require.NoError(t, err)
		assert.Equal(t, "cxi2", nic)
	}

	families, err := emitter.Gatherer().Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "nic_plumber_selected_total", families[0].GetName())
	require.Len(t, families[0].GetMetric(), 1)
	assert.Equal(t, float64(3), families[0].GetMetric()[0].GetCounter().GetValue())
}
