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
	"strconv"

	"github.com/kubewharf/nic-plumber/pkg/metrics"
	"github.com/kubewharf/nic-plumber/pkg/util/general"
	"github.com/kubewharf/nic-plumber/pkg/util/machine"
)

const metricsNameSelectedTotal = "selected_total"

// Drawer picks one NIC out of a bucket with at least two NICs
type Drawer interface {
	Draw(key int, bucket Bucket) (string, error)
}

// Selector chooses the caller's bucket and dispatches the draw to
// the Drawer registered for the nic policy.
type Selector struct {
	probe   machine.LocalityProbe
	drawers map[NICPolicy]Drawer
	emitter metrics.MetricEmitter
}

func NewSelector(probe machine.LocalityProbe, drawers map[NICPolicy]Drawer, emitter metrics.MetricEmitter) *Selector {
	if emitter == nil {
		emitter = metrics.DummyMetrics{}
	}
	return &Selector{
		probe:   probe,
		drawers: drawers,
		emitter: emitter,
	}
}

// SelectNIC returns the key of the chosen bucket and the NIC drawn from it
func (s *Selector) SelectNIC(bucketPolicy BucketPolicy, nicPolicy NICPolicy, set BucketSet) (int, string, error) {
	key, err := s.selectBucket(bucketPolicy, set)
	if err != nil {
		return -1, "", err
	}

	bucket := set[key]
	switch len(bucket) {
	case 0:
		return -1, "", newError(KindEmptyBucket, nil, "bucket %d has no nic", key)
	case 1:
		general.InfofV(4, "bucket %d holds only %s, skip %s draw", key, bucket[0], nicPolicy)
		s.emitSelected(key, bucket[0], nicPolicy)
		return key, bucket[0], nil
	}

	drawer, ok := s.drawers[nicPolicy]
	if !ok {
		return -1, "", newError(KindUnknownPolicy, nil, "unknown nic policy %q", nicPolicy)
	}

	nic, err := drawer.Draw(key, bucket)
	if err != nil {
		return -1, "", err
	}

	general.InfofV(2, "selected %s from bucket %d %v by %s", nic, key, bucket, nicPolicy)
	s.emitSelected(key, nic, nicPolicy)
	return key, nic, nil
}

func (s *Selector) selectBucket(bucketPolicy BucketPolicy, set BucketSet) (int, error) {
	keys := set.Keys()
	switch {
	case len(keys) == 0:
		return -1, newError(KindEmptyBucket, nil, "no bucket to select from")
	case len(keys) == 1:
		return keys[0], nil
	case bucketPolicy != BucketPolicyNUMA:
		return -1, newError(KindInconsistentPolicy, nil, "bucket policy %q built %d buckets", bucketPolicy, len(keys))
	}

	node, err := s.probe.GetCurrentNUMANode()
	if err != nil {
		return -1, newError(KindLocalityUnavailable, err, "get current numa node")
	}

	if _, ok := set[node]; !ok {
		return -1, newError(KindInconsistentPolicy, nil, "no bucket for current numa node %d in %v", node, keys)
	}
	return node, nil
}

func (s *Selector) emitSelected(key int, nic string, nicPolicy NICPolicy) {
	_ = s.emitter.StoreInt64(metricsNameSelectedTotal, 1, metrics.MetricTypeNameCount,
		metrics.ConvertMapToTags(map[string]string{
			"nic":    nic,
			"bucket": strconv.Itoa(key),
			"policy": string(nicPolicy),
		})...)
}
