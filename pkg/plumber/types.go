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
	"sort"
	"strings"

	"github.com/samber/lo"
)

// BucketPolicy decides how NICs are grouped into buckets
type BucketPolicy string

const (
	// BucketPolicyAll puts every NIC into the single bucket 0
	BucketPolicyAll BucketPolicy = "all"
	// BucketPolicyNUMA keeps one bucket per NUMA node, keyed by node id
	BucketPolicyNUMA BucketPolicy = "numa"
)

var bucketPolicies = []BucketPolicy{BucketPolicyAll, BucketPolicyNUMA}

// NICPolicy decides how one NIC is drawn from a bucket
type NICPolicy string

const (
	NICPolicyRoundRobin NICPolicy = "roundrobin"
	NICPolicyRandom     NICPolicy = "random"
)

var nicPolicies = []NICPolicy{NICPolicyRoundRobin, NICPolicyRandom}

func (p BucketPolicy) Valid() bool {
	return lo.Contains(bucketPolicies, p)
}

func (p NICPolicy) Valid() bool {
	return lo.Contains(nicPolicies, p)
}

// ParseBucketPolicy converts an operator supplied string into a BucketPolicy
func ParseBucketPolicy(s string) (BucketPolicy, error) {
	p := BucketPolicy(strings.TrimSpace(s))
	if !p.Valid() {
		return "", newError(KindUnknownPolicy, nil, "unknown bucket policy %q, expect one of %v", s, bucketPolicies)
	}
	return p, nil
}

// ParseNICPolicy converts an operator supplied string into a NICPolicy
func ParseNICPolicy(s string) (NICPolicy, error) {
	p := NICPolicy(strings.TrimSpace(s))
	if !p.Valid() {
		return "", newError(KindUnknownPolicy, nil, "unknown nic policy %q, expect one of %v", s, nicPolicies)
	}
	return p, nil
}

// Bucket is an ordered list of NIC names, in discovery order
type Bucket []string

// BucketSet maps bucket keys to buckets
type BucketSet map[int]Bucket

// Keys returns bucket keys in ascending order
func (s BucketSet) Keys() []int {
	keys := lo.Keys(s)
	sort.Ints(keys)
	return keys
}

// NICCount returns the number of NICs across all buckets
func (s BucketSet) NICCount() int {
	return lo.SumBy(lo.Values(s), func(b Bucket) int { return len(b) })
}
