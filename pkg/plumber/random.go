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
	"math/rand"
	"os"
)

// SeedSource returns the seed of a Random draw
type SeedSource func() int64

// ProcessSeed seeds with the process id, so that processes started
// together tend to spread over different NICs.
func ProcessSeed() int64 {
	return int64(os.Getpid())
}

// Random draws uniformly with a private PRNG. The PRNG is only seeded
// on the first draw.
type Random struct {
	seed SeedSource
	rnd  *rand.Rand
}

var _ Drawer = &Random{}

func NewRandom(seed SeedSource) *Random {
	if seed == nil {
		seed = ProcessSeed
	}
	return &Random{seed: seed}
}

func (r *Random) Draw(key int, bucket Bucket) (string, error) {
	if len(bucket) == 0 {
		return "", newError(KindEmptyBucket, nil, "bucket %d has no nic", key)
	}
	return r.Pick(bucket), nil
}

// Pick returns a NIC of bucket, or an empty string if the bucket is empty
func (r *Random) Pick(bucket Bucket) string {
	if len(bucket) == 0 {
		return ""
	}
	if r.rnd == nil {
		r.rnd = rand.New(rand.NewSource(r.seed()))
	}
	return bucket[r.rnd.Intn(len(bucket))]
}
