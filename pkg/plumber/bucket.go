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
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kubewharf/nic-plumber/pkg/util/machine"
)

// BuildBuckets groups nics into locality buckets according to policy.
// Every returned bucket holds at least one NIC.
func BuildBuckets(policy BucketPolicy, nics []machine.NICDescriptor, topo machine.TopologyProvider) (BucketSet, error) {
	switch policy {
	case BucketPolicyAll:
		return buildAllBucket(nics, topo)
	case BucketPolicyNUMA:
		return buildNUMABuckets(nics, topo)
	default:
		return nil, newError(KindUnknownPolicy, nil, "unknown bucket policy %q", policy)
	}
}

// buildAllBucket still locates every NIC, a NIC unknown to the topology
// is rejected under every policy.
func buildAllBucket(nics []machine.NICDescriptor, topo machine.TopologyProvider) (BucketSet, error) {
	bucket := make(Bucket, 0, len(nics))
	for _, nic := range nics {
		if _, err := locate(nic, topo); err != nil {
			return nil, err
		}
		bucket = append(bucket, nic.Name)
	}

	set := BucketSet{0: bucket}
	if err := checkBuckets(set); err != nil {
		return nil, err
	}
	return set, nil
}

func buildNUMABuckets(nics []machine.NICDescriptor, topo machine.TopologyProvider) (BucketSet, error) {
	nodes, err := topo.GetNUMANodes()
	if err != nil {
		return nil, newError(KindFabricQueryFailed, err, "enumerate numa nodes")
	}

	set := make(BucketSet, nodes.Len())
	for _, node := range nodes.List() {
		set[node] = Bucket{}
	}

	for _, nic := range nics {
		node, err := numaNodeOf(nic, topo, nodes)
		if err != nil {
			return nil, err
		}
		set[node] = append(set[node], nic.Name)
	}

	if err := checkBuckets(set); err != nil {
		return nil, err
	}
	return set, nil
}

func locate(nic machine.NICDescriptor, topo machine.TopologyProvider) (*machine.PCIDevice, error) {
	dev, err := topo.LocatePCIDevice(nic.PCI)
	if err != nil {
		if errors.Is(err, machine.ErrDeviceNotFound) {
			return nil, newError(KindTopologyMismatch, err, "nic %s at %s is not in the topology", nic.Name, nic.PCI)
		}
		return nil, newError(KindTopologyMismatch, err, "locate nic %s at %s", nic.Name, nic.PCI)
	}
	return dev, nil
}

func numaNodeOf(nic machine.NICDescriptor, topo machine.TopologyProvider, nodes sets.Int) (int, error) {
	dev, err := locate(nic, topo)
	if err != nil {
		return -1, err
	}

	ancestor, err := topo.GetNonIOAncestor(dev)
	if err != nil {
		return -1, newError(KindTopologyMismatch, err, "find non-io ancestor of nic %s", nic.Name)
	}

	node, err := topo.GetNUMANodeOf(ancestor)
	if err != nil {
		return -1, newError(KindTopologyMismatch, err, "get numa node of nic %s", nic.Name)
	}

	if !nodes.Has(node) {
		return -1, newError(KindTopologyMismatch, nil, "nic %s is attached to numa node %d, which is not in %v",
			nic.Name, node, nodes.List())
	}
	return node, nil
}

// checkBuckets reports the lowest key of an empty bucket
func checkBuckets(set BucketSet) error {
	for _, key := range set.Keys() {
		if len(set[key]) == 0 {
			return newError(KindEmptyBucket, nil, "bucket %d has no nic", key)
		}
	}
	return nil
}
