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

package machine

import (
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

// FakeTopology is an in-memory TopologyProvider, DeviceNUMA maps each known
// pci device to the numa node of its non-io ancestor.
type FakeTopology struct {
	Nodes      sets.Int
	DeviceNUMA map[PCIAddress]int
	NodesErr   error
}

var _ TopologyProvider = &FakeTopology{}

func (f *FakeTopology) GetNUMANodes() (sets.Int, error) {
	if f.NodesErr != nil {
		return nil, f.NodesErr
	}
	return sets.NewInt(f.Nodes.List()...), nil
}

func (f *FakeTopology) LocatePCIDevice(addr PCIAddress) (*PCIDevice, error) {
	if _, ok := f.DeviceNUMA[addr]; !ok {
		return nil, errors.Wrapf(ErrDeviceNotFound, "pci device %s", addr)
	}
	return &PCIDevice{Address: addr, Path: addr.String()}, nil
}

func (f *FakeTopology) GetNonIOAncestor(dev *PCIDevice) (*NonIOAncestor, error) {
	return &NonIOAncestor{Path: dev.Path}, nil
}

func (f *FakeTopology) GetNUMANodeOf(ancestor *NonIOAncestor) (int, error) {
	addr, err := ParsePCIAddress(ancestor.Path)
	if err != nil {
		return -1, err
	}
	node, ok := f.DeviceNUMA[addr]
	if !ok {
		return -1, fmt.Errorf("unknown ancestor %s", ancestor.Path)
	}
	return node, nil
}

// FakeLocalityProbe returns a fixed node and counts how often it is asked
type FakeLocalityProbe struct {
	Node  int
	Err   error
	Calls int
}

var _ LocalityProbe = &FakeLocalityProbe{}

func (f *FakeLocalityProbe) GetCurrentNUMANode() (int, error) {
	f.Calls++
	if f.Err != nil {
		return -1, f.Err
	}
	return f.Node, nil
}

type FakeFabric struct {
	NICs []NICDescriptor
	Err  error
}

var _ FabricProvider = &FakeFabric{}

func (f *FakeFabric) GetFabricNICs() ([]NICDescriptor, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]NICDescriptor(nil), f.NICs...), nil
}
