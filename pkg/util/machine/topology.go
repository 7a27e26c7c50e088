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
	"errors"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ErrDeviceNotFound is returned when a PCI device is absent from the topology
var ErrDeviceNotFound = errors.New("pci device not found in topology")

// PCIDevice is a handle of a PCI device located in the topology
type PCIDevice struct {
	Address PCIAddress
	// Path is the device directory in the topology, e.g.
	// /sys/devices/pci0000:20/0000:20:01.1/0000:21:00.0
	Path string
}

// NonIOAncestor is the closest object above a PCI device that is not
// itself part of the I/O hierarchy, i.e. the one carrying NUMA locality.
type NonIOAncestor struct {
	Path string
}

// TopologyProvider answers locality questions about the hardware of this node
type TopologyProvider interface {
	// GetNUMANodes returns all NUMA nodes described by the topology
	GetNUMANodes() (sets.Int, error)
	// LocatePCIDevice returns ErrDeviceNotFound if addr isn't present
	LocatePCIDevice(addr PCIAddress) (*PCIDevice, error)
	GetNonIOAncestor(dev *PCIDevice) (*NonIOAncestor, error)
	GetNUMANodeOf(ancestor *NonIOAncestor) (int, error)
}

// LocalityProbe reports where the calling thread is running right now
type LocalityProbe interface {
	GetCurrentNUMANode() (int, error)
}

// FabricProvider enumerates the fabric NICs of this node in discovery order
type FabricProvider interface {
	GetFabricNICs() ([]NICDescriptor, error)
}
