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
	"strconv"
	"strings"
)

// PCIAddress identifies a physical PCI slot, as in "0000:21:00.0"
type PCIAddress struct {
	Domain   int
	Bus      int
	Device   int
	Function int
}

func (a PCIAddress) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", a.Domain, a.Bus, a.Device, a.Function)
}

// ParsePCIAddress parses the sysfs form "dddd:bb:dd.f" (all fields in hex)
func ParsePCIAddress(s string) (PCIAddress, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return PCIAddress{}, fmt.Errorf("invalid pci address %q", s)
	}

	devFn := strings.Split(parts[2], ".")
	if len(devFn) != 2 {
		return PCIAddress{}, fmt.Errorf("invalid pci address %q", s)
	}

	fields := []struct {
		str  string
		bits int
	}{
		{parts[0], 32}, {parts[1], 8}, {devFn[0], 5}, {devFn[1], 3},
	}
	values := make([]int, 0, len(fields))
	for _, f := range fields {
		if f.str == "" {
			return PCIAddress{}, fmt.Errorf("invalid pci address %q", s)
		}
		v, err := strconv.ParseUint(f.str, 16, f.bits)
		if err != nil {
			return PCIAddress{}, fmt.Errorf("invalid pci address %q: %v", s, err)
		}
		values = append(values, int(v))
	}

	return PCIAddress{
		Domain:   values[0],
		Bus:      values[1],
		Device:   values[2],
		Function: values[3],
	}, nil
}

// NICDescriptor is a fabric NIC as reported by fabric discovery
type NICDescriptor struct {
	// Name is the logical name used to address the NIC, e.g. "cxi0"
	Name string
	PCI  PCIAddress
}
