//go:build linux
// +build linux

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
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/apimachinery/pkg/util/sets"
)

var getcpuFunc = getcpu

// getcpu returns the cpu and numa node the calling thread is running on
func getcpu() (int, int, error) {
	var cpu, node uint32
	_, _, errno := unix.RawSyscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&cpu)), uintptr(unsafe.Pointer(&node)), 0)
	if errno != 0 {
		return -1, -1, errno
	}
	return int(cpu), int(node), nil
}

// GetcpuLocalityProbe reports the numa node of the current thread by getcpu(2).
// Nodes optionally restricts the answer to known nodes.
type GetcpuLocalityProbe struct {
	Nodes sets.Int
}

var _ LocalityProbe = &GetcpuLocalityProbe{}

func NewGetcpuLocalityProbe(nodes sets.Int) *GetcpuLocalityProbe {
	return &GetcpuLocalityProbe{Nodes: nodes}
}

func (p *GetcpuLocalityProbe) GetCurrentNUMANode() (int, error) {
	cpu, node, err := getcpuFunc()
	if err != nil {
		return -1, errors.Wrap(err, "getcpu failed")
	}

	if node < 0 || (p.Nodes != nil && !p.Nodes.Has(node)) {
		return -1, errors.Errorf("cpu %d reports unknown numa node %d", cpu, node)
	}
	return node, nil
}
