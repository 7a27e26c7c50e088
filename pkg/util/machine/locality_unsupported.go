//go:build !linux
// +build !linux

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
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

type GetcpuLocalityProbe struct {
	Nodes sets.Int
}

var _ LocalityProbe = &GetcpuLocalityProbe{}

func NewGetcpuLocalityProbe(nodes sets.Int) *GetcpuLocalityProbe {
	return &GetcpuLocalityProbe{Nodes: nodes}
}

func (p *GetcpuLocalityProbe) GetCurrentNUMANode() (int, error) {
	return -1, errors.New("current numa node is unsupported on this platform")
}
