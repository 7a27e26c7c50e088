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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
)

func TestGetcpu(t *testing.T) {
	t.Parallel()

	cpu, node, err := getcpu()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cpu, 0)
	assert.GreaterOrEqual(t, node, 0)
}

func TestGetcpuLocalityProbe(t *testing.T) {
	origin := getcpuFunc
	defer func() { getcpuFunc = origin }()

	getcpuFunc = func() (int, int, error) { return 12, 1, nil }
	node, err := NewGetcpuLocalityProbe(sets.NewInt(0, 1)).GetCurrentNUMANode()
	require.NoError(t, err)
	assert.Equal(t, 1, node)

	node, err = NewGetcpuLocalityProbe(nil).GetCurrentNUMANode()
	require.NoError(t, err)
	assert.Equal(t, 1, node)

	_, err = NewGetcpuLocalityProbe(sets.NewInt(0)).GetCurrentNUMANode()
	assert.Error(t, err)

	getcpuFunc = func() (int, int, error) { return -1, -1, fmt.Errorf("ENOSYS") }
	_, err = NewGetcpuLocalityProbe(nil).GetCurrentNUMANode()
	assert.Error(t, err)
}
