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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/kubewharf/nic-plumber/pkg/util/general"
)

// FabricCXI is the only fabric provider nic-plumber resolves addresses for
const FabricCXI = "cxi"

// SysFSFabric implements FabricProvider by looking for class devices of the
// fabric provider (e.g. devices/pci0000:20/0000:20:01.1/0000:21:00.0/cxi/cxi0)
// beneath PCI functions, so only PCI attached NICs are reported.
type SysFSFabric struct {
	fs       afero.Fs
	root     string
	provider string
}

var _ FabricProvider = &SysFSFabric{}

func NewSysFSFabric(fs afero.Fs, root string) *SysFSFabric {
	if root == "" {
		root = DefaultSysFSRoot
	}
	return &SysFSFabric{fs: fs, root: root, provider: FabricCXI}
}

func (f *SysFSFabric) GetFabricNICs() ([]NICDescriptor, error) {
	var nics []NICDescriptor
	err := walkPCI(f.fs, f.root, func(path string, info os.FileInfo) error {
		if !info.IsDir() || info.Name() != f.provider {
			return nil
		}

		pci, err := ParsePCIAddress(filepath.Base(filepath.Dir(path)))
		if err != nil {
			general.Warningf("skip %s which isn't beneath a pci function", path)
			return filepath.SkipDir
		}

		entries, err := afero.ReadDir(f.fs, path)
		if err != nil {
			general.Warningf("read fabric class dir %s failed: %v", path, err)
			return filepath.SkipDir
		}
		for _, entry := range entries {
			if !strings.HasPrefix(entry.Name(), f.provider) {
				continue
			}
			general.InfofV(4, "discover fabric nic %s at %s", entry.Name(), pci)
			nics = append(nics, NICDescriptor{Name: entry.Name(), PCI: pci})
		}
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(nics, func(i, j int) bool {
		return lessNICName(nics[i].Name, nics[j].Name)
	})
	return nics, nil
}

// lessNICName orders names by their numeric suffix, so that cxi2 < cxi10
func lessNICName(a, b string) bool {
	ap, an := splitNICName(a)
	bp, bn := splitNICName(b)
	if ap != bp {
		return ap < bp
	}
	if an != bn {
		return an < bn
	}
	return a < b
}

func splitNICName(name string) (string, int) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return name, -1
	}
	return name[:i], n
}
