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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kubewharf/nic-plumber/pkg/util/general"
)

const DefaultSysFSRoot = "/sys"

const (
	sysDevicesDir     = "devices"
	sysNodeDir        = "devices/system/node"
	sysNodeOnlineFile = "online"
	sysNUMANodeFile   = "numa_node"
	pciRootPrefix     = "pci"
	nodeDirPrefix     = "node"
)

// SysFSTopology implements TopologyProvider on top of a sysfs tree
type SysFSTopology struct {
	fs   afero.Fs
	root string

	// pciIndex maps pci addresses to their device directories, it is built
	// by the first LocatePCIDevice and kept for the lifetime of the topology.
	mutex    sync.Mutex
	pciIndex map[string]string
}

var _ TopologyProvider = &SysFSTopology{}

func NewSysFSTopology(fs afero.Fs, root string) *SysFSTopology {
	if root == "" {
		root = DefaultSysFSRoot
	}
	return &SysFSTopology{fs: fs, root: root}
}

// GetNUMANodes returns nodes listed in devices/system/node/online; if the
// list isn't exposed, node* directories are counted instead, and a machine
// without any NUMA information is regarded as a single node 0.
func (t *SysFSTopology) GetNUMANodes() (sets.Int, error) {
	nodeDir := filepath.Join(t.root, sysNodeDir)

	content, err := afero.ReadFile(t.fs, filepath.Join(nodeDir, sysNodeOnlineFile))
	if err == nil {
		ids, err := general.ParseLinuxListFormat(strings.TrimSpace(string(content)))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse online numa nodes")
		}
		nodes := sets.NewInt()
		for _, id := range ids {
			nodes.Insert(int(id))
		}
		if nodes.Len() > 0 {
			return nodes, nil
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to read online numa nodes")
	}

	entries, err := afero.ReadDir(t.fs, nodeDir)
	if err != nil {
		if os.IsNotExist(err) {
			general.Warningf("%s doesn't exist, suppose it's a single numa node machine", nodeDir)
			return sets.NewInt(0), nil
		}
		return nil, errors.Wrapf(err, "failed to read dir %s", nodeDir)
	}

	nodes := sets.NewInt()
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), nodeDirPrefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), nodeDirPrefix))
		if err != nil {
			general.InfofV(4, "%s/%s is not a node directory", nodeDir, entry.Name())
			continue
		}
		nodes.Insert(id)
	}

	if nodes.Len() == 0 {
		general.Warningf("no numa node found in %s, suppose it's a single numa node machine", nodeDir)
		nodes.Insert(0)
	}
	return nodes, nil
}

// LocatePCIDevice finds the directory named by addr in the pci hierarchies
// under devices/.
func (t *SysFSTopology) LocatePCIDevice(addr PCIAddress) (*PCIDevice, error) {
	index, err := t.getPCIIndex()
	if err != nil {
		return nil, err
	}

	target := addr.String()
	devicePath, ok := index[target]
	if !ok {
		return nil, errors.Wrapf(ErrDeviceNotFound, "pci device %s", target)
	}
	return &PCIDevice{Address: addr, Path: devicePath}, nil
}

func (t *SysFSTopology) getPCIIndex() (map[string]string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.pciIndex != nil {
		return t.pciIndex, nil
	}

	index := make(map[string]string)
	err := t.walkPCI(func(path string, info os.FileInfo) error {
		if !info.IsDir() {
			return nil
		}
		addr, err := ParsePCIAddress(info.Name())
		if err != nil {
			return nil
		}
		if _, ok := index[addr.String()]; !ok {
			index[addr.String()] = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	general.InfofV(4, "indexed %d pci devices under %s", len(index), t.root)
	t.pciIndex = index
	return index, nil
}

// GetNonIOAncestor returns the nearest directory above dev that carries a
// valid numa_node; if none does, the pci root of dev is returned.
func (t *SysFSTopology) GetNonIOAncestor(dev *PCIDevice) (*NonIOAncestor, error) {
	if dev == nil {
		return nil, fmt.Errorf("nil pci device")
	}

	devicesDir := filepath.Join(t.root, sysDevicesDir)
	current := dev.Path
	for {
		parent := filepath.Dir(current)
		if parent == current || !strings.HasPrefix(current, devicesDir+string(filepath.Separator)) {
			return nil, fmt.Errorf("pci device %s isn't under %s", dev.Address, devicesDir)
		}

		if node, ok := t.readNUMANode(current); ok && node >= 0 {
			return &NonIOAncestor{Path: current}, nil
		}

		if parent == devicesDir {
			// current is the pci root, e.g. devices/pci0000:20
			return &NonIOAncestor{Path: current}, nil
		}
		current = parent
	}
}

// GetNUMANodeOf reads numa_node of the ancestor. Some machines (e.g. VMs)
// miss the file or fill it with -1; such devices are regarded as NUMA node 0.
func (t *SysFSTopology) GetNUMANodeOf(ancestor *NonIOAncestor) (int, error) {
	if ancestor == nil {
		return -1, fmt.Errorf("nil ancestor")
	}

	node, ok := t.readNUMANode(ancestor.Path)
	if !ok || node < 0 {
		general.Warningf("invalid numa node for %s, suppose it's associated with numa node 0", ancestor.Path)
		return 0, nil
	}
	return node, nil
}

func (t *SysFSTopology) readNUMANode(dir string) (int, bool) {
	content, err := afero.ReadFile(t.fs, filepath.Join(dir, sysNUMANodeFile))
	if err != nil {
		return -1, false
	}
	node, err := general.ParseInt64(string(content))
	if err != nil {
		general.Warningf("unexpected content of %s/%s: %v", dir, sysNUMANodeFile, err)
		return -1, false
	}
	return int(node), true
}

// walkPCI visits every directory and file inside devices/pci* without
// following symlinks; fn may return filepath.SkipDir to prune a directory.
func (t *SysFSTopology) walkPCI(fn func(path string, info os.FileInfo) error) error {
	return walkPCI(t.fs, t.root, fn)
}

func walkPCI(fs afero.Fs, root string, fn func(path string, info os.FileInfo) error) error {
	devicesDir := filepath.Join(root, sysDevicesDir)
	roots, err := afero.ReadDir(fs, devicesDir)
	if err != nil {
		return errors.Wrapf(err, "failed to read dir %s", devicesDir)
	}

	for _, r := range roots {
		if !r.IsDir() || !strings.HasPrefix(r.Name(), pciRootPrefix) {
			continue
		}

		err = afero.Walk(fs, filepath.Join(devicesDir, r.Name()), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				// some attributes are not readable, skip them
				return nil
			}
			return fn(path, info)
		})
		if err != nil {
			return errors.Wrapf(err, "failed to walk %s", r.Name())
		}
	}
	return nil
}
