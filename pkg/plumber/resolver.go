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

// Package plumber resolves an unqualified CXI address into an address bound
// to one NIC of the node, preferring NICs close to the calling process and
// spreading processes over the NICs of a bucket.
package plumber // import "github.com/kubewharf/nic-plumber/pkg/plumber"

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/kubewharf/nic-plumber/pkg/metrics"
	"github.com/kubewharf/nic-plumber/pkg/plumber/state"
	"github.com/kubewharf/nic-plumber/pkg/util/general"
	"github.com/kubewharf/nic-plumber/pkg/util/machine"
)

const (
	schemeCXI    = "cxi"
	schemeOFICXI = "ofi+cxi"

	// unresolvedSuffix marks an address without a NIC name
	unresolvedSuffix = "//"
)

const (
	metricsNameResolveTotal = "resolve_total"

	resolveResultPassthrough = "passthrough"
	resolveResultResolved    = "resolved"
	resolveResultFailed      = "failed"
)

var osGetuid = os.Getuid

// Options holds the inputs of a Resolver. Policies are mandatory, the
// collaborators are mandatory, everything else has a default.
type Options struct {
	BucketPolicy BucketPolicy
	NICPolicy    NICPolicy

	// StateRoot is the parent of the round-robin state directory,
	// os.TempDir() if empty.
	StateRoot string
	// Identity names the state directory, processes sharing it share cursors
	Identity string
	Seed     SeedSource

	Topology machine.TopologyProvider
	Locality machine.LocalityProbe
	Fabric   machine.FabricProvider

	Clock   clockwork.Clock
	Emitter metrics.MetricEmitter
}

// Resolver rewrites CXI address templates with the selected NIC
type Resolver struct {
	bucketPolicy BucketPolicy
	nicPolicy    NICPolicy

	topology machine.TopologyProvider
	fabric   machine.FabricProvider
	selector *Selector
	emitter  metrics.MetricEmitter
}

func NewResolver(opts Options) (*Resolver, error) {
	if !opts.BucketPolicy.Valid() {
		return nil, newError(KindUnknownPolicy, nil, "unknown bucket policy %q", opts.BucketPolicy)
	}
	if !opts.NICPolicy.Valid() {
		return nil, newError(KindUnknownPolicy, nil, "unknown nic policy %q", opts.NICPolicy)
	}
	if opts.Topology == nil || opts.Locality == nil || opts.Fabric == nil {
		return nil, fmt.Errorf("topology, locality and fabric must all be set")
	}

	emitter := opts.Emitter
	if emitter == nil {
		emitter = metrics.DummyMetrics{}
	}

	drawers := map[NICPolicy]Drawer{
		NICPolicyRandom: NewRandom(opts.Seed),
	}
	if opts.NICPolicy == NICPolicyRoundRobin {
		store, err := state.NewFileCounterStore(opts.StateRoot, opts.Identity, opts.Clock, emitter.WithTags("state"))
		if err != nil {
			return nil, stateError(err, -1)
		}
		drawers[NICPolicyRoundRobin] = NewRoundRobin(store)
	}

	return &Resolver{
		bucketPolicy: opts.BucketPolicy,
		nicPolicy:    opts.NICPolicy,
		topology:     opts.Topology,
		fabric:       opts.Fabric,
		selector:     NewSelector(opts.Locality, drawers, emitter.WithTags("selector")),
		emitter:      emitter.WithTags("resolver"),
	}, nil
}

// NeedsResolution reports whether address is a CXI template without NIC name
func NeedsResolution(address string) bool {
	if !strings.HasPrefix(address, schemeCXI) && !strings.HasPrefix(address, schemeOFICXI) {
		return false
	}
	return strings.HasSuffix(address, unresolvedSuffix)
}

// Resolve returns address unchanged if it needs no resolution, otherwise
// address with the name of the selected NIC appended.
func (r *Resolver) Resolve(address string) (string, error) {
	if !NeedsResolution(address) {
		general.InfofV(4, "%q needs no resolution", address)
		r.emitResolved(resolveResultPassthrough, "")
		return address, nil
	}

	resolved, err := r.resolve(address)
	if err != nil {
		general.ErrorS(err, "resolve failed", "address", address,
			"bucketPolicy", r.bucketPolicy, "nicPolicy", r.nicPolicy, "kind", KindOf(err))
		r.emitResolved(resolveResultFailed, KindOf(err))
		return "", err
	}

	general.InfoS("resolved", "address", address, "resolved", resolved)
	r.emitResolved(resolveResultResolved, "")
	return resolved, nil
}

func (r *Resolver) resolve(address string) (string, error) {
	set, err := r.Buckets()
	if err != nil {
		return "", err
	}

	_, nic, err := r.selector.SelectNIC(r.bucketPolicy, r.nicPolicy, set)
	if err != nil {
		return "", err
	}
	return address + nic, nil
}

// Buckets discovers the fabric NICs and groups them per the bucket policy
func (r *Resolver) Buckets() (BucketSet, error) {
	nics, err := r.fabric.GetFabricNICs()
	if err != nil {
		return nil, newError(KindFabricQueryFailed, err, "discover %s nics", machine.FabricCXI)
	}
	general.InfofV(4, "discovered nics %v", nics)

	return BuildBuckets(r.bucketPolicy, nics, r.topology)
}

func (r *Resolver) emitResolved(result string, kind Kind) {
	_ = r.emitter.StoreInt64(metricsNameResolveTotal, 1, metrics.MetricTypeNameCount,
		metrics.MetricTag{Key: "result", Val: result},
		metrics.MetricTag{Key: "kind", Val: string(kind)})
}

// Resolve resolves address on the local node, reading topology from
// /sys and keeping round-robin state of the current user in os.TempDir().
func Resolve(address, bucketPolicy, nicPolicy string) (string, error) {
	if !NeedsResolution(address) {
		return address, nil
	}

	opts, err := DefaultOptions(bucketPolicy, nicPolicy)
	if err != nil {
		return "", err
	}

	resolver, err := NewResolver(opts)
	if err != nil {
		return "", err
	}
	return resolver.Resolve(address)
}

// DefaultOptions parses the policies and fills Options with the sysfs
// collaborators of the local node.
func DefaultOptions(bucketPolicy, nicPolicy string) (Options, error) {
	bp, err := ParseBucketPolicy(bucketPolicy)
	if err != nil {
		return Options{}, err
	}
	np, err := ParseNICPolicy(nicPolicy)
	if err != nil {
		return Options{}, err
	}

	return WithSysFS(Options{
		BucketPolicy: bp,
		NICPolicy:    np,
		Identity:     DefaultIdentity(),
		Seed:         ProcessSeed,
	}, afero.NewOsFs(), machine.DefaultSysFSRoot)
}

// WithSysFS returns opts with topology, locality and fabric discovered
// from the sysfs tree at root.
func WithSysFS(opts Options, fs afero.Fs, root string) (Options, error) {
	topology := machine.NewSysFSTopology(fs, root)
	nodes, err := topology.GetNUMANodes()
	if err != nil {
		return Options{}, newError(KindFabricQueryFailed, err, "enumerate numa nodes under %s", root)
	}

	opts.Topology = topology
	opts.Locality = machine.NewGetcpuLocalityProbe(nodes)
	opts.Fabric = machine.NewSysFSFabric(fs, root)
	return opts, nil
}

// DefaultIdentity returns the login name of the current user,
// or its uid if the user can't be looked up.
func DefaultIdentity() string {
	u, err := user.Current()
	if err == nil && u.Username != "" && !strings.ContainsRune(u.Username, '/') {
		return u.Username
	}
	if err != nil {
		general.Warningf("lookup current user: %v", errors.Cause(err))
	}
	return strconv.Itoa(osGetuid())
}
