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

package options

import (
	"os"

	"github.com/pkg/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/kubewharf/nic-plumber/pkg/config"
	"github.com/kubewharf/nic-plumber/pkg/plumber"
	"github.com/kubewharf/nic-plumber/pkg/util/machine"
)

const (
	FlagBucketPolicy = "bucket-policy"
	FlagNICPolicy    = "nic-policy"
	FlagStateRoot    = "state-root"
	FlagIdentity     = "identity"
	FlagSysFSRoot    = "sysfs-root"
)

// PlumberOptions holds the configurations of address resolution
type PlumberOptions struct {
	BucketPolicy string
	NICPolicy    string
	StateRoot    string
	Identity     string
	SysFSRoot    string
}

func NewPlumberOptions() *PlumberOptions {
	return &PlumberOptions{
		BucketPolicy: string(plumber.BucketPolicyNUMA),
		NICPolicy:    string(plumber.NICPolicyRoundRobin),
		StateRoot:    os.TempDir(),
		SysFSRoot:    machine.DefaultSysFSRoot,
	}
}

// AddFlags adds flags  to the specified FlagSet.
func (o *PlumberOptions) AddFlags(fss *cliflag.NamedFlagSets) {
	fs := fss.FlagSet("plumber")

	fs.StringVar(&o.BucketPolicy, FlagBucketPolicy, o.BucketPolicy,
		"how nics are grouped: 'all' puts every nic into one bucket, 'numa' keeps one bucket per numa node")
	fs.StringVar(&o.NICPolicy, FlagNICPolicy, o.NICPolicy,
		"how a nic is picked from the bucket: 'roundrobin' rotates across processes, 'random' draws with the pid as seed")
	fs.StringVar(&o.StateRoot, FlagStateRoot, o.StateRoot,
		"the parent directory of the round-robin state directory")
	fs.StringVar(&o.Identity, FlagIdentity, o.Identity,
		"the owner of round-robin cursors, the login name of the current user if empty")
	fs.StringVar(&o.SysFSRoot, FlagSysFSRoot, o.SysFSRoot, "the root of sysfs")
}

// ApplyTo fills up config with options
func (o *PlumberOptions) ApplyTo(c *config.PlumberConfiguration) error {
	bucketPolicy, err := plumber.ParseBucketPolicy(o.BucketPolicy)
	if err != nil {
		return err
	}
	nicPolicy, err := plumber.ParseNICPolicy(o.NICPolicy)
	if err != nil {
		return err
	}

	c.BucketPolicy = bucketPolicy
	c.NICPolicy = nicPolicy
	c.StateRoot = o.StateRoot
	c.Identity = o.Identity
	if c.Identity == "" {
		c.Identity = plumber.DefaultIdentity()
	}
	c.SysFSRoot = o.SysFSRoot
	return nil
}

// Validate checks the options that can be checked without touching the node
func (o *PlumberOptions) Validate() []error {
	var errList []error
	if _, err := plumber.ParseBucketPolicy(o.BucketPolicy); err != nil {
		errList = append(errList, errors.Wrapf(err, "--%s", FlagBucketPolicy))
	}
	if _, err := plumber.ParseNICPolicy(o.NICPolicy); err != nil {
		errList = append(errList, errors.Wrapf(err, "--%s", FlagNICPolicy))
	}
	if o.StateRoot == "" {
		errList = append(errList, errors.Errorf("--%s must not be empty", FlagStateRoot))
	}
	if o.SysFSRoot == "" {
		errList = append(errList, errors.Errorf("--%s must not be empty", FlagSysFSRoot))
	}
	return errList
}
