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
	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/kubewharf/nic-plumber/cmd/base/options"
	"github.com/kubewharf/nic-plumber/pkg/config"
)

const FlagConfig = "config"

// Options holds the configurations for nic-plumber.
type Options struct {
	// those are options shared by all commands
	*options.GenericOptions

	*PlumberOptions

	// ConfigFile is a yaml file whose values replace flag defaults
	ConfigFile string
}

// NewOptions creates a new Options with a default config.
func NewOptions() *Options {
	return &Options{
		GenericOptions: options.NewGenericOptions(),
		PlumberOptions: NewPlumberOptions(),
	}
}

// AddFlags adds flags  to the specified FlagSet.
func (o *Options) AddFlags(fss *cliflag.NamedFlagSets) {
	o.GenericOptions.AddFlags(fss)
	o.PlumberOptions.AddFlags(fss)

	fs := fss.FlagSet("config")
	fs.StringVar(&o.ConfigFile, FlagConfig, o.ConfigFile,
		"a yaml file to read defaults from, NIC_PLUMBER_* environment variables take precedence over it "+
			"and command line flags take precedence over both")
}

// Complete applies the config file and the environment to every flag of fs
// that was not given on the command line.
func (o *Options) Complete(fs *pflag.FlagSet) error {
	explicit := sets.NewString()
	fs.Visit(func(f *pflag.Flag) {
		explicit.Insert(f.Name)
	})

	if o.ConfigFile != "" {
		file, err := loadConfigFile(o.ConfigFile)
		if err != nil {
			return err
		}
		if err := applyOverrides(fs, explicit, file, o.ConfigFile); err != nil {
			return err
		}
	}

	env, err := loadEnv()
	if err != nil {
		return err
	}
	return applyOverrides(fs, explicit, env, "environment")
}

// Validate checks all options and reports every problem at once
func (o *Options) Validate() error {
	return errors.NewAggregate(o.PlumberOptions.Validate())
}

// ApplyTo fills up config with options
func (o *Options) ApplyTo(c *config.Configuration) error {
	var errList []error

	errList = append(errList, o.GenericOptions.ApplyTo(c.GenericConfiguration))
	errList = append(errList, o.PlumberOptions.ApplyTo(c.PlumberConfiguration))

	return errors.NewAggregate(errList)
}

// Config returns a new configuration instance.
func (o *Options) Config() (*config.Configuration, error) {
	c := config.NewConfiguration()
	if err := o.ApplyTo(c); err != nil {
		return nil, err
	}
	return c, nil
}
