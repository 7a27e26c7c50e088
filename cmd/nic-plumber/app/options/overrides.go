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
	"bytes"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kubewharf/nic-plumber/cmd/base/options"
	"github.com/kubewharf/nic-plumber/pkg/util/general"
)

// EnvPrefix prefixes the environment variables that override flag defaults,
// e.g. NIC_PLUMBER_BUCKET_POLICY.
const EnvPrefix = "NIC_PLUMBER"

// overrides is the content of the config file, and of the environment.
// An empty field leaves the corresponding flag alone.
type overrides struct {
	BucketPolicy     string `yaml:"bucketPolicy" envconfig:"BUCKET_POLICY"`
	NICPolicy        string `yaml:"nicPolicy" envconfig:"NIC_POLICY"`
	StateRoot        string `yaml:"stateRoot" envconfig:"STATE_ROOT"`
	Identity         string `yaml:"identity" envconfig:"IDENTITY"`
	SysFSRoot        string `yaml:"sysfsRoot" envconfig:"SYSFS_ROOT"`
	MetricsTextfile  string `yaml:"metricsTextfile" envconfig:"METRICS_TEXTFILE"`
	LogsPackageLevel string `yaml:"logsPackageLevel" envconfig:"LOGS_PACKAGE_LEVEL"`
}

func (o *overrides) flags() map[string]string {
	return map[string]string{
		FlagBucketPolicy:             o.BucketPolicy,
		FlagNICPolicy:                o.NICPolicy,
		FlagStateRoot:                o.StateRoot,
		FlagIdentity:                 o.Identity,
		FlagSysFSRoot:                o.SysFSRoot,
		options.FlagMetricsTextfile:  o.MetricsTextfile,
		options.FlagLogsPackageLevel: o.LogsPackageLevel,
	}
}

func loadConfigFile(path string) (*overrides, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	o := &overrides{}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(o); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}
	return o, nil
}

func loadEnv() (*overrides, error) {
	o := &overrides{}
	if err := envconfig.Process(EnvPrefix, o); err != nil {
		return nil, errors.Wrapf(err, "parse %s_* environment", EnvPrefix)
	}
	return o, nil
}

// applyOverrides sets every flag that is not in explicit to the value
// given by o; later calls take precedence over earlier ones.
func applyOverrides(fs *pflag.FlagSet, explicit sets.String, o *overrides, source string) error {
	for name, val := range o.flags() {
		if val == "" || explicit.Has(name) {
			continue
		}
		if fs.Lookup(name) == nil {
			continue
		}
		if err := fs.Set(name, val); err != nil {
			return errors.Wrapf(err, "invalid %s from %s", name, source)
		}
		general.InfofV(4, "flag --%s set to %q by %s", name, val, source)
	}
	return nil
}
