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

	"github.com/kubewharf/nic-plumber/pkg/config/generic"
)

const FlagMetricsTextfile = "metrics-textfile"

const defaultMetricsNamespace = "nic_plumber"

type MetricsOptions struct {
	MetricsNamespace string
	MetricsTextfile  string
}

func NewMetricsOptions() *MetricsOptions {
	return &MetricsOptions{
		MetricsNamespace: defaultMetricsNamespace,
	}
}

// AddFlags adds flags  to the specified FlagSet.
func (o *MetricsOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.MetricsTextfile, FlagMetricsTextfile, o.MetricsTextfile,
		"if set, metrics are written to this file in the prometheus text format, e.g. for the node-exporter textfile collector")
	fs.StringVar(&o.MetricsNamespace, "metrics-namespace", o.MetricsNamespace, "the prefix of all metric names")
}

func (o *MetricsOptions) ApplyTo(c *generic.MetricsConfiguration) error {
	c.MetricsNamespace = o.MetricsNamespace
	c.MetricsTextfile = o.MetricsTextfile
	return nil
}
