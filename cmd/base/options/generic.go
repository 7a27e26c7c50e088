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
	"flag"
	"os"

	"k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/klog/v2"

	"github.com/kubewharf/nic-plumber/pkg/config/generic"
)

// GenericOptions holds the configurations shared by all commands.
type GenericOptions struct {
	metricsOptions *MetricsOptions
	logsOptions    *LogsOptions
}

func NewGenericOptions() *GenericOptions {
	return &GenericOptions{
		metricsOptions: NewMetricsOptions(),
		logsOptions:    NewLogsOptions(),
	}
}

// AddFlags adds flags  to the specified FlagSet.
func (o *GenericOptions) AddFlags(fss *cliflag.NamedFlagSets) {
	fs := fss.FlagSet("generic")

	local := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	klog.InitFlags(local)
	local.VisitAll(func(fl *flag.Flag) {
		fs.AddGoFlag(fl)
	})

	o.metricsOptions.AddFlags(fs)
	o.logsOptions.AddFlags(fs)
}

// ApplyTo fills up config with options
func (o *GenericOptions) ApplyTo(c *generic.GenericConfiguration) error {
	errList := make([]error, 0, 2)
	errList = append(errList, o.metricsOptions.ApplyTo(c.MetricsConfiguration))
	errList = append(errList, o.logsOptions.ApplyTo(c.LogConfiguration))
	return errors.NewAggregate(errList)
}
