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

package app

import (
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/kubewharf/nic-plumber/pkg/config"
	"github.com/kubewharf/nic-plumber/pkg/metrics"
	"github.com/kubewharf/nic-plumber/pkg/plumber"
	"github.com/kubewharf/nic-plumber/pkg/util/general"
)

// BucketsReport is what the buckets command prints
type BucketsReport struct {
	BucketPolicy plumber.BucketPolicy `yaml:"bucketPolicy"`
	NICCount     int                  `yaml:"nicCount"`
	Buckets      plumber.BucketSet    `yaml:"buckets"`
}

// RunResolve resolves address and writes the result to out
func RunResolve(conf *config.Configuration, address string, out io.Writer) error {
	emitter, flush := newMetricsEmitter(conf)
	defer flush()

	resolver, err := newResolver(conf, emitter)
	if err != nil {
		return err
	}

	resolved, err := resolver.Resolve(address)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, resolved)
	return err
}

// RunBuckets writes the buckets of this node to out
func RunBuckets(conf *config.Configuration, out io.Writer) error {
	emitter, flush := newMetricsEmitter(conf)
	defer flush()

	resolver, err := newResolver(conf, emitter)
	if err != nil {
		return err
	}

	set, err := resolver.Buckets()
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(out)
	defer func() {
		_ = encoder.Close()
	}()
	return encoder.Encode(BucketsReport{
		BucketPolicy: conf.BucketPolicy,
		NICCount:     set.NICCount(),
		Buckets:      set,
	})
}

func newResolver(conf *config.Configuration, emitter metrics.MetricEmitter) (*plumber.Resolver, error) {
	opts, err := plumber.WithSysFS(plumber.Options{
		BucketPolicy: conf.BucketPolicy,
		NICPolicy:    conf.NICPolicy,
		StateRoot:    conf.StateRoot,
		Identity:     conf.Identity,
		Seed:         plumber.ProcessSeed,
		Clock:        clockwork.NewRealClock(),
		Emitter:      emitter,
	}, afero.NewOsFs(), conf.SysFSRoot)
	if err != nil {
		return nil, err
	}
	return plumber.NewResolver(opts)
}

// newMetricsEmitter returns the emitter of a command, along with the
// function to call once the command is done.
func newMetricsEmitter(conf *config.Configuration) (metrics.MetricEmitter, func()) {
	if !conf.EnableMetrics() {
		return metrics.DummyMetrics{}, func() {}
	}

	emitter := metrics.NewPrometheusMetricsEmitter(conf.MetricsNamespace)
	return emitter, func() {
		if err := emitter.WriteToTextfile(conf.MetricsTextfile); err != nil {
			general.Errorf("write metrics to %s failed: %v", conf.MetricsTextfile, err)
		}
	}
}
