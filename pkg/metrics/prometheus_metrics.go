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

package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsEmitter keeps metrics in a private prometheus registry.
// nic-plumber runs once per process start, so instead of serving the
// registry it is dumped into a node-exporter textfile by WriteToTextfile.
type PrometheusMetricsEmitter struct {
	namespace string
	registry  *prometheus.Registry

	mtx        sync.Mutex
	collectors map[string]*prometheusCollector
}

type prometheusCollector struct {
	emitType MetricTypeName
	labels   []string
	counter  *prometheus.CounterVec
	gauge    *prometheus.GaugeVec
}

var _ MetricEmitter = &PrometheusMetricsEmitter{}

func NewPrometheusMetricsEmitter(namespace string) *PrometheusMetricsEmitter {
	return &PrometheusMetricsEmitter{
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		collectors: make(map[string]*prometheusCollector),
	}
}

func (p *PrometheusMetricsEmitter) StoreInt64(key string, val int64, emitType MetricTypeName, tags ...MetricTag) error {
	return p.StoreFloat64(key, float64(val), emitType, tags...)
}

func (p *PrometheusMetricsEmitter) StoreFloat64(key string, val float64, emitType MetricTypeName, tags ...MetricTag) error {
	labels, values := splitTags(tags)

	c, err := p.getOrRegister(key, emitType, labels)
	if err != nil {
		return err
	}

	switch emitType {
	case MetricTypeNameCount:
		if val < 0 {
			return fmt.Errorf("counter %s can't decrease by %v", key, val)
		}
		c.counter.WithLabelValues(values...).Add(val)
	case MetricTypeNameRaw:
		c.gauge.WithLabelValues(values...).Set(val)
	case MetricTypeNameUpDownCount:
		c.gauge.WithLabelValues(values...).Add(val)
	}
	return nil
}

func (p *PrometheusMetricsEmitter) WithTags(unit string, commonTags ...MetricTag) MetricEmitter {
	newMetricTagWrapper := &MetricTagWrapper{MetricEmitter: p}
	return newMetricTagWrapper.WithTags(unit, commonTags...)
}

func (p *PrometheusMetricsEmitter) Gatherer() prometheus.Gatherer {
	return p.registry
}

// WriteToTextfile atomically writes all metrics in the text exposition format
func (p *PrometheusMetricsEmitter) WriteToTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, p.registry)
}

func (p *PrometheusMetricsEmitter) getOrRegister(key string, emitType MetricTypeName, labels []string) (*prometheusCollector, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if c, ok := p.collectors[key]; ok {
		if c.emitType != emitType {
			return nil, fmt.Errorf("metric %s is registered as %s, not %s", key, c.emitType, emitType)
		}
		if strings.Join(c.labels, ",") != strings.Join(labels, ",") {
			return nil, fmt.Errorf("metric %s is registered with labels %v, not %v", key, c.labels, labels)
		}
		return c, nil
	}

	c := &prometheusCollector{emitType: emitType, labels: labels}
	var collector prometheus.Collector
	switch emitType {
	case MetricTypeNameCount:
		c.counter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      key,
			Help:      key,
		}, labels)
		collector = c.counter
	case MetricTypeNameRaw, MetricTypeNameUpDownCount:
		c.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      key,
			Help:      key,
		}, labels)
		collector = c.gauge
	default:
		return nil, fmt.Errorf("unknown metric type %s", emitType)
	}

	if err := p.registry.Register(collector); err != nil {
		return nil, fmt.Errorf("register metric %s failed: %v", key, err)
	}
	p.collectors[key] = c
	return c, nil
}

// splitTags returns label names in sorted order along with their values,
// the first tag wins when a key is duplicated.
func splitTags(tags []MetricTag) ([]string, []string) {
	kv := make(map[string]string, len(tags))
	for _, tag := range tags {
		if _, ok := kv[tag.Key]; !ok {
			kv[tag.Key] = tag.Val
		}
	}

	labels := make([]string, 0, len(kv))
	for k := range kv {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	values := make([]string, 0, len(labels))
	for _, k := range labels {
		values = append(values, kv[k])
	}
	return labels, values
}
