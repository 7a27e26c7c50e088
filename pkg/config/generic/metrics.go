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

package generic

// MetricsConfiguration stores the configurations of metrics emitting
type MetricsConfiguration struct {
	// MetricsNamespace prefixes every metric name
	MetricsNamespace string
	// MetricsTextfile, if not empty, is where metrics are dumped in the
	// text exposition format after each command
	MetricsTextfile string
}

func NewMetricsConfiguration() *MetricsConfiguration {
	return &MetricsConfiguration{}
}

// EnableMetrics reports whether metrics should be kept at all
func (c *MetricsConfiguration) EnableMetrics() bool {
	return c.MetricsTextfile != ""
}
