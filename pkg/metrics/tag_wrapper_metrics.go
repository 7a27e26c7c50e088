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

const unitTagKey = "unit"

// MetricTagWrapper is a wrapped implementation for MetricEmitter
// it contains a standard MetricEmitter implementation along with
// pre-defined common metrics tags
type MetricTagWrapper struct {
	// unitTag is a special tag to indicate its owner component unit
	// commonTags are those tags that should be added by default
	unitTag    MetricTag
	commonTags []MetricTag

	MetricEmitter
}

var _ MetricEmitter = &MetricTagWrapper{}

func (t *MetricTagWrapper) StoreInt64(key string, val int64, emitType MetricTypeName, tags ...MetricTag) error {
	return t.MetricEmitter.StoreInt64(key, val, emitType, t.withCommonTags(tags)...)
}

func (t *MetricTagWrapper) StoreFloat64(key string, val float64, emitType MetricTypeName, tags ...MetricTag) error {
	return t.MetricEmitter.StoreFloat64(key, val, emitType, t.withCommonTags(tags)...)
}

// WithTags returns a copy, the receiver keeps its own unit and common tags
func (t *MetricTagWrapper) WithTags(unit string, commonTags ...MetricTag) MetricEmitter {
	newMetricTagWrapper := &MetricTagWrapper{MetricEmitter: t.MetricEmitter}
	newMetricTagWrapper.commonTags = append(newMetricTagWrapper.commonTags, t.commonTags...)
	newMetricTagWrapper.unitTag = MetricTag{Key: unitTagKey, Val: unit}
	newMetricTagWrapper.addOrUpdateCommonTags(commonTags)
	return newMetricTagWrapper
}

// withCommonTags appends common tags and the unit tag after the given ones;
// emitters keep the first value of a duplicated key.
func (t *MetricTagWrapper) withCommonTags(tags []MetricTag) []MetricTag {
	res := make([]MetricTag, 0, len(tags)+len(t.commonTags)+1)
	res = append(res, tags...)
	res = append(res, t.commonTags...)
	return append(res, t.unitTag)
}

// addOrUpdateCommonTags tries to add a tag to common tags list.
func (t *MetricTagWrapper) addOrUpdateCommonTags(tags []MetricTag) {
	for _, tag := range tags {
		exist := false
		for i := range t.commonTags {
			if tag.Key == t.commonTags[i].Key {
				t.commonTags[i].Val = tag.Val
				exist = true
				break
			}
		}
		if !exist {
			t.commonTags = append(t.commonTags, tag)
		}
	}
}
