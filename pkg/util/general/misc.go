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

package general

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseLinuxListFormat parses the kernel list format, e.g. "0-3,8,10-11"
func ParseLinuxListFormat(listStr string) ([]int64, error) {
	if strings.TrimSpace(listStr) == "" {
		return nil, nil
	}

	var list []int64
	for _, sec := range strings.Split(listStr, ",") {
		boundaries := strings.Split(sec, "-")
		switch len(boundaries) {
		case 1:
			val, err := strconv.ParseInt(boundaries[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid section %s in %s", sec, listStr)
			}
			list = append(list, val)
		case 2:
			start, err := strconv.ParseInt(boundaries[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid section %s in %s", sec, listStr)
			}
			end, err := strconv.ParseInt(boundaries[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid section %s in %s", sec, listStr)
			}
			if start >= end {
				return nil, fmt.Errorf("invalid section %s in %s", sec, listStr)
			}
			for ; start <= end; start++ {
				list = append(list, start)
			}
		default:
			return nil, fmt.Errorf("%s contains strange section %s", listStr, sec)
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list, nil
}

// ParseInt64 parses a trimmed decimal integer
func ParseInt64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1, fmt.Errorf("failed to ParseInt(%s), err %v", s, err)
	}
	return val, nil
}
