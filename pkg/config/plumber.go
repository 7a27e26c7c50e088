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

package config

import (
	"github.com/kubewharf/nic-plumber/pkg/plumber"
)

// PlumberConfiguration stores the configurations of address resolution
type PlumberConfiguration struct {
	BucketPolicy plumber.BucketPolicy
	NICPolicy    plumber.NICPolicy

	// StateRoot is the parent directory of the round-robin state directory
	StateRoot string
	// Identity names the round-robin state directory, processes of the
	// same identity share round-robin cursors
	Identity string

	// SysFSRoot is where topology and fabric nics are discovered
	SysFSRoot string
}

func NewPlumberConfiguration() *PlumberConfiguration {
	return &PlumberConfiguration{}
}
