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

// Package config is the package that contains the configurations
// nic-plumber resolves addresses with.
package config // import "github.com/kubewharf/nic-plumber/pkg/config"

import (
	"github.com/kubewharf/nic-plumber/pkg/config/generic"
)

// Configuration stores all the configurations needed by nic-plumber,
// it is only filled by options and never changes afterwards.
type Configuration struct {
	// those configurations are shared by every command
	*generic.GenericConfiguration

	// those configurations are used by the resolver
	*PlumberConfiguration
}

func NewConfiguration() *Configuration {
	return &Configuration{
		GenericConfiguration: generic.NewGenericConfiguration(),
		PlumberConfiguration: NewPlumberConfiguration(),
	}
}
