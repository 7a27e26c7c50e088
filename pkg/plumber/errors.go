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

package plumber

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a resolution failed, so that callers can branch on it
type Kind string

const (
	KindUnknownPolicy       Kind = "UnknownPolicy"
	KindTopologyMismatch    Kind = "TopologyMismatch"
	KindEmptyBucket         Kind = "EmptyBucket"
	KindLocalityUnavailable Kind = "LocalityUnavailable"
	KindInconsistentPolicy  Kind = "InconsistentPolicy"
	KindStateDirectoryError Kind = "StateDirectoryError"
	KindStateFileError      Kind = "StateFileError"
	KindCorruptState        Kind = "CorruptState"
	KindFabricQueryFailed   Kind = "FabricQueryFailed"
)

// Error is returned by every failing operation of this package
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in the chain of err,
// or an empty Kind if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
