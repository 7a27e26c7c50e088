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

package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePCIAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    PCIAddress
		wantErr bool
	}{
		{name: "regular", input: "0000:21:00.0", want: PCIAddress{Bus: 0x21}},
		{name: "hex fields", input: "000a:c1:1f.7", want: PCIAddress{Domain: 0xa, Bus: 0xc1, Device: 0x1f, Function: 7}},
		{name: "missing function", input: "0000:21:00", wantErr: true},
		{name: "too few fields", input: "21:00.0", wantErr: true},
		{name: "function out of range", input: "0000:21:00.8", wantErr: true},
		{name: "not hex", input: "0000:zz:00.0", wantErr: true},
		{name: "empty field", input: "0000::00.0", wantErr: true},
		{name: "nic name", input: "cxi0", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePCIAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}
