/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		name    string
		cidr    string
		want    []string
		wantErr bool
	}{
		{
			name: "slash 30 skips network and broadcast",
			cidr: "192.168.1.0/30",
			want: []string{"192.168.1.1", "192.168.1.2"},
		},
		{
			name: "slash 32 keeps the single host",
			cidr: "192.168.1.5/32",
			want: []string{"192.168.1.5"},
		},
		{
			name: "slash 29",
			cidr: "10.0.0.0/29",
			want: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"},
		},
		{
			name:    "garbage",
			cidr:    "not-a-cidr",
			wantErr: true,
		},
		{
			name:    "missing mask",
			cidr:    "192.168.1.0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandCIDR(tt.cidr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandCIDRSlash24HostCount(t *testing.T) {
	ips, err := ExpandCIDR("172.16.5.0/24")
	require.NoError(t, err)

	assert.Len(t, ips, 254)
	assert.Equal(t, "172.16.5.1", ips[0])
	assert.Equal(t, "172.16.5.254", ips[len(ips)-1])
}
