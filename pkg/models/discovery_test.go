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

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverySessionCopyIsDeep(t *testing.T) {
	orig := &DiscoverySession{
		CIDR:   "192.168.1.0/24",
		Ports:  []int{80, 4028},
		Status: DiscoveryStatusCompleted,
		Results: []DiscoveredDevice{
			{Address: "192.168.1.42", Port: 80, Type: DeviceTypeBitaxe},
		},
	}

	cp := orig.Copy()
	require.NotNil(t, cp)

	cp.Ports[0] = 9999
	cp.Results[0].Address = "changed"
	cp.Status = DiscoveryStatusError

	assert.Equal(t, 80, orig.Ports[0])
	assert.Equal(t, "192.168.1.42", orig.Results[0].Address)
	assert.Equal(t, DiscoveryStatusCompleted, orig.Status)
}

func TestDiscoverySessionCopyNil(t *testing.T) {
	var s *DiscoverySession

	assert.Nil(t, s.Copy())
}
