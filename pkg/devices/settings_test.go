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

package devices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hashradar/pkg/models"
)

func TestPollingSettingsReportsFleet(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	settings := h.manager.PollingSettings()
	assert.Equal(t, models.Duration(defaultPollingInterval), settings.DefaultInterval)
	assert.Equal(t, models.Duration(MinPollingInterval), settings.MinInterval)
	assert.Empty(t, settings.Devices)

	device, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{
		PollingInterval: models.Duration(10 * time.Second),
	})
	require.NoError(t, err)

	settings = h.manager.PollingSettings()
	require.Len(t, settings.Devices, 1)
	assert.Equal(t, models.Duration(10*time.Second), settings.Devices[device.ID])
}

func TestSetGlobalPollingInterval(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	first, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	second, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.43", 80, AddOptions{
		PollingInterval: models.Duration(5 * time.Second),
	})
	require.NoError(t, err)

	require.NoError(t, h.manager.SetGlobalPollingInterval(context.Background(), time.Minute))

	// Every device runs at the new cadence, explicit intervals included.
	for _, id := range []string{first.ID, second.ID} {
		got, err := h.manager.Device(id)
		require.NoError(t, err)
		assert.Equal(t, models.Duration(time.Minute), got.PollingInterval)
	}

	// Devices added afterwards inherit the new default.
	settings := h.manager.PollingSettings()
	assert.Equal(t, models.Duration(time.Minute), settings.DefaultInterval)

	third, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.44", 80, AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.Duration(time.Minute), third.PollingInterval)
}

func TestSetGlobalPollingIntervalRejectsShort(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	device, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	require.ErrorIs(t, h.manager.SetGlobalPollingInterval(context.Background(), 200*time.Millisecond), ErrInvalidInterval)

	got, err := h.manager.Device(device.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Duration(defaultPollingInterval), got.PollingInterval)
}
