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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/hashradar/pkg/db"
	"github.com/carverauto/hashradar/pkg/miner"
	"github.com/carverauto/hashradar/pkg/models"
)

func TestPollLoopMarksOfflineOnConnectionError(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	_, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	// The initial collect flips the device from connected to online.
	h.pub.wait(t, models.TopicDevices, deviceEventWithStatus(models.DeviceStatusOnline))

	h.adapter.setStatusErr(&miner.ConnectionError{Host: "192.168.1.42", Port: 80, Op: "get status", Err: errors.New("connection refused")})
	h.tickCh <- time.Now()

	ev := h.pub.wait(t, models.TopicDevices, deviceEventWithStatus(models.DeviceStatusOffline))
	device, ok := ev.payload.(*models.Device)
	require.True(t, ok)
	assert.NotEmpty(t, device.LastError)

	// The loop keeps running and recovers on the next good poll.
	h.adapter.setStatusErr(nil)
	h.tickCh <- time.Now()

	ev = h.pub.wait(t, models.TopicDevices, deviceEventWithStatus(models.DeviceStatusOnline))
	device, ok = ev.payload.(*models.Device)
	require.True(t, ok)
	assert.Empty(t, device.LastError)
}

func TestPollLoopMarksErrorOnProtocolError(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeAvalon), nil, nil)

	device, err := h.manager.AddDevice(context.Background(), models.DeviceTypeAvalon, "192.168.1.50", 4028, AddOptions{})
	require.NoError(t, err)

	h.pub.wait(t, models.TopicDevices, deviceEventWithStatus(models.DeviceStatusOnline))

	h.adapter.setStatusErr(&miner.ProtocolError{Host: "192.168.1.50", Port: 4028, Detail: "garbled STATUS section"})
	h.tickCh <- time.Now()

	h.pub.wait(t, models.TopicDevices, deviceEventWithStatus(models.DeviceStatusError))

	got, err := h.manager.Device(device.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusError, got.Status)
	assert.Contains(t, got.LastError, "garbled")
}

func TestPollLoopPoolInfoCadence(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), &Config{PoolInfoEvery: 2}, nil)

	_, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	snapshotHasPools := func(ev streamEvent) bool {
		snapshot, ok := ev.payload.(models.MetricsSnapshot)

		return ok && len(snapshot.PoolInfo) > 0
	}

	// Round one fetches pool info, round two skips it, round three
	// fetches again.
	ev := h.pub.wait(t, models.TopicMetrics, nil)
	assert.True(t, snapshotHasPools(ev))

	h.tickCh <- time.Now()
	ev = h.pub.wait(t, models.TopicMetrics, nil)
	assert.False(t, snapshotHasPools(ev))

	h.tickCh <- time.Now()
	ev = h.pub.wait(t, models.TopicMetrics, nil)
	assert.True(t, snapshotHasPools(ev))

	status, metrics, pools := h.adapter.calls()
	assert.Equal(t, 3, status)
	assert.Equal(t, 3, metrics)
	assert.Equal(t, 2, pools)
}

func TestPollLoopMergesTelemetryIntoRecord(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	device, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	// Before the first round the telemetry fields are present but empty.
	assert.NotNil(t, device.Metrics)
	assert.Empty(t, device.Metrics)
	assert.NotNil(t, device.PoolInfo)
	assert.Empty(t, device.PoolInfo)

	h.pub.wait(t, models.TopicMetrics, nil)

	require.Eventually(t, func() bool {
		got, err := h.manager.Device(device.ID)
		return err == nil && len(got.Metrics) > 0 && len(got.PoolInfo) > 0 && !got.LastUpdated.IsZero()
	}, waitFor, 10*time.Millisecond)

	got, err := h.manager.Device(device.ID)
	require.NoError(t, err)

	hashrate, ok := got.Metrics.Float64(models.MetricHashrate)
	require.True(t, ok)
	assert.InDelta(t, 1.1e12, hashrate, 1)
	assert.Equal(t, "stratum+tcp://pool.example:3333", got.PoolInfo[0].URL)
}

func TestDeviceRecordWireShape(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	device, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	data, err := json.Marshal(device)
	require.NoError(t, err)

	var shape map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &shape))

	// Telemetry keys are part of the record even before any poll lands.
	for _, key := range []string{"id", "type", "address", "port", "status", "added_at", "last_updated", "metrics", "pool_info"} {
		assert.Contains(t, shape, key)
	}

	assert.JSONEq(t, `{}`, string(shape["metrics"]))
	assert.JSONEq(t, `[]`, string(shape["pool_info"]))
	assert.NotContains(t, shape, "last_seen")
}

func TestPollLoopRecoversFromPanic(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	_, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	h.pub.wait(t, models.TopicMetrics, nil)

	h.adapter.setPanicOnce()
	h.tickCh <- time.Now()

	// The panicking round publishes nothing; the next one proves the
	// loop survived.
	h.tickCh <- time.Now()
	h.pub.wait(t, models.TopicMetrics, nil)

	status, _, _ := h.adapter.calls()
	assert.Equal(t, 3, status)
}

func TestPollLoopPersistsMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockStore(ctrl)

	saved := make(chan struct{}, 1)

	store.EXPECT().SaveDeviceConfig(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	store.EXPECT().
		SaveMetrics(gomock.Any(), "bitaxe_192_168_1_42", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, metrics models.Metrics, _ time.Time) error {
			require.Contains(t, metrics, models.MetricHashrate)

			select {
			case saved <- struct{}{}:
			default:
			}

			return nil
		}).
		AnyTimes()

	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, func(d *Deps) {
		d.Store = store
	})

	_, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	select {
	case <-saved:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for metrics to be persisted")
	}
}

func TestPollLoopStillFailingStaysQuiet(t *testing.T) {
	adapter := newFakeAdapter(models.DeviceTypeBitaxe)

	h := newTestManager(t, adapter, nil, nil)

	device, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	h.pub.wait(t, models.TopicDevices, deviceEventWithStatus(models.DeviceStatusOnline))

	adapter.setStatusErr(&miner.ConnectionError{Host: "192.168.1.42", Port: 80, Op: "get status", Err: errors.New("no route to host")})

	h.tickCh <- time.Now()
	h.pub.wait(t, models.TopicDevices, deviceEventWithStatus(models.DeviceStatusOffline))

	// A second failing round must not publish another transition.
	h.tickCh <- time.Now()
	h.tickCh <- time.Now()

	h.pub.mu.Lock()
	var transitions int

	for _, ev := range h.pub.events {
		if ev.topic != models.TopicDevices {
			continue
		}

		if d, ok := ev.payload.(*models.Device); ok && d.Status == models.DeviceStatusOffline {
			transitions++
		}
	}
	h.pub.mu.Unlock()

	assert.Equal(t, 1, transitions)

	got, err := h.manager.Device(device.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOffline, got.Status)
}
