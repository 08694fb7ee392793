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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/hashradar/pkg/db"
	"github.com/carverauto/hashradar/pkg/miner"
	"github.com/carverauto/hashradar/pkg/models"
)

type fakeScanner struct {
	mu        sync.Mutex
	hits      []models.DiscoveredDevice
	err       error
	block     chan struct{} // when set, Scan waits for it to close
	started   chan struct{}
	startOnce sync.Once
	calls     int
	timeouts  []time.Duration
}

func newFakeScanner(hits ...models.DiscoveredDevice) *fakeScanner {
	return &fakeScanner{hits: hits, started: make(chan struct{})}
}

func (f *fakeScanner) Scan(ctx context.Context, _ string, _ []int, timeout time.Duration) ([]models.DiscoveredDevice, error) {
	f.mu.Lock()
	f.calls++
	f.timeouts = append(f.timeouts, timeout)
	block := f.block
	hits := f.hits
	err := f.err
	f.mu.Unlock()

	f.startOnce.Do(func() { close(f.started) })

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return hits, err
}

func (f *fakeScanner) scanCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func TestStartWithoutStore(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	require.NoError(t, h.manager.Start(context.Background()))
	assert.Empty(t, h.manager.ListDevices())
}

func TestStartRestoresPersistedDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockStore(ctrl)

	reachable := &models.Device{
		ID:              "bitaxe_192_168_1_42",
		Type:            models.DeviceTypeBitaxe,
		Address:         "192.168.1.42",
		Port:            80,
		Name:            "garage",
		Status:          models.DeviceStatusOnline,
		PollingInterval: models.Duration(30 * time.Second),
		AddedAt:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	unreachable := &models.Device{
		ID:              "avalon_192_168_1_50",
		Type:            models.DeviceTypeAvalon,
		Address:         "192.168.1.50",
		Port:            4028,
		Status:          models.DeviceStatusOnline,
		PollingInterval: models.Duration(30 * time.Second),
		AddedAt:         time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}

	store.EXPECT().GetAllDeviceConfigs(gomock.Any()).Return([]*models.Device{reachable, unreachable}, nil)
	store.EXPECT().SaveDeviceConfig(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	store.EXPECT().SaveMetrics(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	dead := newFakeAdapter(models.DeviceTypeAvalon)
	dead.connectErr = &miner.ConnectionError{Host: "192.168.1.50", Port: 4028, Op: "connect", Err: errors.New("no route to host")}
	dead.setStatusErr(&miner.ConnectionError{Host: "192.168.1.50", Port: 4028, Op: "get status", Err: errors.New("no route to host")})

	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, func(d *Deps) {
		d.Store = store
		d.Registry.Register(models.DeviceTypeAvalon, func(_ string, _ int, _ miner.Deps) (miner.Adapter, error) {
			return dead, nil
		})
	})

	require.NoError(t, h.manager.Start(context.Background()))

	list := h.manager.ListDevices()
	require.Len(t, list, 2)

	// Both survive startup: the reachable one comes online, the dead one
	// is parked offline instead of aborting the load.
	require.Eventually(t, func() bool {
		got, err := h.manager.Device(reachable.ID)
		return err == nil && got.Status == models.DeviceStatusOnline
	}, waitFor, 10*time.Millisecond)

	parked, err := h.manager.Device(unreachable.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOffline, parked.Status)
	assert.NotEmpty(t, parked.LastError)
	assert.Equal(t, "garage", list[0].Name)
}

func TestStartToleratesStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockStore(ctrl)

	store.EXPECT().GetAllDeviceConfigs(gomock.Any()).Return(nil, errors.New("connection refused"))

	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, func(d *Deps) {
		d.Store = store
	})

	require.NoError(t, h.manager.Start(context.Background()))
	assert.Empty(t, h.manager.ListDevices())
}

func TestDiscoverRequiresScanner(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	_, err := h.manager.Discover(context.Background(), "192.168.1.0/24", nil, 0, false)
	require.ErrorIs(t, err, ErrDiscoveryUnavailable)
}

func TestDiscoverSingleFlight(t *testing.T) {
	scanner := newFakeScanner(models.DiscoveredDevice{
		Address: "192.168.1.42",
		Port:    80,
		Type:    models.DeviceTypeBitaxe,
	})
	scanner.block = make(chan struct{})

	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, func(d *Deps) {
		d.Scanner = scanner
	})

	type result struct {
		hits []models.DiscoveredDevice
		err  error
	}

	first := make(chan result, 1)

	go func() {
		hits, err := h.manager.Discover(context.Background(), "192.168.1.0/24", []int{80}, 0, false)
		first <- result{hits: hits, err: err}
	}()

	<-scanner.started

	// A second scan while one is running is refused.
	_, err := h.manager.Discover(context.Background(), "192.168.1.0/24", []int{80}, 0, false)
	require.ErrorIs(t, err, ErrDiscoveryInProgress)

	close(scanner.block)

	res := <-first
	require.NoError(t, res.err)
	assert.Len(t, res.hits, 1)

	// The slot frees up once the scan finishes.
	hits, err := h.manager.Discover(context.Background(), "192.168.1.0/24", []int{80}, 0, false)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, 2, scanner.scanCalls())
}

func TestDiscoveryStatusBeforeFirstScan(t *testing.T) {
	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, nil)

	session := h.manager.DiscoveryStatus()
	require.NotNil(t, session)
	assert.Equal(t, models.DiscoveryStatusNotStarted, session.Status)
	assert.Empty(t, session.Results)
	assert.True(t, session.StartedAt.IsZero())
}

func TestDiscoveryStatusTracksSession(t *testing.T) {
	scanner := newFakeScanner(models.DiscoveredDevice{
		Address: "192.168.1.42",
		Port:    80,
		Type:    models.DeviceTypeBitaxe,
	})
	scanner.block = make(chan struct{})

	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, func(d *Deps) {
		d.Scanner = scanner
	})

	done := make(chan error, 1)

	go func() {
		_, err := h.manager.Discover(context.Background(), "192.168.1.0/24", []int{80}, 2*time.Second, false)
		done <- err
	}()

	<-scanner.started

	running := h.manager.DiscoveryStatus()
	assert.Equal(t, models.DiscoveryStatusInProgress, running.Status)
	assert.Equal(t, "192.168.1.0/24", running.CIDR)
	assert.Equal(t, []int{80}, running.Ports)
	assert.False(t, running.StartedAt.IsZero())
	assert.True(t, running.CompletedAt.IsZero())

	close(scanner.block)
	require.NoError(t, <-done)

	finished := h.manager.DiscoveryStatus()
	assert.Equal(t, models.DiscoveryStatusCompleted, finished.Status)
	require.Len(t, finished.Results, 1)
	assert.Equal(t, "192.168.1.42", finished.Results[0].Address)
	assert.False(t, finished.CompletedAt.IsZero())

	// The per-probe timeout flows through to the scanner untouched.
	scanner.mu.Lock()
	timeouts := append([]time.Duration(nil), scanner.timeouts...)
	scanner.mu.Unlock()

	require.Len(t, timeouts, 1)
	assert.Equal(t, 2*time.Second, timeouts[0])

	// Results stay readable until the next scan replaces them.
	again := h.manager.DiscoveryStatus()
	require.Len(t, again.Results, 1)
}

func TestDiscoveryStatusRecordsFailure(t *testing.T) {
	scanner := newFakeScanner()
	scanner.err = errors.New("expand cidr: bad network")

	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, func(d *Deps) {
		d.Scanner = scanner
	})

	_, err := h.manager.Discover(context.Background(), "not-a-network", nil, 0, false)
	require.Error(t, err)

	session := h.manager.DiscoveryStatus()
	assert.Equal(t, models.DiscoveryStatusError, session.Status)
	assert.Contains(t, session.Error, "bad network")

	// A failed scan releases the single-flight slot.
	scanner.mu.Lock()
	scanner.err = nil
	scanner.mu.Unlock()

	_, err = h.manager.Discover(context.Background(), "192.168.1.0/24", nil, 0, false)
	require.NoError(t, err)
	assert.Equal(t, models.DiscoveryStatusCompleted, h.manager.DiscoveryStatus().Status)
}

func TestDiscoverAutoAdd(t *testing.T) {
	scanner := newFakeScanner(
		models.DiscoveredDevice{Address: "192.168.1.42", Port: 80, Type: models.DeviceTypeBitaxe},
		models.DiscoveredDevice{Address: "192.168.1.43", Port: 80, Type: models.DeviceTypeBitaxe},
	)

	h := newTestManager(t, newFakeAdapter(models.DeviceTypeBitaxe), nil, func(d *Deps) {
		d.Scanner = scanner
	})

	// One of the two hits is already managed; auto-add skips it quietly.
	_, err := h.manager.AddDevice(context.Background(), models.DeviceTypeBitaxe, "192.168.1.42", 80, AddOptions{})
	require.NoError(t, err)

	hits, err := h.manager.Discover(context.Background(), "192.168.1.0/24", []int{80}, 0, true)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	list := h.manager.ListDevices()
	require.Len(t, list, 2)

	_, err = h.manager.Device("bitaxe_192_168_1_43")
	require.NoError(t, err)
}
