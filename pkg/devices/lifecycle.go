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
	"time"

	"github.com/carverauto/hashradar/pkg/models"
)

// Start restores the persisted fleet. Devices that cannot be reached are
// parked offline with their loop running, so they recover on their own.
// A store failure degrades to an empty table instead of failing the boot.
func (m *Manager) Start(ctx context.Context) error {
	if m.store == nil {
		m.log.Debug().Msg("No store configured, starting with an empty device table")
		return nil
	}

	configs, err := m.store.GetAllDeviceConfigs(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to load persisted devices")
		return nil
	}

	for _, cfg := range configs {
		m.restoreDevice(ctx, cfg)
	}

	m.log.Info().Int("devices", len(configs)).Msg("Device orchestrator started")

	return nil
}

func (m *Manager) restoreDevice(ctx context.Context, record *models.Device) {
	adapter, err := m.registry.Get(record.Type, record.Address, record.Port, m.minerDeps)
	if err != nil {
		m.log.Error().Err(err).Str("device_id", record.ID).Msg("Skipping persisted device with unknown type")
		return
	}

	restored := record.Copy()
	restored.LastError = ""

	if restored.Metrics == nil {
		restored.Metrics = models.Metrics{}
	}

	if restored.PoolInfo == nil {
		restored.PoolInfo = []models.PoolInfo{}
	}

	if time.Duration(restored.PollingInterval) < MinPollingInterval {
		restored.PollingInterval = m.defaultInterval()
	}

	md := newManagedDevice(m.baseCtx, restored, adapter)

	m.mu.Lock()
	if _, exists := m.devices[restored.ID]; exists {
		m.mu.Unlock()
		return
	}

	m.devices[restored.ID] = md
	m.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.ConnectTimeout))
	err = adapter.Connect(connectCtx)

	cancel()

	m.mu.Lock()
	if err != nil {
		md.record.Status = models.DeviceStatusOffline
		md.record.LastError = err.Error()
	} else {
		md.record.Status = models.DeviceStatusConnected
	}

	out := md.record.Copy()
	m.mu.Unlock()

	if err != nil {
		m.log.Warn().Err(err).Str("device_id", restored.ID).Msg("Persisted device unreachable, parked offline")
	}

	go m.runPollLoop(md)

	m.publishDevice(out)
}

// Stop cancels every polling loop, waits for them to exit, disconnects
// the adapters, and closes the session pool. Idempotent.
func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() {
		m.baseCancel()

		m.mu.Lock()
		mds := make([]*managedDevice, 0, len(m.devices))

		for _, md := range m.devices {
			mds = append(mds, md)
		}

		m.devices = make(map[string]*managedDevice)
		m.mu.Unlock()

		for _, md := range mds {
			md.cancel()
		}

		for _, md := range mds {
			<-md.done
		}

		for _, md := range mds {
			if err := md.adapter.Disconnect(context.WithoutCancel(ctx)); err != nil {
				m.log.Warn().Err(err).Str("device_id", md.id).Msg("Disconnect failed during shutdown")
			}
		}

		if m.minerDeps.Pool != nil {
			if err := m.minerDeps.Pool.Close(); err != nil {
				m.log.Warn().Err(err).Msg("Session pool close failed")
			}
		}

		m.log.Info().Int("devices", len(mds)).Msg("Device orchestrator stopped")
	})

	return nil
}

// Discover sweeps a CIDR for known device types. Only one scan runs at a
// time per orchestrator; concurrent calls fail fast. A positive timeout
// bounds each per-target probe; zero uses the prober defaults. With
// autoAdd set, every hit is added to the fleet (already-managed devices
// are skipped). Parameters and results are tracked on the discovery
// session, readable through DiscoveryStatus while the scan runs and
// after it finishes.
func (m *Manager) Discover(ctx context.Context, cidr string, ports []int, timeout time.Duration, autoAdd bool) ([]models.DiscoveredDevice, error) {
	if m.scanner == nil {
		return nil, ErrDiscoveryUnavailable
	}

	m.mu.Lock()
	if m.session != nil && m.session.Status == models.DiscoveryStatusInProgress {
		m.mu.Unlock()
		return nil, ErrDiscoveryInProgress
	}

	m.session = &models.DiscoverySession{
		CIDR:      cidr,
		Ports:     ports,
		Status:    models.DiscoveryStatusInProgress,
		StartedAt: m.clock.Now().UTC(),
	}
	m.mu.Unlock()

	results, err := m.scanner.Scan(ctx, cidr, ports, timeout)

	m.mu.Lock()
	m.session.CompletedAt = m.clock.Now().UTC()

	if err != nil {
		m.session.Status = models.DiscoveryStatusError
		m.session.Error = err.Error()
	} else {
		m.session.Status = models.DiscoveryStatusCompleted

		m.session.Results = results
		if m.session.Results == nil {
			m.session.Results = []models.DiscoveredDevice{}
		}
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if autoAdd {
		for _, hit := range results {
			if _, err := m.AddDevice(ctx, hit.Type, hit.Address, hit.Port, AddOptions{}); err != nil {
				if errors.Is(err, ErrDeviceExists) {
					continue
				}

				m.log.Warn().Err(err).
					Str("address", hit.Address).
					Str("type", string(hit.Type)).
					Msg("Auto-add after discovery failed")
			}
		}
	}

	return results, nil
}

// DiscoveryStatus returns a copy of the current discovery session. Before
// the first scan it reports a not-started session with no results.
func (m *Manager) DiscoveryStatus() *models.DiscoverySession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return &models.DiscoverySession{
			Status:  models.DiscoveryStatusNotStarted,
			Results: []models.DiscoveredDevice{},
		}
	}

	return m.session.Copy()
}
