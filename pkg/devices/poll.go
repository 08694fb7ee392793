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
	"time"

	"github.com/carverauto/hashradar/pkg/miner"
	"github.com/carverauto/hashradar/pkg/models"
)

// runPollLoop polls one device until its context is cancelled. Poll
// failures never end the loop; they only flip the device status.
func (m *Manager) runPollLoop(md *managedDevice) {
	defer close(md.done)

	m.mu.RLock()
	interval := time.Duration(md.record.PollingInterval)
	m.mu.RUnlock()

	ticker := m.clock.Ticker(interval)
	defer func() { ticker.Stop() }()

	m.log.Debug().Str("device_id", md.id).Dur("interval", interval).Msg("Polling loop started")

	m.collect(md)

	for {
		select {
		case <-md.ctx.Done():
			m.log.Debug().Str("device_id", md.id).Msg("Polling loop stopped")
			return
		case <-ticker.Chan():
			m.collect(md)
		case newInterval := <-md.reloadCh:
			// Hot-reload: swap the ticker for the new cadence.
			ticker.Stop()
			ticker = m.clock.Ticker(newInterval)

			m.log.Info().Str("device_id", md.id).Dur("interval", newInterval).Msg("Polling interval hot-reloaded")
		}
	}
}

// collect runs one poll round: status, metrics, and every Nth round the
// upstream pool slots. Adapter panics are contained to the round.
func (m *Manager) collect(md *managedDevice) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("device_id", md.id).Msg("Recovered panic while polling device")
		}
	}()

	ctx, cancel := context.WithTimeout(md.ctx, time.Duration(m.cfg.CollectTimeout))
	defer cancel()

	status, err := md.adapter.Status(ctx)
	if err != nil {
		if md.ctx.Err() != nil {
			return
		}

		m.markFailure(ctx, md, err)

		return
	}

	metrics, err := md.adapter.Metrics(ctx)
	if err != nil {
		if md.ctx.Err() != nil {
			return
		}

		m.markFailure(ctx, md, err)

		return
	}

	md.tick++

	var pools []models.PoolInfo

	if (md.tick-1)%uint64(m.cfg.PoolInfoEvery) == 0 {
		fetched, perr := md.adapter.PoolInfo(ctx)
		if perr != nil {
			m.log.Debug().Err(perr).Str("device_id", md.id).Msg("Pool info fetch failed")
		} else {
			pools = fetched
		}
	}

	m.markSuccess(ctx, md, status, metrics, pools)
}

// markSuccess records a healthy poll round: the adapter-reported status,
// a fresh LastUpdated, and the metrics and pool slots merged into the
// record under the same lock, so readers never see a half-updated
// device. Config writes and device events happen only on a status
// transition; a nil pools leaves the previous slots in place.
func (m *Manager) markSuccess(ctx context.Context, md *managedDevice, status models.DeviceStatus, metrics models.Metrics, pools []models.PoolInfo) {
	now := m.clock.Now().UTC()

	m.mu.Lock()
	changed := md.record.Status != status
	md.record.Status = status
	md.record.LastUpdated = now
	md.record.LastError = ""

	if len(metrics) > 0 {
		if md.record.Metrics == nil {
			md.record.Metrics = make(models.Metrics, len(metrics))
		}

		for k, v := range metrics {
			md.record.Metrics[k] = v
		}
	}

	if pools != nil {
		md.record.PoolInfo = pools
	}

	device := md.record.Copy()
	m.mu.Unlock()

	if changed {
		m.persistDevice(ctx, device)
		m.publishDevice(device)
	}

	if len(metrics) == 0 {
		return
	}

	if m.store != nil {
		if err := m.store.SaveMetrics(ctx, md.id, metrics, now); err != nil {
			m.log.Warn().Err(err).Str("device_id", md.id).Msg("Failed to persist metrics")
		}
	}

	if m.publisher != nil {
		m.publisher.Publish(models.TopicMetrics, models.MetricsSnapshot{
			DeviceID:  md.id,
			Metrics:   metrics.Copy(),
			PoolInfo:  pools,
			Timestamp: now,
		})
	}
}

// markFailure maps a poll error onto the device status: transport
// failures mean offline, anything else means a device-side error.
func (m *Manager) markFailure(ctx context.Context, md *managedDevice, err error) {
	status := models.DeviceStatusError
	if miner.IsConnectionError(err) {
		status = models.DeviceStatusOffline
	}

	m.mu.Lock()
	changed := md.record.Status != status
	md.record.Status = status
	md.record.LastError = err.Error()
	device := md.record.Copy()
	m.mu.Unlock()

	if changed {
		m.log.Warn().Err(err).
			Str("device_id", md.id).
			Str("status", string(status)).
			Msg("Device poll failed")

		m.persistDevice(ctx, device)
		m.publishDevice(device)

		return
	}

	m.log.Debug().Err(err).Str("device_id", md.id).Msg("Device poll still failing")
}
