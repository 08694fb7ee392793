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
	"fmt"
	"sort"
	"time"

	"github.com/carverauto/hashradar/pkg/models"
)

// PollingSettings is the effective polling configuration: the default
// interval new devices inherit, the floor, and the interval every
// managed device currently runs at.
type PollingSettings struct {
	DefaultInterval models.Duration            `json:"default_polling_interval"`
	MinInterval     models.Duration            `json:"min_polling_interval"`
	Devices         map[string]models.Duration `json:"devices"`
}

// PollingSettings reports the current polling configuration.
func (m *Manager) PollingSettings() PollingSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settings := PollingSettings{
		DefaultInterval: m.cfg.DefaultPollingInterval,
		MinInterval:     models.Duration(MinPollingInterval),
		Devices:         make(map[string]models.Duration, len(m.devices)),
	}

	for id, md := range m.devices {
		settings.Devices[id] = md.record.PollingInterval
	}

	return settings
}

// SetGlobalPollingInterval changes the orchestrator-wide poll cadence:
// the default for future devices, and every running loop, which is
// hot-reloaded in place.
func (m *Manager) SetGlobalPollingInterval(ctx context.Context, interval time.Duration) error {
	if interval < MinPollingInterval {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	m.mu.Lock()
	m.cfg.DefaultPollingInterval = models.Duration(interval)

	updated := make([]*models.Device, 0, len(m.devices))

	for _, md := range m.devices {
		md.record.PollingInterval = models.Duration(interval)
		md.pushReload(interval)
		updated = append(updated, md.record.Copy())
	}
	m.mu.Unlock()

	sort.Slice(updated, func(i, j int) bool { return updated[i].ID < updated[j].ID })

	for _, device := range updated {
		m.persistDevice(ctx, device)
		m.publishDevice(device)
	}

	m.log.Info().
		Dur("interval", interval).
		Int("devices", len(updated)).
		Msg("Polling interval changed fleet-wide")

	return nil
}
