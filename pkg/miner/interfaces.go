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

// Package miner implements the protocol adapters that talk to mining devices.
// Every device type hides behind the same Adapter interface; a registry maps
// type tags to constructors.
package miner

import (
	"context"
	"time"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
	"github.com/carverauto/hashradar/pkg/pool"
	"github.com/carverauto/hashradar/pkg/retry"
)

// Capability names advertised through Features.
const (
	FeatureStatus         = "status"
	FeatureMetrics        = "metrics"
	FeatureDeviceInfo     = "device_info"
	FeaturePoolInfo       = "pool_info"
	FeatureRestart        = "restart"
	FeatureUpdateSettings = "update_settings"
)

// Adapter is the single surface the orchestrator uses to talk to a device,
// regardless of protocol. Connect and DeviceInfo return errors from the typed
// taxonomy in errors.go; steady-state reads return whatever partial data the
// device offered plus an error the polling loop classifies.
type Adapter interface {
	// Connect verifies the device is reachable and primes any session state.
	Connect(ctx context.Context) error
	// Disconnect releases sessions. Safe to call without a prior Connect.
	Disconnect(ctx context.Context) error
	// DeviceInfo fetches identity details; during discovery it doubles as
	// the protocol signature check.
	DeviceInfo(ctx context.Context) (*models.DeviceInfo, error)
	// Status reports the device's own notion of its state.
	Status(ctx context.Context) (models.DeviceStatus, error)
	// Metrics returns a normalized telemetry snapshot. Fields the device
	// does not expose are omitted, never zero-filled.
	Metrics(ctx context.Context) (models.Metrics, error)
	// PoolInfo lists the device's upstream pool slots.
	PoolInfo(ctx context.Context) ([]models.PoolInfo, error)
	// Restart reboots the device.
	Restart(ctx context.Context) error
	// UpdateSettings pushes a partial settings map to the device.
	UpdateSettings(ctx context.Context, settings map[string]interface{}) error
	// Features lists the capability names this adapter supports.
	Features() []string
	// Type returns the adapter's device type tag.
	Type() models.DeviceType
}

// Deps carries the shared infrastructure adapters are built on.
type Deps struct {
	Pool        *pool.Manager
	Retry       *retry.Config
	HTTPTimeout time.Duration
	DialTimeout time.Duration
	Logger      logger.Logger
}

func (d Deps) httpTimeout() time.Duration {
	if d.HTTPTimeout > 0 {
		return d.HTTPTimeout
	}

	return defaultHTTPTimeout
}

func (d Deps) dialTimeout() time.Duration {
	if d.DialTimeout > 0 {
		return d.DialTimeout
	}

	return defaultDialTimeout
}

const (
	defaultHTTPTimeout = 10 * time.Second
	defaultDialTimeout = 5 * time.Second
)
