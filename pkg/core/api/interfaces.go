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

// Package api pkg/core/api/interfaces.go
package api

import (
	"context"
	"time"

	"github.com/carverauto/hashradar/pkg/devices"
	"github.com/carverauto/hashradar/pkg/models"
)

//go:generate mockgen -destination=mock_api.go -package=api github.com/carverauto/hashradar/pkg/core/api DeviceManager

// DeviceManager is the orchestrator surface the HTTP handlers drive.
// *devices.Manager implements it.
type DeviceManager interface {
	AddDevice(ctx context.Context, deviceType models.DeviceType, address string, port int, opts devices.AddOptions) (*models.Device, error)
	RemoveDevice(ctx context.Context, id string) error
	UpdateDevice(ctx context.Context, id string, updates map[string]interface{}) (*models.Device, error)
	RestartDevice(ctx context.Context, id string) error
	SetPollingInterval(ctx context.Context, id string, interval time.Duration) error
	SetGlobalPollingInterval(ctx context.Context, interval time.Duration) error
	PollingSettings() devices.PollingSettings
	Device(id string) (*models.Device, error)
	ListDevices() []*models.Device
	Discover(ctx context.Context, cidr string, ports []int, timeout time.Duration, autoAdd bool) ([]models.DiscoveredDevice, error)
	DiscoveryStatus() *models.DiscoverySession
}
