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

package api

import (
	"time"

	"github.com/carverauto/hashradar/pkg/models"
)

// addDeviceRequest is the POST /api/devices payload.
type addDeviceRequest struct {
	Type            models.DeviceType      `json:"type"`
	Address         string                 `json:"address"`
	Port            int                    `json:"port"`
	Name            string                 `json:"name,omitempty"`
	PollingInterval models.Duration        `json:"polling_interval,omitempty"`
	Settings        map[string]interface{} `json:"settings,omitempty"`
}

// pollingRequest is the PUT /api/devices/{id}/polling payload.
type pollingRequest struct {
	Interval models.Duration `json:"interval"`
}

// discoverRequest is the POST /api/discover payload. Ports defaults to the
// scanner's configured priority list when empty; Timeout bounds each
// per-target probe and defaults to the prober's own timings when zero.
type discoverRequest struct {
	CIDR    string          `json:"cidr"`
	Ports   []int           `json:"ports,omitempty"`
	Timeout models.Duration `json:"timeout,omitempty"`
	AutoAdd bool            `json:"auto_add,omitempty"`
}

// discoverResponse wraps a completed scan.
type discoverResponse struct {
	Devices []models.DiscoveredDevice `json:"devices"`
	Count   int                       `json:"count"`
}

// SystemStatus summarizes the running service for GET /api/status.
type SystemStatus struct {
	DeviceCount   int       `json:"device_count"`
	OnlineDevices int       `json:"online_devices"`
	Subscribers   int       `json:"subscribers"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// metricsResponse is the latest snapshot for one device.
type metricsResponse struct {
	DeviceID  string         `json:"device_id"`
	Metrics   models.Metrics `json:"metrics"`
	Timestamp time.Time      `json:"timestamp"`
}

// historyResponse is a bucketed series for one metric of one device.
type historyResponse struct {
	DeviceID string                    `json:"device_id"`
	Metric   string                    `json:"metric"`
	Window   string                    `json:"window"`
	Bucket   string                    `json:"bucket"`
	Points   []models.AggregatedMetric `json:"points"`
}
