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
	"time"
)

// DeviceType identifies the protocol family an adapter speaks.
type DeviceType string

const (
	// DeviceTypeBitaxe is an AxeOS-style board with a REST/JSON API on HTTP.
	DeviceTypeBitaxe DeviceType = "bitaxe"
	// DeviceTypeAvalon is a cgminer-compatible unit speaking the line
	// protocol on TCP port 4028.
	DeviceTypeAvalon DeviceType = "avalon"
	// DeviceTypeNerdMiner is a hobby board that only exposes an HTML
	// status page.
	DeviceTypeNerdMiner DeviceType = "nerdminer"
)

// KnownDeviceTypes lists every registered device type.
func KnownDeviceTypes() []DeviceType {
	return []DeviceType{DeviceTypeBitaxe, DeviceTypeAvalon, DeviceTypeNerdMiner}
}

// Valid reports whether t is a registered device type.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeBitaxe, DeviceTypeAvalon, DeviceTypeNerdMiner:
		return true
	default:
		return false
	}
}

// DeviceStatus is the lifecycle state the orchestrator tracks per device.
type DeviceStatus string

const (
	DeviceStatusConnected  DeviceStatus = "connected"
	DeviceStatusOnline     DeviceStatus = "online"
	DeviceStatusOffline    DeviceStatus = "offline"
	DeviceStatusError      DeviceStatus = "error"
	DeviceStatusRestarting DeviceStatus = "restarting"
	DeviceStatusRemoved    DeviceStatus = "removed"
)

// Device is the orchestrator's record of a managed miner. Metrics and
// PoolInfo are the most recent telemetry merged in by the polling loop.
type Device struct {
	ID              string                 `json:"id"`
	Type            DeviceType             `json:"type"`
	Address         string                 `json:"address"`
	Port            int                    `json:"port"`
	Name            string                 `json:"name,omitempty"`
	Status          DeviceStatus           `json:"status"`
	PollingInterval Duration               `json:"polling_interval"`
	AddedAt         time.Time              `json:"added_at"`
	LastUpdated     time.Time              `json:"last_updated"`
	LastError       string                 `json:"last_error,omitempty"`
	Metrics         Metrics                `json:"metrics"`
	PoolInfo        []PoolInfo             `json:"pool_info"`
	Settings        map[string]interface{} `json:"settings,omitempty"`
}

// Copy returns a deep copy so callers never share the orchestrator's
// internal record.
func (d *Device) Copy() *Device {
	if d == nil {
		return nil
	}

	out := *d

	if d.Metrics != nil {
		out.Metrics = d.Metrics.Copy()
	}

	if d.PoolInfo != nil {
		out.PoolInfo = make([]PoolInfo, len(d.PoolInfo))
		copy(out.PoolInfo, d.PoolInfo)
	}

	if d.Settings != nil {
		out.Settings = make(map[string]interface{}, len(d.Settings))
		for k, v := range d.Settings {
			out.Settings[k] = v
		}
	}

	return &out
}

// DeviceInfo is the identity an adapter reports for its device.
type DeviceInfo struct {
	Type     DeviceType             `json:"type"`
	Model    string                 `json:"model,omitempty"`
	Firmware string                 `json:"firmware,omitempty"`
	MAC      string                 `json:"mac,omitempty"`
	Hostname string                 `json:"hostname,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// PoolInfo describes one upstream mining pool slot on a device.
type PoolInfo struct {
	URL      string `json:"url"`
	User     string `json:"user,omitempty"`
	Status   string `json:"status,omitempty"`
	Priority int    `json:"priority"`
	Accepted int64  `json:"accepted"`
	Rejected int64  `json:"rejected"`
}

// DiscoveredDevice is one hit from a network scan.
type DiscoveredDevice struct {
	Address     string      `json:"address"`
	Port        int         `json:"port"`
	Type        DeviceType  `json:"type"`
	Info        *DeviceInfo `json:"info,omitempty"`
	RespondedIn Duration    `json:"responded_in"`
}
