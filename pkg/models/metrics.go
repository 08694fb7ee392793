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
	"encoding/json"
	"time"
)

// Normalized metric keys shared by every adapter. Producers omit keys they
// cannot source; consumers must tolerate missing keys.
const (
	MetricHashrate       = "hashrate"        // H/s
	MetricTemperature    = "temperature"     // degrees Celsius
	MetricPower          = "power"           // watts
	MetricVoltage        = "voltage"         // volts
	MetricFrequency      = "frequency"       // MHz
	MetricFanSpeed       = "fan_speed"       // rpm
	MetricFanPercent     = "fan_percent"     // 0-100
	MetricUptimeSeconds  = "uptime_seconds"  // seconds
	MetricSharesAccepted = "shares_accepted" // count
	MetricSharesRejected = "shares_rejected" // count
	MetricBestDifficulty = "best_difficulty" // share difficulty
	MetricEfficiency     = "efficiency"      // J/TH
)

// Metrics is a normalized telemetry snapshot keyed by the Metric* constants.
type Metrics map[string]interface{}

// Float64 reads a metric as float64, tolerating the numeric types JSON
// decoding and adapters produce.
func (m Metrics) Float64(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

// Copy returns a shallow copy of the snapshot.
func (m Metrics) Copy() Metrics {
	if m == nil {
		return nil
	}

	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// MetricsSnapshot pairs a metrics map with the device and time it was read.
// PoolInfo is only set on rounds that refreshed the upstream pool slots.
type MetricsSnapshot struct {
	DeviceID  string     `json:"device_id"`
	Metrics   Metrics    `json:"metrics"`
	PoolInfo  []PoolInfo `json:"pool_info,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// AggregatedMetric is one time bucket of a rollup query.
type AggregatedMetric struct {
	DeviceID string    `json:"device_id"`
	Metric   string    `json:"metric"`
	Bucket   time.Time `json:"bucket"`
	Avg      float64   `json:"avg"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Samples  int64     `json:"samples"`
}
