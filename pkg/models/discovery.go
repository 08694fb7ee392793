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

import "time"

// DiscoveryStatus is the lifecycle state of a network scan.
type DiscoveryStatus string

const (
	DiscoveryStatusNotStarted DiscoveryStatus = "not_started"
	DiscoveryStatusInProgress DiscoveryStatus = "in_progress"
	DiscoveryStatusCompleted  DiscoveryStatus = "completed"
	DiscoveryStatusError      DiscoveryStatus = "error"
)

// DiscoverySession records the most recent scan: its parameters while it
// runs, and its results or failure once it finishes. Results are retained
// until the next scan replaces them.
type DiscoverySession struct {
	CIDR        string             `json:"cidr,omitempty"`
	Ports       []int              `json:"ports,omitempty"`
	Status      DiscoveryStatus    `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Error       string             `json:"error,omitempty"`
	Results     []DiscoveredDevice `json:"results"`
}

// Copy returns a deep copy so callers never share the orchestrator's
// internal session state.
func (s *DiscoverySession) Copy() *DiscoverySession {
	if s == nil {
		return nil
	}

	out := *s

	if s.Ports != nil {
		out.Ports = make([]int, len(s.Ports))
		copy(out.Ports, s.Ports)
	}

	if s.Results != nil {
		out.Results = make([]DiscoveredDevice, len(s.Results))
		copy(out.Results, s.Results)
	}

	return &out
}
