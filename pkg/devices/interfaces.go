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

//go:generate mockgen -destination=mock_devices.go -package=devices github.com/carverauto/hashradar/pkg/devices Clock,Ticker

import (
	"context"
	"time"

	"github.com/carverauto/hashradar/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Publisher receives device lifecycle and metric events for realtime
// fan-out. The stream broadcaster implements it.
type Publisher interface {
	Publish(topic string, payload interface{})
}

// Scanner runs network discovery sweeps. A positive timeout bounds each
// per-target probe; zero means the scanner's own defaults.
// *discovery.Scanner implements it.
type Scanner interface {
	Scan(ctx context.Context, cidr string, ports []int, timeout time.Duration) ([]models.DiscoveredDevice, error)
}
