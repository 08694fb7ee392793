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

// Package db persists device configurations and metric history in
// PostgreSQL and answers the rollup queries behind the HTTP API.
package db

//go:generate mockgen -destination=mock_db.go -package=db github.com/carverauto/hashradar/pkg/db Store

import (
	"context"
	"time"

	"github.com/carverauto/hashradar/pkg/models"
)

// Store is the persistence surface the orchestrator depends on. A nil
// Store is valid; the orchestrator then keeps all state in memory.
type Store interface {
	// SaveDeviceConfig inserts or replaces the persisted record for a device.
	SaveDeviceConfig(ctx context.Context, device *models.Device) error

	// GetAllDeviceConfigs returns every persisted device record.
	GetAllDeviceConfigs(ctx context.Context) ([]*models.Device, error)

	// DeleteDeviceConfig removes a persisted record. Deleting an unknown
	// ID is not an error.
	DeleteDeviceConfig(ctx context.Context, deviceID string) error

	// SaveMetrics appends one row per numeric metric in the snapshot.
	// Non-numeric values are skipped.
	SaveMetrics(ctx context.Context, deviceID string, metrics models.Metrics, ts time.Time) error

	// GetLatestMetrics returns the most recent snapshot for a device, or
	// ErrNoMetrics when nothing has been recorded yet.
	GetLatestMetrics(ctx context.Context, deviceID string) (models.Metrics, time.Time, error)

	// GetAggregatedMetrics buckets one metric over the trailing window.
	GetAggregatedMetrics(ctx context.Context, deviceID, metric string, window, bucket time.Duration) ([]models.AggregatedMetric, error)

	// Close releases the underlying connection pool.
	Close() error
}
