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

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/hashradar/pkg/models"
)

// nowUTC is swapped out by tests that need deterministic timestamps.
//
//nolint:gochecknoglobals // test hook
var nowUTC = func() time.Time {
	return time.Now().UTC()
}

const (
	defaultAggregationWindow = time.Hour
	defaultAggregationBucket = time.Minute
)

const (
	insertDeviceMetricSQL = `
INSERT INTO device_metrics (device_id, metric, value, recorded_at)
VALUES ($1, $2, $3, $4)`

	selectLatestMetricsSQL = `
SELECT metric, value, recorded_at
FROM device_metrics
WHERE device_id = $1
	AND recorded_at = (
		SELECT max(recorded_at)
		FROM device_metrics
		WHERE device_id = $1
	)`

	selectAggregatedMetricsSQL = `
SELECT
	date_bin(make_interval(secs => $4), recorded_at, to_timestamp(0)) AS bucket,
	avg(value)   AS avg_value,
	min(value)   AS min_value,
	max(value)   AS max_value,
	count(*)     AS samples
FROM device_metrics
WHERE device_id = $1
	AND metric = $2
	AND recorded_at >= $3
GROUP BY bucket
ORDER BY bucket`
)

// SaveMetrics appends one row per numeric metric in the snapshot.
// Non-numeric values (pool URLs, status strings) are skipped.
func (db *DB) SaveMetrics(ctx context.Context, deviceID string, metrics models.Metrics, ts time.Time) error {
	batch, queued := buildMetricBatch(deviceID, metrics, ts)
	if queued == 0 {
		return nil
	}

	return db.send(ctx, batch, "device metrics")
}

func buildMetricBatch(deviceID string, metrics models.Metrics, ts time.Time) (*pgx.Batch, int) {
	recordedAt := sanitizeTimestamp(ts)
	batch := &pgx.Batch{}
	queued := 0

	for name := range metrics {
		value, ok := metrics.Float64(name)
		if !ok {
			continue
		}

		batch.Queue(insertDeviceMetricSQL, deviceID, name, value, recordedAt)
		queued++
	}

	return batch, queued
}

func (db *DB) send(ctx context.Context, batch *pgx.Batch, name string) (err error) {
	br := db.pool.SendBatch(ctx, batch)
	defer func() {
		if closeErr := br.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("db: %s batch close: %w", name, closeErr)
		}
	}()

	// Read a result per queued command so per-row errors surface.
	for i := 0; i < batch.Len(); i++ {
		if _, err = br.Exec(); err != nil {
			return fmt.Errorf("db: %s insert (command %d): %w", name, i, err)
		}
	}

	return nil
}

// GetLatestMetrics returns the most recent snapshot for a device.
func (db *DB) GetLatestMetrics(ctx context.Context, deviceID string) (models.Metrics, time.Time, error) {
	rows, err := db.pool.Query(ctx, selectLatestMetricsSQL, deviceID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("db: query latest metrics for %s: %w", deviceID, err)
	}
	defer rows.Close()

	metrics := make(models.Metrics)

	var recordedAt time.Time

	for rows.Next() {
		var (
			name  string
			value float64
			ts    time.Time
		)

		if err := rows.Scan(&name, &value, &ts); err != nil {
			return nil, time.Time{}, fmt.Errorf("db: scan latest metrics for %s: %w", deviceID, err)
		}

		metrics[name] = value
		recordedAt = ts
	}

	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("db: read latest metrics for %s: %w", deviceID, err)
	}

	if len(metrics) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrNoMetrics, deviceID)
	}

	return metrics, recordedAt, nil
}

// GetAggregatedMetrics buckets one metric over the trailing window.
func (db *DB) GetAggregatedMetrics(ctx context.Context, deviceID, metric string, window, bucket time.Duration) ([]models.AggregatedMetric, error) {
	window, bucket = normalizeAggregation(window, bucket)
	since := nowUTC().Add(-window)

	rows, err := db.pool.Query(ctx, selectAggregatedMetricsSQL, deviceID, metric, since, bucket.Seconds())
	if err != nil {
		return nil, fmt.Errorf("db: query aggregated %s for %s: %w", metric, deviceID, err)
	}
	defer rows.Close()

	var out []models.AggregatedMetric

	for rows.Next() {
		point := models.AggregatedMetric{DeviceID: deviceID, Metric: metric}

		if err := rows.Scan(&point.Bucket, &point.Avg, &point.Min, &point.Max, &point.Samples); err != nil {
			return nil, fmt.Errorf("db: scan aggregated %s for %s: %w", metric, deviceID, err)
		}

		out = append(out, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: read aggregated %s for %s: %w", metric, deviceID, err)
	}

	return out, nil
}

// normalizeAggregation applies defaults and keeps the bucket no wider
// than the window.
func normalizeAggregation(window, bucket time.Duration) (time.Duration, time.Duration) {
	if window <= 0 {
		window = defaultAggregationWindow
	}

	if bucket <= 0 {
		bucket = defaultAggregationBucket
	}

	if bucket > window {
		bucket = window
	}

	return window, bucket
}

func sanitizeTimestamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return nowUTC()
	}

	return ts.UTC()
}
