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
)

const (
	createDeviceConfigsSQL = `
CREATE TABLE IF NOT EXISTS device_configs (
	device_id           TEXT PRIMARY KEY,
	device_type         TEXT NOT NULL,
	address             TEXT NOT NULL,
	port                INTEGER NOT NULL,
	name                TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT '',
	polling_interval_ns BIGINT NOT NULL,
	added_at            TIMESTAMPTZ NOT NULL,
	settings            JSONB
)`

	createDeviceMetricsSQL = `
CREATE TABLE IF NOT EXISTS device_metrics (
	device_id   TEXT NOT NULL,
	metric      TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`

	createDeviceMetricsIndexSQL = `
CREATE INDEX IF NOT EXISTS device_metrics_device_recorded_idx
ON device_metrics (device_id, recorded_at DESC)`
)

// ensureSchema creates the tables the store writes if they do not exist.
func (db *DB) ensureSchema(ctx context.Context) error {
	statements := []string{
		createDeviceConfigsSQL,
		createDeviceMetricsSQL,
		createDeviceMetricsIndexSQL,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("db: schema init: %w", err)
		}
	}

	return nil
}
