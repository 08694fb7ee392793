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
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/hashradar/pkg/models"
)

const (
	upsertDeviceConfigSQL = `
INSERT INTO device_configs (
	device_id,
	device_type,
	address,
	port,
	name,
	status,
	polling_interval_ns,
	added_at,
	settings
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (device_id) DO UPDATE SET
	device_type         = EXCLUDED.device_type,
	address             = EXCLUDED.address,
	port                = EXCLUDED.port,
	name                = EXCLUDED.name,
	status              = EXCLUDED.status,
	polling_interval_ns = EXCLUDED.polling_interval_ns,
	added_at            = EXCLUDED.added_at,
	settings            = EXCLUDED.settings`

	selectDeviceConfigsSQL = `
SELECT device_id, device_type, address, port, name, status,
	polling_interval_ns, added_at, settings
FROM device_configs
ORDER BY added_at, device_id`

	deleteDeviceConfigSQL = `DELETE FROM device_configs WHERE device_id = $1`
)

// SaveDeviceConfig inserts or replaces the persisted record for a device.
func (db *DB) SaveDeviceConfig(ctx context.Context, device *models.Device) error {
	args, err := buildDeviceConfigArgs(device)
	if err != nil {
		return err
	}

	if _, err := db.pool.Exec(ctx, upsertDeviceConfigSQL, args...); err != nil {
		return fmt.Errorf("db: save device config %s: %w", device.ID, err)
	}

	return nil
}

func buildDeviceConfigArgs(device *models.Device) ([]interface{}, error) {
	if device == nil {
		return nil, ErrDeviceNil
	}

	settings, err := json.Marshal(device.Settings)
	if err != nil {
		return nil, fmt.Errorf("db: marshal settings for %s: %w", device.ID, err)
	}

	return []interface{}{
		device.ID,
		string(device.Type),
		device.Address,
		device.Port,
		device.Name,
		string(device.Status),
		int64(device.PollingInterval),
		sanitizeTimestamp(device.AddedAt),
		settings,
	}, nil
}

// GetAllDeviceConfigs returns every persisted device record, oldest first.
func (db *DB) GetAllDeviceConfigs(ctx context.Context) ([]*models.Device, error) {
	rows, err := db.pool.Query(ctx, selectDeviceConfigsSQL)
	if err != nil {
		return nil, fmt.Errorf("db: query device configs: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device

	for rows.Next() {
		device, err := scanDeviceConfig(rows)
		if err != nil {
			return nil, err
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: read device configs: %w", err)
	}

	return devices, nil
}

func scanDeviceConfig(row pgx.Row) (*models.Device, error) {
	var (
		device     models.Device
		deviceType string
		status     string
		intervalNS int64
		settings   []byte
	)

	if err := row.Scan(
		&device.ID,
		&deviceType,
		&device.Address,
		&device.Port,
		&device.Name,
		&status,
		&intervalNS,
		&device.AddedAt,
		&settings,
	); err != nil {
		return nil, fmt.Errorf("db: scan device config: %w", err)
	}

	device.Type = models.DeviceType(deviceType)
	device.Status = models.DeviceStatus(status)
	device.PollingInterval = models.Duration(intervalNS)

	if len(settings) > 0 && string(settings) != "null" {
		if err := json.Unmarshal(settings, &device.Settings); err != nil {
			return nil, fmt.Errorf("db: decode settings for %s: %w", device.ID, err)
		}
	}

	return &device, nil
}

// DeleteDeviceConfig removes a persisted record. Deleting an unknown ID
// is not an error.
func (db *DB) DeleteDeviceConfig(ctx context.Context, deviceID string) error {
	if _, err := db.pool.Exec(ctx, deleteDeviceConfigSQL, deviceID); err != nil {
		return fmt.Errorf("db: delete device config %s: %w", deviceID, err)
	}

	return nil
}
