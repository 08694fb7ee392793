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

import "errors"

var (
	// ErrNoMetrics is returned by GetLatestMetrics when a device has no
	// recorded snapshots.
	ErrNoMetrics = errors.New("no metrics recorded for device")

	// ErrDeviceNil is returned when a nil device record is passed to
	// SaveDeviceConfig.
	ErrDeviceNil = errors.New("device record is nil")

	// ErrMissingHost and ErrMissingDatabase reject incomplete connection
	// configs before a dial is attempted.
	ErrMissingHost     = errors.New("database host is required")
	ErrMissingDatabase = errors.New("database name is required")
)
