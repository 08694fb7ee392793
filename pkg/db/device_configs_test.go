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
	"errors"
	"testing"
	"time"

	"github.com/carverauto/hashradar/pkg/models"
)

func TestBuildDeviceConfigArgs_MarshalsSettings(t *testing.T) {
	t.Parallel()

	addedAt := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	device := &models.Device{
		ID:              "bitaxe_10_0_0_12",
		Type:            models.DeviceTypeBitaxe,
		Address:         "10.0.0.12",
		Port:            80,
		Name:            "garage",
		Status:          models.DeviceStatusOnline,
		PollingInterval: models.Duration(30 * time.Second),
		AddedAt:         addedAt,
		Settings:        map[string]interface{}{"frequency": 490},
	}

	args, err := buildDeviceConfigArgs(device)
	if err != nil {
		t.Fatalf("buildDeviceConfigArgs error: %v", err)
	}

	if len(args) != 9 {
		t.Fatalf("len(args)=%d, want 9", len(args))
	}

	if got := args[0]; got != "bitaxe_10_0_0_12" {
		t.Fatalf("device_id=%v", got)
	}

	if got := args[1]; got != "bitaxe" {
		t.Fatalf("device_type=%v, want bitaxe", got)
	}

	if got := args[6]; got != int64(30*time.Second) {
		t.Fatalf("polling_interval_ns=%v, want %d", got, int64(30*time.Second))
	}

	ts, ok := args[7].(time.Time)
	if !ok || !ts.Equal(addedAt) {
		t.Fatalf("added_at=%v, want %v", args[7], addedAt)
	}

	settings, ok := args[8].([]byte)
	if !ok || string(settings) != `{"frequency":490}` {
		t.Fatalf("settings=%s, want {\"frequency\":490}", settings)
	}
}

func TestBuildDeviceConfigArgs_NilSettings(t *testing.T) {
	t.Parallel()

	args, err := buildDeviceConfigArgs(&models.Device{
		ID:      "avalon_10_0_0_40",
		Type:    models.DeviceTypeAvalon,
		Address: "10.0.0.40",
		Port:    4028,
		AddedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("buildDeviceConfigArgs error: %v", err)
	}

	settings, ok := args[8].([]byte)
	if !ok || string(settings) != "null" {
		t.Fatalf("settings=%s, want null", settings)
	}
}

func TestBuildDeviceConfigArgs_NilDevice(t *testing.T) {
	t.Parallel()

	if _, err := buildDeviceConfigArgs(nil); !errors.Is(err, ErrDeviceNil) {
		t.Fatalf("err=%v, want ErrDeviceNil", err)
	}
}
