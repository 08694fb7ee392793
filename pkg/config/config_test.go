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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carverauto/hashradar/pkg/models"
)

var errListenAddrRequired = errors.New("listen_addr is required")

type serviceConfig struct {
	ListenAddr   string          `json:"listen_addr"`
	PollInterval models.Duration `json:"poll_interval"`
	Debug        bool            `json:"debug"`
}

func (c *serviceConfig) Validate() error {
	if c.ListenAddr == "" {
		return errListenAddrRequired
	}

	return nil
}

func writeJSON(t *testing.T, path string, payload interface{}) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAndValidateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.json")
	writeJSON(t, path, map[string]any{
		"listen_addr":   ":8090",
		"poll_interval": "30s",
		"debug":         true,
	})

	var cfg serviceConfig
	if err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg); err != nil {
		t.Fatalf("LoadAndValidate returned error: %v", err)
	}

	if cfg.ListenAddr != ":8090" {
		t.Fatalf("expected listen_addr :8090, got %q", cfg.ListenAddr)
	}

	if time.Duration(cfg.PollInterval) != 30*time.Second {
		t.Fatalf("expected poll_interval 30s, got %s", cfg.PollInterval)
	}

	if !cfg.Debug {
		t.Fatal("expected debug to be true")
	}
}

func TestLoadAndValidateValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.json")
	writeJSON(t, path, map[string]any{"poll_interval": "30s"})

	var cfg serviceConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	if !errors.Is(err, errListenAddrRequired) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	var cfg serviceConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "missing.json"), &cfg)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadAndValidateInvalidSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	var cfg serviceConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), "ignored.json", &cfg)
	if !errors.Is(err, errInvalidConfigSource) {
		t.Fatalf("expected invalid source error, got %v", err)
	}
}

func TestLoadAndValidateFromEnv(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("HASHRADAR_LISTEN_ADDR", ":9000")
	t.Setenv("HASHRADAR_POLL_INTERVAL", "45s")
	t.Setenv("HASHRADAR_DEBUG", "true")

	var cfg serviceConfig
	if err := NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg); err != nil {
		t.Fatalf("LoadAndValidate returned error: %v", err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Fatalf("expected listen_addr :9000, got %q", cfg.ListenAddr)
	}

	if time.Duration(cfg.PollInterval) != 45*time.Second {
		t.Fatalf("expected poll_interval 45s, got %s", cfg.PollInterval)
	}

	if !cfg.Debug {
		t.Fatal("expected debug to be true")
	}
}

func TestLoadAndValidateEnvPrefixOverride(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "HR_")
	t.Setenv("HR_LISTEN_ADDR", ":9100")

	var cfg serviceConfig
	if err := NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg); err != nil {
		t.Fatalf("LoadAndValidate returned error: %v", err)
	}

	if cfg.ListenAddr != ":9100" {
		t.Fatalf("expected listen_addr :9100, got %q", cfg.ListenAddr)
	}
}

func TestValidateConfigSkipsNonValidator(t *testing.T) {
	cfg := struct{ Name string }{Name: "anything"}

	if err := ValidateConfig(&cfg); err != nil {
		t.Fatalf("expected nil for non-validator config, got %v", err)
	}
}
