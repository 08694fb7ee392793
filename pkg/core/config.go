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

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/hashradar/pkg/config"
	"github.com/carverauto/hashradar/pkg/db"
	"github.com/carverauto/hashradar/pkg/devices"
	"github.com/carverauto/hashradar/pkg/discovery"
	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
	"github.com/carverauto/hashradar/pkg/pool"
	"github.com/carverauto/hashradar/pkg/retry"
	"github.com/carverauto/hashradar/pkg/stream"
	"github.com/carverauto/hashradar/pkg/version"
)

const (
	defaultHTTPTimeout      = 10 * time.Second
	defaultDialTimeout      = 5 * time.Second
	defaultSnapshotInterval = 5 * time.Second
	defaultSystemInterval   = 10 * time.Second
	shutdownTimeout         = 10 * time.Second
)

var (
	errListenAddrRequired = errors.New("listen_addr is required")
	errFailedToLoadConfig = errors.New("failed to load config")
)

// Config is the core service configuration. Every subsystem section is
// optional; a missing section runs with that package's defaults, and a
// missing database section disables persistence entirely.
type Config struct {
	ListenAddr string            `json:"listen_addr"`
	APIKey     string            `json:"api_key,omitempty"`
	CORS       models.CORSConfig `json:"cors,omitempty"`

	Database *db.Config    `json:"database,omitempty"`
	Pool     *pool.Config  `json:"pool,omitempty"`
	Retry    *retry.Config `json:"retry,omitempty"`

	Prober  *discovery.ProberConfig  `json:"prober,omitempty"`
	Scanner *discovery.ScannerConfig `json:"scanner,omitempty"`

	Devices *devices.Config `json:"devices,omitempty"`
	Stream  *stream.Config  `json:"stream,omitempty"`

	// HTTPTimeout and DialTimeout bound adapter requests and socket dials.
	HTTPTimeout models.Duration `json:"http_timeout,omitempty"`
	DialTimeout models.Duration `json:"dial_timeout,omitempty"`

	// SnapshotInterval is the cadence of the periodic device-table frame
	// on the devices topic; SystemInterval the same for host telemetry.
	SnapshotInterval models.Duration `json:"snapshot_interval,omitempty"`
	SystemInterval   models.Duration `json:"system_interval,omitempty"`

	Logging *logger.Config `json:"logging,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errListenAddrRequired
	}

	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return fmt.Errorf("retry config: %w", err)
		}
	}

	if c.Pool != nil {
		if err := c.Pool.Validate(); err != nil {
			return fmt.Errorf("pool config: %w", err)
		}
	}

	return nil
}

func (c *Config) normalize() *Config {
	normalized := *c

	if normalized.HTTPTimeout <= 0 {
		normalized.HTTPTimeout = models.Duration(defaultHTTPTimeout)
	}

	if normalized.DialTimeout <= 0 {
		normalized.DialTimeout = models.Duration(defaultDialTimeout)
	}

	if normalized.SnapshotInterval <= 0 {
		normalized.SnapshotInterval = models.Duration(defaultSnapshotInterval)
	}

	if normalized.SystemInterval <= 0 {
		normalized.SystemInterval = models.Duration(defaultSystemInterval)
	}

	// The welcome frame advertises the build version unless the operator
	// pinned one in the stream section.
	if normalized.Stream == nil {
		normalized.Stream = &stream.Config{ServerVersion: version.GetVersion()}
	} else if normalized.Stream.ServerVersion == "" {
		streamCfg := *normalized.Stream
		streamCfg.ServerVersion = version.GetVersion()
		normalized.Stream = &streamCfg
	}

	return &normalized
}

// LoadConfig reads and validates the core configuration from path.
func LoadConfig(ctx context.Context, path string) (Config, error) {
	cfgLoader := config.NewConfig(nil)

	var cfg Config

	if err := cfgLoader.LoadAndValidate(ctx, path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	return cfg, nil
}
