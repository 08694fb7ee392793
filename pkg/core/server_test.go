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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hashradar/pkg/core/api"
	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
	"github.com/carverauto/hashradar/pkg/retry"
	"github.com/carverauto/hashradar/pkg/stream"
	"github.com/carverauto/hashradar/pkg/version"
)

func TestConfigValidate(t *testing.T) {
	cfg := &Config{ListenAddr: ":8090"}
	require.NoError(t, cfg.Validate())

	cfg = &Config{}
	require.ErrorIs(t, cfg.Validate(), errListenAddrRequired)
}

func TestConfigValidateRejectsBadRetrySection(t *testing.T) {
	cfg := &Config{
		ListenAddr: ":8090",
		Retry:      &retry.Config{MaxAttempts: 0},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry config")
}

func TestConfigNormalizeDefaults(t *testing.T) {
	cfg := &Config{ListenAddr: ":8090"}

	normalized := cfg.normalize()
	assert.Equal(t, models.Duration(defaultHTTPTimeout), normalized.HTTPTimeout)
	assert.Equal(t, models.Duration(defaultDialTimeout), normalized.DialTimeout)
	assert.Equal(t, models.Duration(defaultSnapshotInterval), normalized.SnapshotInterval)
	assert.Equal(t, models.Duration(defaultSystemInterval), normalized.SystemInterval)

	require.NotNil(t, normalized.Stream)
	assert.Equal(t, version.GetVersion(), normalized.Stream.ServerVersion)

	// The caller's struct stays untouched.
	assert.Zero(t, cfg.HTTPTimeout)
	assert.Nil(t, cfg.Stream)
}

func TestConfigNormalizeKeepsPinnedServerVersion(t *testing.T) {
	cfg := &Config{
		ListenAddr: ":8090",
		Stream:     &stream.Config{ServerVersion: "2.1.0"},
	}

	normalized := cfg.normalize()
	assert.Equal(t, "2.1.0", normalized.Stream.ServerVersion)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.json")

	data := `{
		"listen_addr": ":8090",
		"api_key": "sekrit",
		"cors": {"allowed_origins": ["*"]},
		"devices": {"default_polling_interval": "30s"},
		"http_timeout": "2s"
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, "sekrit", cfg.APIKey)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	require.NotNil(t, cfg.Devices)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Devices.DefaultPollingInterval))
	assert.Equal(t, 2*time.Second, time.Duration(cfg.HTTPTimeout))
}

func TestLoadConfigRejectsMissingListenAddr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := LoadConfig(context.Background(), path)
	require.ErrorIs(t, err, errListenAddrRequired)
	require.ErrorIs(t, err, errFailedToLoadConfig)
}

func TestNewServerRequiresConfig(t *testing.T) {
	_, err := NewServer(context.Background(), nil, logger.NewTestLogger())
	require.ErrorIs(t, err, errNilConfig)
}

func TestNewServerWiring(t *testing.T) {
	cfg := &Config{ListenAddr: ":8090"}

	server, err := NewServer(context.Background(), cfg, logger.NewTestLogger())
	require.NoError(t, err)

	assert.NotNil(t, server.DeviceManager())
	assert.NotNil(t, server.Broadcaster())
	assert.Nil(t, server.Store(), "no database section means no store")

	require.NoError(t, server.Start(context.Background()))
	require.NoError(t, server.Stop(context.Background()))
}

func TestStopDrainsAPIServer(t *testing.T) {
	server, err := NewServer(context.Background(), &Config{ListenAddr: ":8090"}, logger.NewTestLogger())
	require.NoError(t, err)

	apiServer := api.NewAPIServer(models.CORSConfig{}, api.WithLogger(logger.NewTestLogger()))
	server.SetAPIServer(apiServer)

	require.NoError(t, server.Start(context.Background()))
	require.NoError(t, server.Stop(context.Background()))
}

func TestStopWithoutStart(t *testing.T) {
	server, err := NewServer(context.Background(), &Config{ListenAddr: ":8090"}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errFailedToLoadConfig))
}
