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

package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/carverauto/hashradar/pkg/core"
	"github.com/carverauto/hashradar/pkg/core/api"
	"github.com/carverauto/hashradar/pkg/lifecycle"
	"github.com/carverauto/hashradar/pkg/logger"
)

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// Run boots the core service using the provided options.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := core.LoadConfig(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "core-main", cfg.Logging)
	if err != nil {
		return err
	}

	if cfg.Logging != nil {
		if _, metricsErr := logger.InitializeMetrics(ctx, logger.MetricsConfig{
			ServiceName:    "hashradar-core",
			ServiceVersion: "1.0.0",
			OTel:           &cfg.Logging.OTel,
		}); metricsErr != nil && !errors.Is(metricsErr, logger.ErrOTelMetricsDisabled) {
			return metricsErr
		}
	}

	defer func() {
		shutdownErr := lifecycle.ShutdownLogger()
		if shutdownErr != nil {
			mainLogger.Error().Err(shutdownErr).Msg("Error shutting down logger")
		}
	}()

	// Create core server
	server, err := core.NewServer(ctx, &cfg, mainLogger)
	if err != nil {
		return err
	}

	allOptions := []func(server *api.APIServer){
		api.WithDeviceManager(server.DeviceManager()),
		api.WithBroadcaster(server.Broadcaster()),
		api.WithLogger(mainLogger),
	}

	if store := server.Store(); store != nil {
		allOptions = append(allOptions, api.WithStore(store))
	}

	if cfg.APIKey != "" {
		allOptions = append(allOptions, api.WithAPIKey(cfg.APIKey))
	}

	apiServer := api.NewAPIServer(cfg.CORS, allOptions...)

	server.SetAPIServer(apiServer)

	// Start HTTP API server in background
	go func() {
		mainLogger.Info().
			Str("listen_addr", cfg.ListenAddr).
			Msg("Starting HTTP API server")

		if err := apiServer.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.Error().Err(err).Msg("HTTP API server error")
		}
	}()

	// Run server with lifecycle management
	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName: "hashradar-core",
		Service:     server,
		Logger:      mainLogger,
	})
}
