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

// Package core assembles the service: protocol adapters behind the shared
// session pool, the device orchestrator, network discovery, metric
// persistence, and the stream broadcaster, all exposed through the HTTP API.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/hashradar/pkg/core/api"
	"github.com/carverauto/hashradar/pkg/db"
	"github.com/carverauto/hashradar/pkg/devices"
	"github.com/carverauto/hashradar/pkg/discovery"
	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/miner"
	"github.com/carverauto/hashradar/pkg/models"
	"github.com/carverauto/hashradar/pkg/pool"
	"github.com/carverauto/hashradar/pkg/stream"
)

var (
	errNilConfig    = errors.New("config must not be nil")
	errDatabaseInit = errors.New("failed to initialize metrics store")
	errPoolInit     = errors.New("failed to initialize session pool")
)

// Server owns every long-lived subsystem and brings them up and down in
// dependency order. It implements lifecycle.Service.
type Server struct {
	config      *Config
	logger      logger.Logger
	store       db.Store
	sessions    *pool.Manager
	registry    miner.Registry
	scanner     *discovery.Scanner
	manager     *devices.Manager
	broadcaster *stream.Broadcaster

	mu        sync.Mutex
	apiServer *api.APIServer
}

// NewServer wires the subsystems together. The store is only built when a
// database section is configured; everything downstream treats a nil store
// as "no persistence".
func NewServer(ctx context.Context, cfg *Config, log logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	normalized := cfg.normalize()

	var store db.Store

	if normalized.Database != nil {
		database, err := db.New(ctx, normalized.Database, log)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errDatabaseInit, err)
		}

		store = database
	}

	sessionFactory := miner.NewHTTPSessionFactory(
		time.Duration(normalized.HTTPTimeout),
		time.Duration(normalized.DialTimeout),
	)

	sessions, err := pool.NewManager(normalized.Pool, sessionFactory, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errPoolInit, err)
	}

	minerDeps := miner.Deps{
		Pool:        sessions,
		Retry:       normalized.Retry,
		HTTPTimeout: time.Duration(normalized.HTTPTimeout),
		DialTimeout: time.Duration(normalized.DialTimeout),
		Logger:      log,
	}

	registry := miner.DefaultRegistry()
	prober := discovery.NewProber(normalized.Prober, registry, minerDeps, log)
	scanner := discovery.NewScanner(normalized.Scanner, prober, log)
	broadcaster := stream.New(normalized.Stream, log)

	// Stream scan hits to subscribers as they are found, not just in the
	// final scan report.
	scanner.OnResult = func(device models.DiscoveredDevice) {
		broadcaster.Publish(models.TopicDiscovery, device)
	}

	manager := devices.New(normalized.Devices, devices.Deps{
		Registry:  registry,
		Miner:     minerDeps,
		Store:     store,
		Publisher: broadcaster,
		Scanner:   scanner,
		Logger:    log,
	})

	server := &Server{
		config:      normalized,
		logger:      log,
		store:       store,
		sessions:    sessions,
		registry:    registry,
		scanner:     scanner,
		manager:     manager,
		broadcaster: broadcaster,
	}

	server.registerProviders()

	return server, nil
}

// registerProviders attaches the periodic stream topics. Both run only
// while at least one client is subscribed.
func (s *Server) registerProviders() {
	s.broadcaster.AddProvider(stream.NewFuncProvider(
		models.TopicDevices,
		time.Duration(s.config.SnapshotInterval),
		func(_ context.Context) (interface{}, error) {
			return s.manager.ListDevices(), nil
		},
	))

	s.broadcaster.AddProvider(stream.NewSystemProvider(time.Duration(s.config.SystemInterval)))
}

// DeviceManager exposes the orchestrator for the API layer.
func (s *Server) DeviceManager() *devices.Manager {
	return s.manager
}

// Store returns the metrics store, or nil when persistence is disabled.
func (s *Server) Store() db.Store {
	return s.store
}

// Broadcaster exposes the stream fan-out for the API layer.
func (s *Server) Broadcaster() *stream.Broadcaster {
	return s.broadcaster
}

// SetAPIServer hands the HTTP server to Stop so shutdown can drain it.
func (s *Server) SetAPIServer(apiServer *api.APIServer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apiServer = apiServer
}

// Start brings up the broadcaster and restores the persisted fleet.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("listen_addr", s.config.ListenAddr).Msg("Starting core service")

	if err := s.broadcaster.Start(ctx); err != nil {
		return fmt.Errorf("start broadcaster: %w", err)
	}

	return s.manager.Start(ctx)
}

// Stop tears the service down in dependency order: the HTTP listener
// first so no new work arrives, then the polling loops (which also closes
// the session pool), then the stream clients, then the store.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.mu.Lock()
	apiServer := s.apiServer
	s.mu.Unlock()

	if apiServer != nil {
		if err := apiServer.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("API server shutdown failed")
		}
	}

	if err := s.manager.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Device orchestrator stop failed")
	}

	if err := s.broadcaster.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Stream broadcaster stop failed")
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing metrics store")
		}
	}

	s.logger.Info().Msg("Core service stopped")

	return nil
}
