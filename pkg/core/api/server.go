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

// Package api provides the HTTP control surface: device CRUD, discovery,
// metrics queries, and the websocket upgrade into the stream broadcaster.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/hashradar/pkg/db"
	"github.com/carverauto/hashradar/pkg/httpx"
	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
	"github.com/carverauto/hashradar/pkg/stream"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// APIServer exposes the orchestrator over HTTP and websocket.
type APIServer struct {
	router      *mux.Router
	corsConfig  models.CORSConfig
	apiKey      string
	manager     DeviceManager
	store       db.Store
	broadcaster *stream.Broadcaster
	logger      logger.Logger
	startedAt   time.Time

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewAPIServer creates a new API server instance with the given configuration.
func NewAPIServer(corsConfig models.CORSConfig, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		corsConfig: corsConfig,
		startedAt:  time.Now(),
	}

	for _, o := range options {
		o(s)
	}

	if s.logger == nil {
		s.logger = logger.NewTestLogger()
	}

	s.setupRoutes()

	return s
}

// WithDeviceManager wires the device orchestrator into the handlers.
func WithDeviceManager(m DeviceManager) func(*APIServer) {
	return func(server *APIServer) {
		server.manager = m
	}
}

// WithStore adds the metrics/config store used by the metrics endpoints.
func WithStore(store db.Store) func(*APIServer) {
	return func(server *APIServer) {
		server.store = store
	}
}

// WithBroadcaster wires the realtime broadcaster behind /api/ws.
func WithBroadcaster(b *stream.Broadcaster) func(*APIServer) {
	return func(server *APIServer) {
		server.broadcaster = b
	}
}

// WithLogger sets the logger for the API server.
func WithLogger(log logger.Logger) func(*APIServer) {
	return func(server *APIServer) {
		server.logger = log
	}
}

// WithAPIKey requires the key on every /api route when non-empty.
func WithAPIKey(key string) func(*APIServer) {
	return func(server *APIServer) {
		server.apiKey = key
	}
}

// setupRoutes configures the HTTP routes for the API server.
func (s *APIServer) setupRoutes() {
	s.setupMiddleware()

	protected := s.router.PathPrefix("/api").Subrouter()

	if s.apiKey != "" {
		protected.Use(httpx.APIKeyMiddlewareWithOptions(httpx.APIKeyOptions{
			APIKey:          s.apiKey,
			LogUnauthorized: true,
			Logger:          s.logger,
		}))
	}

	protected.HandleFunc("/devices", s.listDevices).Methods(http.MethodGet)
	protected.HandleFunc("/devices", s.addDevice).Methods(http.MethodPost)
	protected.HandleFunc("/devices/{id}", s.getDevice).Methods(http.MethodGet)
	protected.HandleFunc("/devices/{id}", s.updateDevice).Methods(http.MethodPut)
	protected.HandleFunc("/devices/{id}", s.removeDevice).Methods(http.MethodDelete)
	protected.HandleFunc("/devices/{id}/restart", s.restartDevice).Methods(http.MethodPost)
	protected.HandleFunc("/devices/{id}/polling", s.setPollingInterval).Methods(http.MethodPut)
	protected.HandleFunc("/devices/{id}/metrics", s.getDeviceMetrics).Methods(http.MethodGet)
	protected.HandleFunc("/devices/{id}/metrics/history", s.getDeviceMetricsHistory).Methods(http.MethodGet)
	protected.HandleFunc("/discover", s.discoverDevices).Methods(http.MethodPost)
	protected.HandleFunc("/discover/status", s.getDiscoveryStatus).Methods(http.MethodGet)
	protected.HandleFunc("/settings", s.getSettings).Methods(http.MethodGet)
	protected.HandleFunc("/settings/polling", s.setGlobalPollingInterval).Methods(http.MethodPut)
	protected.HandleFunc("/status", s.getSystemStatus).Methods(http.MethodGet)
	protected.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
}

// setupMiddleware configures CORS middleware.
func (s *APIServer) setupMiddleware() {
	s.router.Use(func(next http.Handler) http.Handler {
		return httpx.CommonMiddleware(next, s.corsConfig, s.logger)
	})
}

// Router exposes the configured mux, mainly for tests.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Start starts the API server on the specified address and blocks until
// the listener fails or Shutdown is called.
func (s *APIServer) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	return srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}

// encodeJSONResponse writes data as JSON with a 200 status.
func (s *APIServer) encodeJSONResponse(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding JSON response")
		return err
	}

	return nil
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(statusCode)

	errResponse := models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		// Fallback in case encoding fails
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
