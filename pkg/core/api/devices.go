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

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/hashradar/pkg/db"
	"github.com/carverauto/hashradar/pkg/devices"
	"github.com/carverauto/hashradar/pkg/miner"
	"github.com/carverauto/hashradar/pkg/models"
)

const (
	defaultHistoryMetric = "hashrate"
	defaultHistoryWindow = 24 * time.Hour
	defaultHistoryBucket = 15 * time.Minute
)

var errInvalidDuration = errors.New("invalid duration parameter")

// listDevices returns every managed device.
func (s *APIServer) listDevices(w http.ResponseWriter, _ *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	if err := s.encodeJSONResponse(w, s.manager.ListDevices()); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// addDevice registers a device and starts polling it. The device must be
// reachable: a failed connect returns 502 and leaves nothing behind.
func (s *APIServer) addDevice(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Type == "" || req.Address == "" {
		writeError(w, "type and address are required", http.StatusBadRequest)
		return
	}

	device, err := s.manager.AddDevice(r.Context(), req.Type, req.Address, req.Port, devices.AddOptions{
		Name:            req.Name,
		PollingInterval: req.PollingInterval,
		Settings:        req.Settings,
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("type", string(req.Type)).
			Str("address", req.Address).
			Msg("Add device failed")
		s.writeDeviceError(w, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(device); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding add device response")
	}
}

// getDevice returns one device by ID.
func (s *APIServer) getDevice(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	device, err := s.manager.Device(mux.Vars(r)["id"])
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}

	if err := s.encodeJSONResponse(w, device); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// updateDevice applies a partial update. Protected identity fields are
// dropped by the manager, not rejected here.
func (s *APIServer) updateDevice(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	device, err := s.manager.UpdateDevice(r.Context(), mux.Vars(r)["id"], updates)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}

	if err := s.encodeJSONResponse(w, device); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// removeDevice stops polling and forgets the device.
func (s *APIServer) removeDevice(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	if err := s.manager.RemoveDevice(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeDeviceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// restartDevice queues a restart and returns immediately.
func (s *APIServer) restartDevice(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]

	if err := s.manager.RestartDevice(r.Context(), id); err != nil {
		s.writeDeviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	if err := json.NewEncoder(w).Encode(map[string]string{"device_id": id, "status": "restarting"}); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding restart response")
	}
}

// setPollingInterval changes a device's polling cadence in place.
func (s *APIServer) setPollingInterval(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	var req pollingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]

	if err := s.manager.SetPollingInterval(r.Context(), id, time.Duration(req.Interval)); err != nil {
		s.writeDeviceError(w, err)
		return
	}

	device, err := s.manager.Device(id)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}

	if err := s.encodeJSONResponse(w, device); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// getDeviceMetrics returns the most recent stored snapshot for a device.
func (s *APIServer) getDeviceMetrics(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	if s.store == nil {
		writeError(w, "Metrics store not configured", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]

	if _, err := s.manager.Device(id); err != nil {
		s.writeDeviceError(w, err)
		return
	}

	metrics, ts, err := s.store.GetLatestMetrics(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNoMetrics) {
			writeError(w, "No metrics recorded for device", http.StatusNotFound)
			return
		}

		s.logger.Error().Err(err).Str("device_id", id).Msg("Failed to fetch latest metrics")
		writeError(w, "Failed to fetch metrics", http.StatusInternalServerError)

		return
	}

	if err := s.encodeJSONResponse(w, metricsResponse{DeviceID: id, Metrics: metrics, Timestamp: ts}); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// getDeviceMetricsHistory returns a bucketed series for one metric.
// Query parameters: metric (default hashrate), window, bucket (durations).
func (s *APIServer) getDeviceMetricsHistory(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	if s.store == nil {
		writeError(w, "Metrics store not configured", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]

	if _, err := s.manager.Device(id); err != nil {
		s.writeDeviceError(w, err)
		return
	}

	query := r.URL.Query()

	metric := query.Get("metric")
	if metric == "" {
		metric = defaultHistoryMetric
	}

	window, err := parseDurationParam(query.Get("window"), defaultHistoryWindow)
	if err != nil {
		writeError(w, "Invalid window duration", http.StatusBadRequest)
		return
	}

	bucket, err := parseDurationParam(query.Get("bucket"), defaultHistoryBucket)
	if err != nil {
		writeError(w, "Invalid bucket duration", http.StatusBadRequest)
		return
	}

	points, err := s.store.GetAggregatedMetrics(r.Context(), id, metric, window, bucket)
	if err != nil {
		s.logger.Error().Err(err).Str("device_id", id).Str("metric", metric).Msg("Failed to fetch metric history")
		writeError(w, "Failed to fetch metric history", http.StatusInternalServerError)

		return
	}

	resp := historyResponse{
		DeviceID: id,
		Metric:   metric,
		Window:   window.String(),
		Bucket:   bucket.String(),
		Points:   points,
	}

	if err := s.encodeJSONResponse(w, resp); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// discoverDevices runs a network scan, optionally auto-adding what it finds.
func (s *APIServer) discoverDevices(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.CIDR == "" {
		writeError(w, "cidr is required", http.StatusBadRequest)
		return
	}

	found, err := s.manager.Discover(r.Context(), req.CIDR, req.Ports, time.Duration(req.Timeout), req.AutoAdd)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}

	if err := s.encodeJSONResponse(w, discoverResponse{Devices: found, Count: len(found)}); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// getDiscoveryStatus reports the current or most recent scan session.
func (s *APIServer) getDiscoveryStatus(w http.ResponseWriter, _ *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	if err := s.encodeJSONResponse(w, s.manager.DiscoveryStatus()); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// getSettings returns the effective polling configuration.
func (s *APIServer) getSettings(w http.ResponseWriter, _ *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	if err := s.encodeJSONResponse(w, s.manager.PollingSettings()); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// setGlobalPollingInterval changes the poll cadence for the whole fleet
// and for devices added later.
func (s *APIServer) setGlobalPollingInterval(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, "Device manager not configured", http.StatusServiceUnavailable)
		return
	}

	var req pollingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.manager.SetGlobalPollingInterval(r.Context(), time.Duration(req.Interval)); err != nil {
		s.writeDeviceError(w, err)
		return
	}

	if err := s.encodeJSONResponse(w, s.manager.PollingSettings()); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// getSystemStatus reports device and subscriber counts.
func (s *APIServer) getSystemStatus(w http.ResponseWriter, _ *http.Request) {
	status := SystemStatus{
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Timestamp:     time.Now().UTC(),
	}

	if s.manager != nil {
		list := s.manager.ListDevices()
		status.DeviceCount = len(list)

		for _, d := range list {
			if d.Status == models.DeviceStatusOnline {
				status.OnlineDevices++
			}
		}
	}

	if s.broadcaster != nil {
		status.Subscribers = s.broadcaster.ClientCount()
	}

	if err := s.encodeJSONResponse(w, status); err != nil {
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeDeviceError maps orchestrator errors onto HTTP status codes.
func (s *APIServer) writeDeviceError(w http.ResponseWriter, err error) {
	var validationErr *miner.ValidationError

	switch {
	case errors.Is(err, devices.ErrDeviceNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, devices.ErrDeviceExists):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, devices.ErrInvalidInterval),
		errors.Is(err, devices.ErrInvalidUpdate),
		errors.Is(err, miner.ErrUnknownDeviceType),
		errors.Is(err, miner.ErrNotSupported),
		errors.As(err, &validationErr):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, devices.ErrDiscoveryInProgress):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, devices.ErrDiscoveryUnavailable):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case miner.IsConnectionError(err):
		writeError(w, err.Error(), http.StatusBadGateway)
	default:
		s.logger.Error().Err(err).Msg("Unhandled device operation error")
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func parseDurationParam(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errInvalidDuration
	}

	return d, nil
}
