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

package miner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
	"github.com/carverauto/hashradar/pkg/pool"
	"github.com/carverauto/hashradar/pkg/retry"
)

const (
	systemInfoPath    = "/api/system/info"
	systemRestartPath = "/api/system/restart"
	systemPatchPath   = "/api/system"

	maxRESTBodyBytes = 1 << 20 // 1 MiB

	gigahash = 1e9
)

// httpStatusError carries a non-2xx response through the retry classifier.
type httpStatusError struct {
	Code   int
	Status string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %s", e.Status)
}

// restClassifier drives retry decisions for REST calls: server errors,
// timeouts and transport failures are worth repeating; client errors and
// malformed payloads are not.
func restClassifier(err error) retry.Classification {
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		if httpErr.Code >= http.StatusInternalServerError {
			return retry.Retryable
		}

		return retry.Fatal
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return retry.Fatal
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return retry.Fatal
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, pool.ErrPoolClosed) {
		return retry.Fatal
	}

	return retry.Retryable
}

// axeSystemInfo mirrors the system info document AxeOS-style firmware serves.
// Pointer fields distinguish absent values so the metrics map only carries
// what the device actually reported.
type axeSystemInfo struct {
	Power          *float64 `json:"power"`
	Voltage        *float64 `json:"voltage"` // millivolts
	Temp           *float64 `json:"temp"`
	HashRate       *float64 `json:"hashRate"` // GH/s
	Frequency      *float64 `json:"frequency"`
	FanSpeed       *float64 `json:"fanspeed"` // percent
	FanRPM         *float64 `json:"fanrpm"`
	SharesAccepted *int64   `json:"sharesAccepted"`
	SharesRejected *int64   `json:"sharesRejected"`
	UptimeSeconds  *int64   `json:"uptimeSeconds"`
	BestDiff       string   `json:"bestDiff"`

	Hostname     string `json:"hostname"`
	MACAddr      string `json:"macAddr"`
	ASICModel    string `json:"ASICModel"`
	BoardVersion string `json:"boardVersion"`
	Version      string `json:"version"`
	WifiStatus   string `json:"wifiStatus"`
	OverheatMode int    `json:"overheat_mode"`
	AsicCount    int    `json:"asicCount"`

	StratumURL          string `json:"stratumURL"`
	StratumPort         int    `json:"stratumPort"`
	StratumUser         string `json:"stratumUser"`
	FallbackStratumURL  string `json:"fallbackStratumURL"`
	FallbackStratumPort int    `json:"fallbackStratumPort"`
	FallbackStratumUser string `json:"fallbackStratumUser"`
	UsingFallback       bool   `json:"isUsingFallbackStratum"`
}

// restAdapter speaks the AxeOS-style REST/JSON API. Every call runs under the
// retry policy with restClassifier deciding what is worth repeating.
type restAdapter struct {
	host    string
	port    int
	pool    *pool.Manager
	retry   *retry.Config
	timeout time.Duration
	log     logger.Logger

	mu   sync.Mutex
	info *models.DeviceInfo
}

var _ Adapter = (*restAdapter)(nil)

func newRESTAdapter(address string, port int, deps Deps) *restAdapter {
	return &restAdapter{
		host:    address,
		port:    port,
		pool:    deps.Pool,
		retry:   deps.Retry,
		timeout: deps.httpTimeout(),
		log:     deps.Logger,
	}
}

func (a *restAdapter) Type() models.DeviceType { return models.DeviceTypeBitaxe }

func (a *restAdapter) Features() []string {
	return []string{
		FeatureStatus,
		FeatureMetrics,
		FeatureDeviceInfo,
		FeaturePoolInfo,
		FeatureRestart,
		FeatureUpdateSettings,
	}
}

func (a *restAdapter) addr() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}

func (a *restAdapter) Connect(ctx context.Context) error {
	if _, err := a.fetchSystemInfo(ctx); err != nil {
		// A failed connect must not leave a session behind.
		a.pool.CloseAddress(a.addr())
		return err
	}

	return nil
}

func (a *restAdapter) Disconnect(_ context.Context) error {
	a.pool.CloseAddress(a.addr())
	return nil
}

func (a *restAdapter) DeviceInfo(ctx context.Context) (*models.DeviceInfo, error) {
	sys, err := a.fetchSystemInfo(ctx)
	if err != nil {
		return nil, err
	}

	if sys.ASICModel == "" && sys.Version == "" {
		// Something answered on the API path, but not AxeOS.
		return nil, &ProtocolError{
			Host:   a.host,
			Port:   a.port,
			Detail: "system info missing firmware signature",
		}
	}

	info := &models.DeviceInfo{
		Type:     models.DeviceTypeBitaxe,
		Model:    sys.ASICModel,
		Firmware: sys.Version,
		MAC:      sys.MACAddr,
		Hostname: sys.Hostname,
	}

	if sys.BoardVersion != "" || sys.AsicCount > 0 {
		info.Extra = map[string]interface{}{}
		if sys.BoardVersion != "" {
			info.Extra["board_version"] = sys.BoardVersion
		}

		if sys.AsicCount > 0 {
			info.Extra["asic_count"] = sys.AsicCount
		}
	}

	a.mu.Lock()
	a.info = info
	a.mu.Unlock()

	return info, nil
}

func (a *restAdapter) Status(ctx context.Context) (models.DeviceStatus, error) {
	sys, err := a.fetchSystemInfo(ctx)
	if err != nil {
		return models.DeviceStatusOffline, err
	}

	if sys.OverheatMode != 0 {
		return models.DeviceStatusError, nil
	}

	return models.DeviceStatusOnline, nil
}

func (a *restAdapter) Metrics(ctx context.Context) (models.Metrics, error) {
	sys, err := a.fetchSystemInfo(ctx)
	if err != nil {
		return nil, err
	}

	metrics := make(models.Metrics)

	if sys.HashRate != nil {
		metrics[models.MetricHashrate] = *sys.HashRate * gigahash
	}

	if sys.Temp != nil {
		metrics[models.MetricTemperature] = *sys.Temp
	}

	if sys.Power != nil {
		metrics[models.MetricPower] = *sys.Power
	}

	if sys.Voltage != nil {
		// AxeOS reports millivolts.
		metrics[models.MetricVoltage] = *sys.Voltage / 1000
	}

	if sys.Frequency != nil {
		metrics[models.MetricFrequency] = *sys.Frequency
	}

	if sys.FanRPM != nil {
		metrics[models.MetricFanSpeed] = *sys.FanRPM
	}

	if sys.FanSpeed != nil {
		metrics[models.MetricFanPercent] = *sys.FanSpeed
	}

	if sys.UptimeSeconds != nil {
		metrics[models.MetricUptimeSeconds] = float64(*sys.UptimeSeconds)
	}

	if sys.SharesAccepted != nil {
		metrics[models.MetricSharesAccepted] = float64(*sys.SharesAccepted)
	}

	if sys.SharesRejected != nil {
		metrics[models.MetricSharesRejected] = float64(*sys.SharesRejected)
	}

	if diff, ok := parseDifficulty(sys.BestDiff); ok {
		metrics[models.MetricBestDifficulty] = diff
	}

	if sys.Power != nil && sys.HashRate != nil && *sys.HashRate > 0 {
		// J/TH: watts per terahash of sustained rate.
		metrics[models.MetricEfficiency] = *sys.Power / (*sys.HashRate / 1000)
	}

	return metrics, nil
}

func (a *restAdapter) PoolInfo(ctx context.Context) ([]models.PoolInfo, error) {
	sys, err := a.fetchSystemInfo(ctx)
	if err != nil {
		return nil, err
	}

	pools := make([]models.PoolInfo, 0, 2)

	if sys.StratumURL != "" {
		primary := models.PoolInfo{
			URL:      stratumURL(sys.StratumURL, sys.StratumPort),
			User:     sys.StratumUser,
			Priority: 0,
			Status:   "active",
		}

		if sys.UsingFallback {
			primary.Status = "standby"
		}

		attachShareCounts(&primary, sys, !sys.UsingFallback)
		pools = append(pools, primary)
	}

	if sys.FallbackStratumURL != "" {
		fallback := models.PoolInfo{
			URL:      stratumURL(sys.FallbackStratumURL, sys.FallbackStratumPort),
			User:     sys.FallbackStratumUser,
			Priority: 1,
			Status:   "standby",
		}

		if sys.UsingFallback {
			fallback.Status = "active"
		}

		attachShareCounts(&fallback, sys, sys.UsingFallback)
		pools = append(pools, fallback)
	}

	return pools, nil
}

func (a *restAdapter) Restart(ctx context.Context) error {
	return a.doJSON(ctx, http.MethodPost, systemRestartPath, nil, nil)
}

func (a *restAdapter) UpdateSettings(ctx context.Context, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return &ValidationError{Field: "settings", Detail: "no settings provided"}
	}

	payload, err := json.Marshal(settings)
	if err != nil {
		return &ValidationError{Field: "settings", Detail: "settings not serializable", Err: err}
	}

	return a.doJSON(ctx, http.MethodPatch, systemPatchPath, payload, nil)
}

func (a *restAdapter) fetchSystemInfo(ctx context.Context) (*axeSystemInfo, error) {
	var sys axeSystemInfo
	if err := a.doJSON(ctx, http.MethodGet, systemInfoPath, nil, &sys); err != nil {
		return nil, err
	}

	return &sys, nil
}

// doJSON performs one API call under the retry policy and maps the final
// error into the adapter taxonomy.
func (a *restAdapter) doJSON(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	op := func(ctx context.Context) error {
		sess, release, err := acquireSession(ctx, a.pool, a.addr())
		if err != nil {
			return err
		}
		defer release()

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}

		url := fmt.Sprintf("http://%s%s", a.addr(), path)

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return err
		}

		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := sess.Client().Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRESTBodyBytes))
			return &httpStatusError{Code: resp.StatusCode, Status: resp.Status}
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRESTBodyBytes))
			return nil
		}

		if err := json.NewDecoder(io.LimitReader(resp.Body, maxRESTBodyBytes)).Decode(out); err != nil {
			return &ProtocolError{Host: a.host, Port: a.port, Detail: "unparsable JSON response", Err: err}
		}

		return nil
	}

	err := retry.Do(ctx, a.retry, restClassifier, op)

	return a.wrapError(fmt.Sprintf("%s %s", method, path), err)
}

func (a *restAdapter) wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		return &ProtocolError{
			Host:   a.host,
			Port:   a.port,
			Detail: fmt.Sprintf("HTTP %d", httpErr.Code),
			Err:    err,
		}
	}

	return wrapDialError(a.host, a.port, op, err)
}

func stratumURL(host string, port int) string {
	if strings.Contains(host, "://") {
		if port > 0 {
			return fmt.Sprintf("%s:%d", host, port)
		}

		return host
	}

	if port > 0 {
		return fmt.Sprintf("stratum+tcp://%s:%d", host, port)
	}

	return fmt.Sprintf("stratum+tcp://%s", host)
}

// attachShareCounts puts the device-wide share counters on the pool slot that
// is currently serving work.
func attachShareCounts(p *models.PoolInfo, sys *axeSystemInfo, active bool) {
	if !active {
		return
	}

	if sys.SharesAccepted != nil {
		p.Accepted = *sys.SharesAccepted
	}

	if sys.SharesRejected != nil {
		p.Rejected = *sys.SharesRejected
	}
}
