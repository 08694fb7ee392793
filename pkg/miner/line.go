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
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
)

const (
	cmdVersion = "version"
	cmdSummary = "summary"
	cmdPools   = "pools"
	cmdStats   = "stats"
	cmdRestart = "restart"

	maxLineReplyBytes = 1 << 20 // 1 MiB
)

// lineStatus is the leading STATUS element every cgminer API reply carries.
type lineStatus struct {
	Status      string `json:"STATUS"`
	Code        int    `json:"Code"`
	Msg         string `json:"Msg"`
	Description string `json:"Description"`
}

// lineAdapter speaks the cgminer TCP line protocol Avalon-class controllers
// expose on port 4028. Every call opens its own socket, writes one JSON
// command and reads the NUL-terminated reply to EOF.
type lineAdapter struct {
	host        string
	port        int
	dialTimeout time.Duration
	log         logger.Logger

	mu   sync.Mutex
	info *models.DeviceInfo
}

var _ Adapter = (*lineAdapter)(nil)

func newLineAdapter(address string, port int, deps Deps) *lineAdapter {
	return &lineAdapter{
		host:        address,
		port:        port,
		dialTimeout: deps.dialTimeout(),
		log:         deps.Logger,
	}
}

func (a *lineAdapter) Type() models.DeviceType { return models.DeviceTypeAvalon }

func (a *lineAdapter) Features() []string {
	return []string{
		FeatureStatus,
		FeatureMetrics,
		FeatureDeviceInfo,
		FeaturePoolInfo,
		FeatureRestart,
	}
}

func (a *lineAdapter) addr() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}

// Connect verifies the API answers a version command. There is no session to
// keep: the protocol is one socket per call.
func (a *lineAdapter) Connect(ctx context.Context) error {
	_, err := a.DeviceInfo(ctx)
	return err
}

func (a *lineAdapter) Disconnect(_ context.Context) error { return nil }

func (a *lineAdapter) DeviceInfo(ctx context.Context) (*models.DeviceInfo, error) {
	sections, err := a.exec(ctx, cmdVersion)
	if err != nil {
		return nil, err
	}

	row, ok := firstRow(sections, "VERSION")
	if !ok {
		// Whatever answered is not a cgminer-compatible API.
		return nil, &ProtocolError{
			Host:   a.host,
			Port:   a.port,
			Detail: "version reply missing VERSION section",
		}
	}

	info := &models.DeviceInfo{Type: models.DeviceTypeAvalon}

	if model, ok := rowString(row, "MODEL", "PROD"); ok {
		info.Model = model
	}

	if fw, ok := rowString(row, "VERSION", "CGMiner", "BMMiner", "SGMiner"); ok {
		info.Firmware = fw
	}

	if mac, ok := rowString(row, "MAC"); ok {
		info.MAC = mac
	}

	if api, ok := rowString(row, "API"); ok {
		info.Extra = map[string]interface{}{"api_version": api}
	}

	a.mu.Lock()
	a.info = info
	a.mu.Unlock()

	return info, nil
}

func (a *lineAdapter) Status(ctx context.Context) (models.DeviceStatus, error) {
	if _, err := a.exec(ctx, cmdSummary); err != nil {
		return models.DeviceStatusOffline, err
	}

	return models.DeviceStatusOnline, nil
}

func (a *lineAdapter) Metrics(ctx context.Context) (models.Metrics, error) {
	sections, err := a.exec(ctx, cmdSummary)
	if err != nil {
		return nil, err
	}

	metrics := make(models.Metrics)

	row, ok := firstRow(sections, "SUMMARY")
	if !ok {
		return metrics, nil
	}

	if ghs, ok := rowFloat(row, "GHS av"); ok {
		metrics[models.MetricHashrate] = ghs * 1e9
	} else if mhs, ok := rowFloat(row, "MHS av"); ok {
		metrics[models.MetricHashrate] = mhs * 1e6
	}

	if elapsed, ok := rowFloat(row, "Elapsed"); ok {
		metrics[models.MetricUptimeSeconds] = elapsed
	}

	if accepted, ok := rowFloat(row, "Accepted"); ok {
		metrics[models.MetricSharesAccepted] = accepted
	}

	if rejected, ok := rowFloat(row, "Rejected"); ok {
		metrics[models.MetricSharesRejected] = rejected
	}

	if best, ok := rowFloat(row, "Best Share"); ok {
		metrics[models.MetricBestDifficulty] = best
	}

	if fan, ok := rowFloat(row, "Fan Speed In", "Fan1", "Fan"); ok {
		metrics[models.MetricFanSpeed] = fan
	}

	if freq, ok := rowFloat(row, "Frequency", "frequency"); ok {
		metrics[models.MetricFrequency] = freq
	}

	if temp, ok := rowFloat(row, "Temperature", "Temp"); ok {
		metrics[models.MetricTemperature] = temp
	} else if temp, ok := a.temperatureFromStats(ctx); ok {
		metrics[models.MetricTemperature] = temp
	}

	return metrics, nil
}

// temperatureFromStats is a best-effort fallback for firmwares that only
// report temperature through the stats command. Failures just mean the field
// stays absent.
func (a *lineAdapter) temperatureFromStats(ctx context.Context) (float64, bool) {
	sections, err := a.exec(ctx, cmdStats)
	if err != nil {
		return 0, false
	}

	raw, ok := sections["STATS"]
	if !ok {
		return 0, false
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, false
	}

	for _, row := range rows {
		if temp, ok := rowFloat(row, "Temperature", "Temp", "temp1", "TAvg"); ok {
			return temp, true
		}
	}

	return 0, false
}

func (a *lineAdapter) PoolInfo(ctx context.Context) ([]models.PoolInfo, error) {
	sections, err := a.exec(ctx, cmdPools)
	if err != nil {
		return nil, err
	}

	raw, ok := sections["POOLS"]
	if !ok {
		return []models.PoolInfo{}, nil
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, &ProtocolError{Host: a.host, Port: a.port, Detail: "unparsable POOLS section", Err: err}
	}

	pools := make([]models.PoolInfo, 0, len(rows))

	for i, row := range rows {
		info := models.PoolInfo{Priority: i}

		if url, ok := rowString(row, "URL"); ok {
			info.URL = url
		}

		if user, ok := rowString(row, "User"); ok {
			info.User = user
		}

		if status, ok := rowString(row, "Status"); ok {
			info.Status = strings.ToLower(status)
		}

		if prio, ok := rowFloat(row, "Priority"); ok {
			info.Priority = int(prio)
		}

		if accepted, ok := rowFloat(row, "Accepted"); ok {
			info.Accepted = int64(accepted)
		}

		if rejected, ok := rowFloat(row, "Rejected"); ok {
			info.Rejected = int64(rejected)
		}

		pools = append(pools, info)
	}

	return pools, nil
}

// Restart asks the miner process to restart. Old cgminer builds answer with
// the bare string "RESTART" instead of JSON, so the reply is only required to
// not be an explicit error.
func (a *lineAdapter) Restart(ctx context.Context) error {
	raw, err := a.roundTrip(ctx, cmdRestart)
	if err != nil {
		return err
	}

	sections, err := parseLineReply(raw)
	if err != nil {
		if bytes.Contains(bytes.ToUpper(raw), []byte("RESTART")) {
			return nil
		}

		return &ProtocolError{Host: a.host, Port: a.port, Detail: "unparsable restart reply", Err: err}
	}

	if _, err := a.checkStatus(sections); err != nil {
		return err
	}

	return nil
}

func (a *lineAdapter) UpdateSettings(_ context.Context, _ map[string]interface{}) error {
	return fmt.Errorf("update settings: %w", ErrNotSupported)
}

// exec round-trips one command and returns the decoded reply sections after
// the STATUS check.
func (a *lineAdapter) exec(ctx context.Context, command string) (map[string]json.RawMessage, error) {
	raw, err := a.roundTrip(ctx, command)
	if err != nil {
		return nil, err
	}

	sections, err := parseLineReply(raw)
	if err != nil {
		return nil, &ProtocolError{Host: a.host, Port: a.port, Detail: "unparsable reply", Err: err}
	}

	return a.checkStatus(sections)
}

// roundTrip opens a socket, writes the JSON command and reads the reply until
// EOF. cgminer closes the connection after answering.
func (a *lineAdapter) roundTrip(ctx context.Context, command string) ([]byte, error) {
	dialer := &net.Dialer{Timeout: a.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", a.addr())
	if err != nil {
		return nil, wrapDialError(a.host, a.port, "dial", err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(a.dialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = conn.SetDeadline(deadline)

	payload, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return nil, err
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, wrapDialError(a.host, a.port, command, err)
	}

	raw, err := io.ReadAll(io.LimitReader(conn, maxLineReplyBytes))
	if err != nil && len(raw) == 0 {
		return nil, wrapDialError(a.host, a.port, command, err)
	}

	if len(bytes.Trim(raw, "\x00")) == 0 {
		return nil, &ProtocolError{Host: a.host, Port: a.port, Detail: "empty reply"}
	}

	return raw, nil
}

// parseLineReply strips NUL terminators and anything a buggy firmware appends
// after the closing brace, then decodes the named sections.
func parseLineReply(raw []byte) (map[string]json.RawMessage, error) {
	cleaned := bytes.ReplaceAll(raw, []byte{0}, nil)

	if idx := bytes.LastIndexByte(cleaned, '}'); idx >= 0 {
		cleaned = cleaned[:idx+1]
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(cleaned, &sections); err != nil {
		return nil, err
	}

	return sections, nil
}

func (a *lineAdapter) checkStatus(sections map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	raw, ok := sections["STATUS"]
	if !ok {
		return nil, &ProtocolError{Host: a.host, Port: a.port, Detail: "reply missing STATUS section"}
	}

	var statuses []lineStatus
	if err := json.Unmarshal(raw, &statuses); err != nil || len(statuses) == 0 {
		return nil, &ProtocolError{Host: a.host, Port: a.port, Detail: "unparsable STATUS section", Err: err}
	}

	if statuses[0].Status == "E" {
		return nil, &ProtocolError{
			Host:   a.host,
			Port:   a.port,
			Detail: fmt.Sprintf("device reported error: %s", statuses[0].Msg),
		}
	}

	return sections, nil
}

// firstRow returns the first element of a named reply section.
func firstRow(sections map[string]json.RawMessage, name string) (map[string]interface{}, bool) {
	raw, ok := sections[name]
	if !ok {
		return nil, false
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		return nil, false
	}

	return rows[0], true
}

// rowFloat fetches the first present key as a number, tolerating firmwares
// that quote numeric fields.
func rowFloat(row map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := row[key]
		if !ok {
			continue
		}

		switch n := v.(type) {
		case float64:
			return n, true
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return parsed, true
			}
		case json.Number:
			if parsed, err := n.Float64(); err == nil {
				return parsed, true
			}
		}
	}

	return 0, false
}

func rowString(row map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := row[key].(string); ok && v != "" {
			return v, true
		}
	}

	return "", false
}
