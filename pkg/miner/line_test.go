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
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
)

// fakeCGMiner accepts one command per connection and answers from a canned
// reply table, mimicking the close-after-reply behavior of the real API.
type fakeCGMiner struct {
	ln      net.Listener
	replies map[string][]byte

	mu       sync.Mutex
	commands []string
}

func startFakeCGMiner(t *testing.T, replies map[string][]byte) *fakeCGMiner {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeCGMiner{ln: ln, replies: replies}

	go f.serve()

	t.Cleanup(func() { _ = ln.Close() })

	return f
}

func (f *fakeCGMiner) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}

		go f.handle(conn)
	}
}

func (f *fakeCGMiner) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	buf := make([]byte, 4096)

	n, err := conn.Read(buf)
	if err != nil {
		return
	}

	var cmd struct {
		Command string `json:"command"`
	}

	if err := json.Unmarshal(bytes.Trim(buf[:n], "\x00"), &cmd); err != nil {
		return
	}

	f.mu.Lock()
	f.commands = append(f.commands, cmd.Command)
	f.mu.Unlock()

	if reply, ok := f.replies[cmd.Command]; ok {
		_, _ = conn.Write(reply)
	}
}

func (f *fakeCGMiner) seenCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.commands...)
}

func (f *fakeCGMiner) hostPort(t *testing.T) (string, int) {
	t.Helper()

	addr, ok := f.ln.Addr().(*net.TCPAddr)
	require.True(t, ok)

	return "127.0.0.1", addr.Port
}

func newTestLineAdapter(t *testing.T, f *fakeCGMiner) *lineAdapter {
	t.Helper()

	host, port := f.hostPort(t)

	return newLineAdapter(host, port, Deps{
		DialTimeout: time.Second,
		Logger:      logger.NewTestLogger(),
	})
}

var (
	versionReply = []byte(`{"STATUS":[{"STATUS":"S","Msg":"CGMiner versions","Description":"cgminer 4.11.1"}],` +
		`"VERSION":[{"CGMiner":"4.11.1","API":"3.7","PROD":"AvalonMiner 1246","MODEL":"1246",` +
		`"VERSION":"21042001_3f286b9","MAC":"b4a2eb31e19c"}],"id":1}` + "\x00")

	// Trailing NUL plus junk some firmwares append after the closing brace.
	summaryReply = []byte(`{"STATUS":[{"STATUS":"S","Msg":"Summary"}],` +
		`"SUMMARY":[{"Elapsed":93784,"GHS av":90.19,"Accepted":1234,"Rejected":5,` +
		`"Best Share":123456789,"Temperature":75.5,"Fan Speed In":4560}],"id":1}` + "\x00\x00junk")

	poolsReply = []byte(`{"STATUS":[{"STATUS":"S","Msg":"3 Pool(s)"}],` +
		`"POOLS":[{"POOL":0,"URL":"stratum+tcp://btc.example.com:3333","Status":"Alive","Priority":0,` +
		`"User":"worker1","Accepted":1200,"Rejected":4},` +
		`{"POOL":1,"URL":"stratum+tcp://backup.example.com:3333","Status":"Dead","Priority":1,` +
		`"User":"worker1","Accepted":34,"Rejected":1}],"id":1}` + "\x00")
)

func TestLineDeviceInfo(t *testing.T) {
	f := startFakeCGMiner(t, map[string][]byte{cmdVersion: versionReply})
	adapter := newTestLineAdapter(t, f)

	info, err := adapter.DeviceInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.DeviceTypeAvalon, info.Type)
	assert.Equal(t, "1246", info.Model)
	assert.Equal(t, "21042001_3f286b9", info.Firmware)
	assert.Equal(t, "b4a2eb31e19c", info.MAC)
	assert.Equal(t, "3.7", info.Extra["api_version"])

	// One socket per call.
	_, err = adapter.DeviceInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{cmdVersion, cmdVersion}, f.seenCommands())
}

func TestLineMetricsFromSummary(t *testing.T) {
	f := startFakeCGMiner(t, map[string][]byte{cmdSummary: summaryReply})
	adapter := newTestLineAdapter(t, f)

	metrics, err := adapter.Metrics(context.Background())
	require.NoError(t, err)

	hashrate, ok := metrics.Float64(models.MetricHashrate)
	require.True(t, ok)
	assert.InDelta(t, 90.19e9, hashrate, 1)

	uptime, _ := metrics.Float64(models.MetricUptimeSeconds)
	assert.InDelta(t, 93784, uptime, 0.1)

	accepted, _ := metrics.Float64(models.MetricSharesAccepted)
	assert.InDelta(t, 1234, accepted, 0.1)

	rejected, _ := metrics.Float64(models.MetricSharesRejected)
	assert.InDelta(t, 5, rejected, 0.1)

	best, _ := metrics.Float64(models.MetricBestDifficulty)
	assert.InDelta(t, 123456789, best, 1)

	temp, _ := metrics.Float64(models.MetricTemperature)
	assert.InDelta(t, 75.5, temp, 0.01)

	fan, _ := metrics.Float64(models.MetricFanSpeed)
	assert.InDelta(t, 4560, fan, 0.1)

	// Temperature came from summary, so no stats fallback call.
	assert.Equal(t, []string{cmdSummary}, f.seenCommands())
}

func TestLineMetricsMegahashFallback(t *testing.T) {
	reply := []byte(`{"STATUS":[{"STATUS":"S"}],"SUMMARY":[{"MHS av":61500.5,"Elapsed":10,"Temperature":60}],"id":1}` + "\x00")

	f := startFakeCGMiner(t, map[string][]byte{cmdSummary: reply})
	adapter := newTestLineAdapter(t, f)

	metrics, err := adapter.Metrics(context.Background())
	require.NoError(t, err)

	hashrate, ok := metrics.Float64(models.MetricHashrate)
	require.True(t, ok)
	assert.InDelta(t, 61500.5e6, hashrate, 1)
}

func TestLineMetricsTemperatureFromStats(t *testing.T) {
	summaryNoTemp := []byte(`{"STATUS":[{"STATUS":"S"}],"SUMMARY":[{"GHS av":80.5,"Elapsed":10}],"id":1}` + "\x00")
	statsReply := []byte(`{"STATUS":[{"STATUS":"S"}],"STATS":[{"STATS":0,"ID":"AV10"},{"STATS":1,"TAvg":68.5}],"id":1}` + "\x00")

	f := startFakeCGMiner(t, map[string][]byte{cmdSummary: summaryNoTemp, cmdStats: statsReply})
	adapter := newTestLineAdapter(t, f)

	metrics, err := adapter.Metrics(context.Background())
	require.NoError(t, err)

	temp, ok := metrics.Float64(models.MetricTemperature)
	require.True(t, ok)
	assert.InDelta(t, 68.5, temp, 0.01)

	assert.Equal(t, []string{cmdSummary, cmdStats}, f.seenCommands())
}

func TestLinePoolInfo(t *testing.T) {
	f := startFakeCGMiner(t, map[string][]byte{cmdPools: poolsReply})
	adapter := newTestLineAdapter(t, f)

	pools, err := adapter.PoolInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 2)

	assert.Equal(t, "stratum+tcp://btc.example.com:3333", pools[0].URL)
	assert.Equal(t, "worker1", pools[0].User)
	assert.Equal(t, "alive", pools[0].Status)
	assert.Equal(t, 0, pools[0].Priority)
	assert.Equal(t, int64(1200), pools[0].Accepted)
	assert.Equal(t, int64(4), pools[0].Rejected)

	assert.Equal(t, "dead", pools[1].Status)
	assert.Equal(t, 1, pools[1].Priority)
}

func TestLineStatus(t *testing.T) {
	f := startFakeCGMiner(t, map[string][]byte{cmdSummary: summaryReply})
	adapter := newTestLineAdapter(t, f)

	status, err := adapter.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOnline, status)
}

func TestLineDeviceErrorReply(t *testing.T) {
	reply := []byte(`{"STATUS":[{"STATUS":"E","Code":14,"Msg":"Invalid command"}],"id":1}` + "\x00")

	f := startFakeCGMiner(t, map[string][]byte{cmdSummary: reply})
	adapter := newTestLineAdapter(t, f)

	_, err := adapter.Metrics(context.Background())
	require.Error(t, err)

	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Contains(t, protoErr.Detail, "Invalid command")
}

func TestLineMissingVersionSection(t *testing.T) {
	reply := []byte(`{"STATUS":[{"STATUS":"S","Msg":"hi"}],"id":1}` + "\x00")

	f := startFakeCGMiner(t, map[string][]byte{cmdVersion: reply})
	adapter := newTestLineAdapter(t, f)

	_, err := adapter.DeviceInfo(context.Background())
	require.Error(t, err)

	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestLineRestartPlainTextReply(t *testing.T) {
	f := startFakeCGMiner(t, map[string][]byte{cmdRestart: []byte("RESTART\x00")})
	adapter := newTestLineAdapter(t, f)

	require.NoError(t, adapter.Restart(context.Background()))
	assert.Equal(t, []string{cmdRestart}, f.seenCommands())
}

func TestLineConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	adapter := newLineAdapter("127.0.0.1", port, Deps{
		DialTimeout: 500 * time.Millisecond,
		Logger:      logger.NewTestLogger(),
	})

	err = adapter.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err), "got %v", err)
}

func TestLineUpdateSettingsUnsupported(t *testing.T) {
	f := startFakeCGMiner(t, nil)
	adapter := newTestLineAdapter(t, f)

	err := adapter.UpdateSettings(context.Background(), map[string]interface{}{"freq": 500})
	assert.ErrorIs(t, err, ErrNotSupported)

	assert.NotContains(t, adapter.Features(), FeatureUpdateSettings)
	assert.Empty(t, f.seenCommands(), "unsupported settings must not touch the device")
}

func TestParseLineReply(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr bool
		section string
	}{
		{
			name:    "clean reply",
			raw:     []byte(`{"STATUS":[{"STATUS":"S"}],"id":1}`),
			section: "STATUS",
		},
		{
			name:    "nul terminated",
			raw:     []byte(`{"STATUS":[{"STATUS":"S"}],"id":1}` + "\x00"),
			section: "STATUS",
		},
		{
			name:    "trailing garbage",
			raw:     []byte(`{"STATUS":[{"STATUS":"S"}],"id":1}` + "\x00\x00 trailing junk"),
			section: "STATUS",
		},
		{
			name:    "embedded nul",
			raw:     []byte("{\"STATUS\":[{\"STATUS\":\"S\"}],\x00\"id\":1}"),
			section: "STATUS",
		},
		{
			name:    "not json",
			raw:     []byte("RESTART"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections, err := parseLineReply(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Contains(t, sections, tt.section)
		})
	}
}
