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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
)

const nerdminerTablePage = `<!DOCTYPE html>
<html>
<head><title>NerdMiner v2</title></head>
<body>
<h1>Miner Status</h1>
<table>
<tr><td>Firmware:</td><td>1.6.3</td></tr>
<tr><td>Hashrate:</td><td>78.5 KH/s</td></tr>
<tr><td>Temperature:</td><td>149 F</td></tr>
<tr><td>Uptime:</td><td>1d 2h 3m 4s</td></tr>
<tr><td>Fan:</td><td>80%</td></tr>
<tr><td>Best Diff:</td><td>4.2M</td></tr>
<tr><td>Pool:</td><td>stratum+tcp://public-pool.io:21496</td></tr>
<tr><td>Worker:</td><td>bc1qexample.nerd1</td></tr>
<tr><td>Wifi:</td><td>myssid</td></tr>
</table>
</body>
</html>`

const nerdminerTextPage = `<!DOCTYPE html>
<html>
<head><title>NerdMiner</title></head>
<body>
<dl>
<dt>Status</dt><dd>Mining</dd>
<dt>Hash Rate</dt><dd>62.1 KH/s</dd>
</dl>
<p>Accepted: 321
Rejected: 7</p>
<script>var hashrate = "9999 TH/s";</script>
</body>
</html>`

func newTestHTMLAdapter(t *testing.T, srv *httptest.Server) *htmlAdapter {
	t.Helper()

	host, port := serverHostPort(t, srv)

	return newHTMLAdapter(host, port, Deps{
		Pool:   newTestPool(t),
		Logger: logger.NewTestLogger(),
	})
}

func servePage(t *testing.T, page string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))

	t.Cleanup(srv.Close)

	return srv
}

func TestHTMLMetricsFromTablePage(t *testing.T) {
	adapter := newTestHTMLAdapter(t, servePage(t, nerdminerTablePage))

	metrics, err := adapter.Metrics(context.Background())
	require.NoError(t, err)

	hashrate, ok := metrics.Float64(models.MetricHashrate)
	require.True(t, ok)
	assert.InDelta(t, 78500, hashrate, 0.1)

	temp, ok := metrics.Float64(models.MetricTemperature)
	require.True(t, ok)
	assert.InDelta(t, 65, temp, 0.01, "fahrenheit page normalizes to celsius")

	uptime, ok := metrics.Float64(models.MetricUptimeSeconds)
	require.True(t, ok)
	assert.InDelta(t, 93784, uptime, 0.1)

	fan, ok := metrics.Float64(models.MetricFanPercent)
	require.True(t, ok)
	assert.InDelta(t, 80, fan, 0.01)

	best, ok := metrics.Float64(models.MetricBestDifficulty)
	require.True(t, ok)
	assert.InDelta(t, 4.2e6, best, 1)

	// The page shows no power draw; the key must simply be absent.
	_, ok = metrics.Float64(models.MetricPower)
	assert.False(t, ok)
}

func TestHTMLMetricsFromDefinitionListAndText(t *testing.T) {
	adapter := newTestHTMLAdapter(t, servePage(t, nerdminerTextPage))

	metrics, err := adapter.Metrics(context.Background())
	require.NoError(t, err)

	hashrate, ok := metrics.Float64(models.MetricHashrate)
	require.True(t, ok)
	assert.InDelta(t, 62100, hashrate, 0.1, "script contents must not override the dd value")

	accepted, ok := metrics.Float64(models.MetricSharesAccepted)
	require.True(t, ok)
	assert.InDelta(t, 321, accepted, 0.01)

	rejected, ok := metrics.Float64(models.MetricSharesRejected)
	require.True(t, ok)
	assert.InDelta(t, 7, rejected, 0.01)
}

func TestHTMLMetricsUnparsableValueDropped(t *testing.T) {
	page := `<html><head><title>NerdMiner</title></head><body>
	<table><tr><td>Hashrate</td><td>55 KH/s</td></tr>
	<tr><td>Temperature</td><td>n/a</td></tr></table></body></html>`

	adapter := newTestHTMLAdapter(t, servePage(t, page))

	metrics, err := adapter.Metrics(context.Background())
	require.NoError(t, err)

	_, ok := metrics.Float64(models.MetricHashrate)
	assert.True(t, ok)

	_, ok = metrics.Float64(models.MetricTemperature)
	assert.False(t, ok, "unparsable values are dropped, not guessed")
}

func TestHTMLDeviceInfo(t *testing.T) {
	adapter := newTestHTMLAdapter(t, servePage(t, nerdminerTablePage))

	info, err := adapter.DeviceInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.DeviceTypeNerdMiner, info.Type)
	assert.Equal(t, "NerdMiner v2", info.Model)
	assert.Equal(t, "1.6.3", info.Firmware)
}

func TestHTMLDeviceInfoRejectsForeignPage(t *testing.T) {
	page := `<html><head><title>Router Admin</title></head>
	<body><p>Please log in.</p></body></html>`

	adapter := newTestHTMLAdapter(t, servePage(t, page))

	_, err := adapter.DeviceInfo(context.Background())
	require.Error(t, err)

	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestHTMLStatus(t *testing.T) {
	tests := []struct {
		name string
		page string
		want models.DeviceStatus
	}{
		{
			name: "mining maps to online",
			page: `<html><head><title>NerdMiner</title></head><body>Status: Mining</body></html>`,
			want: models.DeviceStatusOnline,
		},
		{
			name: "fault maps to error",
			page: `<html><head><title>NerdMiner</title></head><body>Status: Fault</body></html>`,
			want: models.DeviceStatusError,
		},
		{
			name: "no status field defaults to online",
			page: `<html><head><title>NerdMiner</title></head><body>Hashrate: 50 KH/s</body></html>`,
			want: models.DeviceStatusOnline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestHTMLAdapter(t, servePage(t, tt.page))

			status, err := adapter.Status(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestHTMLPoolInfo(t *testing.T) {
	adapter := newTestHTMLAdapter(t, servePage(t, nerdminerTablePage))

	pools, err := adapter.PoolInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)

	assert.Equal(t, "stratum+tcp://public-pool.io:21496", pools[0].URL)
	assert.Equal(t, "bc1qexample.nerd1", pools[0].User)
}

func TestHTMLConnectFailureLeavesNoSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	host, port := serverHostPort(t, srv)
	p := newTestPool(t)

	adapter := newHTMLAdapter(host, port, Deps{Pool: p, Logger: logger.NewTestLogger()})

	err := adapter.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, p.Stats().ActiveSessions)
}

func TestHTMLRestartAndSettingsUnsupported(t *testing.T) {
	adapter := newTestHTMLAdapter(t, servePage(t, nerdminerTablePage))

	assert.ErrorIs(t, adapter.Restart(context.Background()), ErrNotSupported)
	assert.ErrorIs(t, adapter.UpdateSettings(context.Background(), map[string]interface{}{"x": 1}), ErrNotSupported)

	assert.NotContains(t, adapter.Features(), FeatureRestart)
	assert.NotContains(t, adapter.Features(), FeatureUpdateSettings)
}
