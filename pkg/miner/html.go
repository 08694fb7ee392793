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
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
	"github.com/carverauto/hashradar/pkg/pool"
)

const maxStatusPageBytes = 1 << 20 // 1 MiB

// labeled "Label: value" runs inside free text.
var textPairRe = regexp.MustCompile(`([A-Za-z][A-Za-z0-9 /%.()-]{0,30}?)\s*:\s*(\S[^\n]*)`)

// htmlFieldKeys maps the labels hobby-miner status pages print to the
// normalized metric keys. Matching is case-insensitive on the trimmed label.
var htmlFieldKeys = map[string]string{
	"hashrate":        models.MetricHashrate,
	"hash rate":       models.MetricHashrate,
	"temperature":     models.MetricTemperature,
	"temp":            models.MetricTemperature,
	"power":           models.MetricPower,
	"voltage":         models.MetricVoltage,
	"frequency":       models.MetricFrequency,
	"fan":             models.MetricFanPercent,
	"fan speed":       models.MetricFanSpeed,
	"uptime":          models.MetricUptimeSeconds,
	"shares":          models.MetricSharesAccepted,
	"accepted":        models.MetricSharesAccepted,
	"accepted shares": models.MetricSharesAccepted,
	"rejected":        models.MetricSharesRejected,
	"rejected shares": models.MetricSharesRejected,
	"best difficulty": models.MetricBestDifficulty,
	"best diff":       models.MetricBestDifficulty,
	"efficiency":      models.MetricEfficiency,
}

// htmlAdapter scrapes boards that only serve a human-readable status page.
// Fields the page does not show are simply absent from the result; a page in
// an unexpected shape is a protocol error, never a panic.
type htmlAdapter struct {
	host    string
	port    int
	pool    *pool.Manager
	timeout time.Duration
	log     logger.Logger

	mu   sync.Mutex
	info *models.DeviceInfo
}

var _ Adapter = (*htmlAdapter)(nil)

func newHTMLAdapter(address string, port int, deps Deps) *htmlAdapter {
	return &htmlAdapter{
		host:    address,
		port:    port,
		pool:    deps.Pool,
		timeout: deps.httpTimeout(),
		log:     deps.Logger,
	}
}

func (a *htmlAdapter) Type() models.DeviceType { return models.DeviceTypeNerdMiner }

func (a *htmlAdapter) Features() []string {
	return []string{FeatureStatus, FeatureMetrics, FeatureDeviceInfo, FeaturePoolInfo}
}

func (a *htmlAdapter) addr() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}

func (a *htmlAdapter) Connect(ctx context.Context) error {
	if _, err := a.DeviceInfo(ctx); err != nil {
		// A failed connect must not leave a session behind.
		a.pool.CloseAddress(a.addr())
		return err
	}

	return nil
}

func (a *htmlAdapter) Disconnect(_ context.Context) error {
	a.pool.CloseAddress(a.addr())
	return nil
}

func (a *htmlAdapter) DeviceInfo(ctx context.Context) (*models.DeviceInfo, error) {
	doc, err := a.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	title := pageTitle(doc)
	fields := extractLabeledFields(doc)

	if !looksLikeMinerPage(title, fields) {
		return nil, &ProtocolError{
			Host:   a.host,
			Port:   a.port,
			Detail: "page does not look like a miner status page",
		}
	}

	info := &models.DeviceInfo{
		Type:  models.DeviceTypeNerdMiner,
		Model: strings.TrimSpace(title),
	}

	if fw, ok := fields["firmware"]; ok {
		info.Firmware = fw
	} else if fw, ok := fields["version"]; ok {
		info.Firmware = fw
	}

	a.mu.Lock()
	a.info = info
	a.mu.Unlock()

	return info, nil
}

func (a *htmlAdapter) Status(ctx context.Context) (models.DeviceStatus, error) {
	doc, err := a.fetchDocument(ctx)
	if err != nil {
		return models.DeviceStatusOffline, err
	}

	fields := extractLabeledFields(doc)
	if state, ok := fields["status"]; ok {
		switch strings.ToLower(strings.TrimSpace(state)) {
		case "mining", "online", "running", "ok":
			return models.DeviceStatusOnline, nil
		default:
			return models.DeviceStatusError, nil
		}
	}

	return models.DeviceStatusOnline, nil
}

func (a *htmlAdapter) Metrics(ctx context.Context) (models.Metrics, error) {
	doc, err := a.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	fields := extractLabeledFields(doc)
	metrics := make(models.Metrics)

	for label, raw := range fields {
		key, ok := htmlFieldKeys[label]
		if !ok {
			continue
		}

		if _, exists := metrics[key]; exists {
			continue
		}

		value, ok := parseFieldValue(key, raw)
		if !ok {
			// Unparsable values are dropped, not guessed at.
			continue
		}

		metrics[key] = value
	}

	return metrics, nil
}

func (a *htmlAdapter) PoolInfo(ctx context.Context) ([]models.PoolInfo, error) {
	doc, err := a.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	fields := extractLabeledFields(doc)

	url := ""
	for _, label := range []string{"pool", "pool url", "stratum", "stratum url"} {
		if v, ok := fields[label]; ok {
			url = strings.TrimSpace(v)
			break
		}
	}

	if url == "" {
		return []models.PoolInfo{}, nil
	}

	info := models.PoolInfo{URL: url}

	if user, ok := fields["worker"]; ok {
		info.User = strings.TrimSpace(user)
	} else if user, ok := fields["user"]; ok {
		info.User = strings.TrimSpace(user)
	}

	return []models.PoolInfo{info}, nil
}

func (a *htmlAdapter) Restart(_ context.Context) error {
	return fmt.Errorf("restart: %w", ErrNotSupported)
}

func (a *htmlAdapter) UpdateSettings(_ context.Context, _ map[string]interface{}) error {
	return fmt.Errorf("update settings: %w", ErrNotSupported)
}

func (a *htmlAdapter) fetchDocument(ctx context.Context) (*html.Node, error) {
	sess, release, err := acquireSession(ctx, a.pool, a.addr())
	if err != nil {
		return nil, wrapDialError(a.host, a.port, "fetch status page", err)
	}
	defer release()

	url := fmt.Sprintf("http://%s/", a.addr())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, wrapDialError(a.host, a.port, "fetch status page", err)
	}

	resp, err := sess.Client().Do(req)
	if err != nil {
		return nil, wrapDialError(a.host, a.port, "fetch status page", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{
			Host:   a.host,
			Port:   a.port,
			Detail: fmt.Sprintf("status page returned %d", resp.StatusCode),
		}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxStatusPageBytes))
	if err != nil {
		return nil, &ProtocolError{Host: a.host, Port: a.port, Detail: "unparsable HTML", Err: err}
	}

	return doc, nil
}

// looksLikeMinerPage is the discovery signature: a recognizable title or at
// least one known telemetry label.
func looksLikeMinerPage(title string, fields map[string]string) bool {
	lower := strings.ToLower(title)
	if strings.Contains(lower, "nerdminer") || strings.Contains(lower, "miner") {
		return true
	}

	for label := range fields {
		if _, ok := htmlFieldKeys[label]; ok {
			return true
		}
	}

	return false
}

func parseFieldValue(key, raw string) (float64, bool) {
	switch key {
	case models.MetricHashrate:
		return parseHashrate(raw)
	case models.MetricTemperature:
		return parseTemperature(raw)
	case models.MetricUptimeSeconds:
		return parseUptimeSeconds(raw)
	case models.MetricFanPercent:
		return parsePercent(raw)
	case models.MetricBestDifficulty:
		if v, ok := parseDifficulty(raw); ok {
			return v, true
		}

		return parseNumber(raw)
	default:
		return parseNumber(raw)
	}
}

func pageTitle(root *html.Node) string {
	var title string

	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			title = nodeText(n)
			return true
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}

		return false
	}

	walk(root)

	return title
}

// extractLabeledFields walks the DOM collecting label/value pairs from table
// rows, definition lists, and "Label: value" text runs. The first value seen
// for a label wins.
func extractLabeledFields(root *html.Node) map[string]string {
	fields := make(map[string]string)

	put := func(label, value string) {
		label = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(label), ":"))
		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)

		if label == "" || value == "" {
			return
		}

		if _, ok := fields[label]; !ok {
			fields[label] = value
		}
	}

	var lastDT string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tr":
				cells := childCellTexts(n)
				if len(cells) >= 2 {
					put(cells[0], cells[1])
				}
			case "dt":
				lastDT = nodeText(n)
			case "dd":
				if lastDT != "" {
					put(lastDT, nodeText(n))
					lastDT = ""
				}
			case "script", "style":
				return
			}
		}

		if n.Type == html.TextNode {
			for _, line := range strings.Split(n.Data, "\n") {
				for _, m := range textPairRe.FindAllStringSubmatch(line, -1) {
					put(m[1], m[2])
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)

	return fields
}

func childCellTexts(tr *html.Node) []string {
	var cells []string

	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, nodeText(c))
		}
	}

	return cells
}

func nodeText(n *html.Node) string {
	var sb strings.Builder

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}

		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)

	return strings.TrimSpace(sb.String())
}
