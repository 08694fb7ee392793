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

package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
)

const (
	defaultScanConcurrency = 32
	defaultScanRate        = 64 // probe starts per second
)

// DefaultPorts are the ports scanned when the caller does not pick any.
func DefaultPorts() []int {
	return []int{80, 4028}
}

// ScannerConfig tunes a network sweep.
type ScannerConfig struct {
	// Concurrency caps how many targets are probed at once.
	Concurrency int `json:"concurrency"`
	// RateLimit paces probe starts per second; RateBurst is the bucket size.
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`
}

// DefaultScannerConfig returns the stock sweep settings.
func DefaultScannerConfig() *ScannerConfig {
	return &ScannerConfig{
		Concurrency: defaultScanConcurrency,
		RateLimit:   defaultScanRate,
		RateBurst:   defaultScanConcurrency,
	}
}

// Scanner sweeps an address range for devices speaking a known protocol.
type Scanner struct {
	prober      *Prober
	concurrency int
	limiter     *rate.Limiter
	log         logger.Logger

	// OnResult, when set before Scan, is called for every device found, in
	// discovery order.
	OnResult func(models.DiscoveredDevice)
}

// NewScanner builds a Scanner. A nil cfg uses defaults; zero values are
// normalized rather than rejected.
func NewScanner(cfg *ScannerConfig, prober *Prober, log logger.Logger) *Scanner {
	if cfg == nil {
		cfg = DefaultScannerConfig()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultScanConcurrency
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultScanRate
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = concurrency
	}

	return &Scanner{
		prober:      prober,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Limit(limit), burst),
		log:         log,
	}
}

// Scan expands cidr, probes every host on every port, and returns the devices
// that answered a known protocol, ordered by address then port. A positive
// timeout bounds each per-target probe; zero leaves the prober's own timings
// in charge. Hosts that are dead or speak something unrecognized are skipped
// silently; the scan itself only fails on a bad CIDR or cancellation.
func (s *Scanner) Scan(ctx context.Context, cidr string, ports []int, timeout time.Duration) ([]models.DiscoveredDevice, error) {
	ips, err := ExpandCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("expand cidr %q: %w", cidr, err)
	}

	if len(ports) == 0 {
		ports = DefaultPorts()
	}

	s.log.Info().
		Str("cidr", cidr).
		Ints("ports", ports).
		Int("hosts", len(ips)).
		Dur("probe_timeout", timeout).
		Msg("Starting network scan")

	var (
		mu    sync.Mutex
		found []models.DiscoveredDevice
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, ip := range ips {
		for _, port := range ports {
			g.Go(func() error {
				if err := s.limiter.Wait(gctx); err != nil {
					return err
				}

				pctx := gctx

				if timeout > 0 {
					var pcancel context.CancelFunc

					pctx, pcancel = context.WithTimeout(gctx, timeout)
					defer pcancel()
				}

				start := time.Now()

				deviceType, info, err := s.prober.DetectType(pctx, ip, port)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}

					// Dead host, unknown protocol, or a probe that ran
					// out of time: not a scan failure.
					return nil
				}

				device := models.DiscoveredDevice{
					Address:     ip,
					Port:        port,
					Type:        deviceType,
					Info:        info,
					RespondedIn: models.Duration(time.Since(start)),
				}

				mu.Lock()
				found = append(found, device)

				if s.OnResult != nil {
					s.OnResult(device)
				}
				mu.Unlock()

				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortDiscovered(found)

	s.log.Info().
		Str("cidr", cidr).
		Int("found", len(found)).
		Msg("Network scan finished")

	return found, nil
}

// sortDiscovered orders results by numeric address, then port, so repeated
// scans of the same network come back in the same order.
func sortDiscovered(devices []models.DiscoveredDevice) {
	sort.Slice(devices, func(i, j int) bool {
		a := net.ParseIP(devices[i].Address).To16()
		b := net.ParseIP(devices[j].Address).To16()

		if cmp := bytes.Compare(a, b); cmp != 0 {
			return cmp < 0
		}

		return devices[i].Port < devices[j].Port
	})
}
