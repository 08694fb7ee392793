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

// Package discovery finds mining devices on the local network and figures out
// which protocol they speak.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/miner"
	"github.com/carverauto/hashradar/pkg/models"
)

const (
	defaultProbeTimeout = time.Second
	defaultTryTimeout   = 5 * time.Second
)

// portCandidates lists the device types most likely to answer on a
// well-known port, in probe order.
var portCandidates = map[int][]models.DeviceType{
	80:   {models.DeviceTypeBitaxe, models.DeviceTypeNerdMiner},
	4028: {models.DeviceTypeAvalon},
}

// ProberConfig tunes type detection.
type ProberConfig struct {
	// ProbeTimeout bounds the initial TCP reachability check.
	ProbeTimeout models.Duration `json:"probe_timeout"`
	// TryTimeout bounds each per-protocol signature attempt.
	TryTimeout models.Duration `json:"try_timeout"`
}

// DefaultProberConfig returns the stock detection timings.
func DefaultProberConfig() *ProberConfig {
	return &ProberConfig{
		ProbeTimeout: models.Duration(defaultProbeTimeout),
		TryTimeout:   models.Duration(defaultTryTimeout),
	}
}

// Prober identifies what kind of miner answers at an address by trying
// protocol adapters in port-priority order.
type Prober struct {
	registry     miner.Registry
	deps         miner.Deps
	probeTimeout time.Duration
	tryTimeout   time.Duration
	log          logger.Logger
}

// NewProber builds a Prober. A nil cfg uses defaults.
func NewProber(cfg *ProberConfig, registry miner.Registry, deps miner.Deps, log logger.Logger) *Prober {
	if cfg == nil {
		cfg = DefaultProberConfig()
	}

	probeTimeout := time.Duration(cfg.ProbeTimeout)
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	tryTimeout := time.Duration(cfg.TryTimeout)
	if tryTimeout <= 0 {
		tryTimeout = defaultTryTimeout
	}

	return &Prober{
		registry:     registry,
		deps:         deps,
		probeTimeout: probeTimeout,
		tryTimeout:   tryTimeout,
		log:          log,
	}
}

// DetectType finds which protocol answers at address:port. It first confirms
// the port accepts TCP at all, then tries candidate adapters until one
// recognizes its own protocol. Adapters are always disconnected afterwards,
// match or not.
func (p *Prober) DetectType(ctx context.Context, address string, port int) (models.DeviceType, *models.DeviceInfo, error) {
	if err := p.reachable(ctx, address, port); err != nil {
		return "", nil, err
	}

	for _, deviceType := range p.candidates(port) {
		info, err := p.try(ctx, deviceType, address, port)
		if err == nil {
			p.log.Debug().
				Str("address", address).
				Int("port", port).
				Str("type", string(deviceType)).
				Msg("Detected device type")

			return deviceType, info, nil
		}

		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}

		p.log.Debug().
			Str("address", address).
			Int("port", port).
			Str("type", string(deviceType)).
			Err(err).
			Msg("Signature mismatch")
	}

	return "", nil, fmt.Errorf("%w: %s:%d answered none of the known protocols",
		miner.ErrUnknownDeviceType, address, port)
}

// candidates returns the adapter types to try for a port, most likely first.
func (p *Prober) candidates(port int) []models.DeviceType {
	if types, ok := portCandidates[port]; ok {
		return types
	}

	return p.registry.Types()
}

// reachable is a cheap TCP open/close that filters dead hosts before any
// protocol work happens.
func (p *Prober) reachable(ctx context.Context, address string, port int) error {
	dialer := &net.Dialer{Timeout: p.probeTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &miner.TimeoutError{Host: address, Port: port, Op: "probe", Err: err}
		}

		return &miner.ConnectionError{Host: address, Port: port, Op: "probe", Err: err}
	}

	return conn.Close()
}

// try runs one adapter's signature check under the per-try timeout.
func (p *Prober) try(ctx context.Context, deviceType models.DeviceType, address string, port int) (*models.DeviceInfo, error) {
	adapter, err := p.registry.Get(deviceType, address, port, p.deps)
	if err != nil {
		return nil, err
	}

	tryCtx, cancel := context.WithTimeout(ctx, p.tryTimeout)
	defer cancel()

	// Cleanup runs no matter how the attempt went.
	defer func() { _ = adapter.Disconnect(context.WithoutCancel(tryCtx)) }()

	if err := adapter.Connect(tryCtx); err != nil {
		return nil, err
	}

	return adapter.DeviceInfo(tryCtx)
}
