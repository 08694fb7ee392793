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

// Package devices orchestrates the managed miner fleet: it owns the
// device table, runs one polling loop per device, and fans lifecycle
// and metric events out to the stream broadcaster.
package devices

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/hashradar/pkg/db"
	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/miner"
	"github.com/carverauto/hashradar/pkg/models"
)

// MinPollingInterval is the floor for per-device poll cadence.
const MinPollingInterval = time.Second

const (
	defaultPollingInterval = 30 * time.Second
	defaultCollectTimeout  = 20 * time.Second
	defaultConnectTimeout  = 10 * time.Second
	defaultRestartTimeout  = 30 * time.Second
	defaultPoolInfoEvery   = 5
)

// Config tunes the orchestrator.
type Config struct {
	// DefaultPollingInterval is used when a device is added without an
	// explicit interval.
	DefaultPollingInterval models.Duration `json:"default_polling_interval,omitempty"`
	// CollectTimeout bounds one poll round against a single device.
	CollectTimeout models.Duration `json:"collect_timeout,omitempty"`
	// ConnectTimeout bounds the initial connect when a device is added.
	ConnectTimeout models.Duration `json:"connect_timeout,omitempty"`
	// RestartTimeout bounds the fire-and-forget restart call.
	RestartTimeout models.Duration `json:"restart_timeout,omitempty"`
	// PoolInfoEvery fetches upstream pool info every Nth poll round.
	PoolInfoEvery int `json:"pool_info_every,omitempty"`
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultPollingInterval: models.Duration(defaultPollingInterval),
		CollectTimeout:         models.Duration(defaultCollectTimeout),
		ConnectTimeout:         models.Duration(defaultConnectTimeout),
		RestartTimeout:         models.Duration(defaultRestartTimeout),
		PoolInfoEvery:          defaultPoolInfoEvery,
	}
}

func (c *Config) normalize() {
	if c.DefaultPollingInterval <= 0 {
		c.DefaultPollingInterval = models.Duration(defaultPollingInterval)
	}

	if c.CollectTimeout <= 0 {
		c.CollectTimeout = models.Duration(defaultCollectTimeout)
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = models.Duration(defaultConnectTimeout)
	}

	if c.RestartTimeout <= 0 {
		c.RestartTimeout = models.Duration(defaultRestartTimeout)
	}

	if c.PoolInfoEvery <= 0 {
		c.PoolInfoEvery = defaultPoolInfoEvery
	}
}

// Deps carries the collaborators a Manager is wired with. Store,
// Publisher, and Scanner are optional.
type Deps struct {
	Registry  miner.Registry
	Miner     miner.Deps
	Store     db.Store
	Publisher Publisher
	Scanner   Scanner
	Clock     Clock
	Logger    logger.Logger
}

// AddOptions are the caller-tunable fields of a new device.
type AddOptions struct {
	Name            string
	PollingInterval models.Duration
	Settings        map[string]interface{}
}

// managedDevice pairs a device record with its adapter and the polling
// loop handles. The record is guarded by Manager.mu.
type managedDevice struct {
	id       string
	record   *models.Device
	adapter  miner.Adapter
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	reloadCh chan time.Duration
	tick     uint64 // touched only by the poll goroutine
}

func newManagedDevice(parent context.Context, record *models.Device, adapter miner.Adapter) *managedDevice {
	ctx, cancel := context.WithCancel(parent)

	return &managedDevice{
		id:       record.ID,
		record:   record,
		adapter:  adapter,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		reloadCh: make(chan time.Duration, 1),
	}
}

// pushReload hands the loop a new cadence, replacing any pending one.
// Callers hold the manager lock, so the drain cannot race another sender.
func (md *managedDevice) pushReload(interval time.Duration) {
	select {
	case <-md.reloadCh:
	default:
	}

	select {
	case md.reloadCh <- interval:
	default:
	}
}

// Manager is the device orchestrator.
type Manager struct {
	cfg       Config
	registry  miner.Registry
	minerDeps miner.Deps
	store     db.Store
	publisher Publisher
	scanner   Scanner
	clock     Clock
	log       logger.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// mu guards the device table, the device records, the discovery
	// session, and the default polling interval in cfg.
	mu      sync.RWMutex
	devices map[string]*managedDevice
	session *models.DiscoverySession

	stopOnce sync.Once
}

// New creates a device orchestrator. Loops started later are tied to the
// manager's own context and stop on Stop.
func New(cfg *Config, deps Deps) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	normalized := *cfg
	normalized.normalize()

	registry := deps.Registry
	if registry == nil {
		registry = miner.DefaultRegistry()
	}

	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:        normalized,
		registry:   registry,
		minerDeps:  deps.Miner,
		store:      deps.Store,
		publisher:  deps.Publisher,
		scanner:    deps.Scanner,
		clock:      clock,
		log:        deps.Logger,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		devices:    make(map[string]*managedDevice),
	}
}

// DeviceID derives the stable identifier for a device at an address.
func DeviceID(deviceType models.DeviceType, address string) string {
	return fmt.Sprintf("%s_%s", deviceType, strings.ReplaceAll(address, ".", "_"))
}

// AddDevice connects to a device and starts polling it. A connect
// failure tears everything down again: no table entry, no session.
func (m *Manager) AddDevice(ctx context.Context, deviceType models.DeviceType, address string, port int, opts AddOptions) (*models.Device, error) {
	adapter, err := m.registry.Get(deviceType, address, port, m.minerDeps)
	if err != nil {
		return nil, err
	}

	interval := opts.PollingInterval
	if interval <= 0 {
		interval = m.defaultInterval()
	}

	if time.Duration(interval) < MinPollingInterval {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, time.Duration(interval))
	}

	id := DeviceID(deviceType, address)

	record := &models.Device{
		ID:              id,
		Type:            deviceType,
		Address:         address,
		Port:            port,
		Name:            opts.Name,
		Status:          models.DeviceStatusConnected,
		PollingInterval: interval,
		AddedAt:         m.clock.Now().UTC(),
		Metrics:         models.Metrics{},
		PoolInfo:        []models.PoolInfo{},
		Settings:        copySettings(opts.Settings),
	}

	md := newManagedDevice(m.baseCtx, record, adapter)

	// Reserve the ID before connecting so concurrent adds of the same
	// device single-flight on the table entry.
	m.mu.Lock()
	if _, exists := m.devices[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDeviceExists, id)
	}

	m.devices[id] = md
	m.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.ConnectTimeout))
	defer cancel()

	if err := adapter.Connect(connectCtx); err != nil {
		_ = adapter.Disconnect(context.WithoutCancel(ctx))

		m.mu.Lock()
		delete(m.devices, id)
		m.mu.Unlock()

		md.cancel()
		close(md.done) // the loop never started

		m.log.Error().Err(err).
			Str("device_id", id).
			Str("address", address).
			Msg("Failed to connect to device")

		return nil, err
	}

	if opts.Name == "" {
		m.defaultName(connectCtx, md)
	}

	m.mu.RLock()
	out := md.record.Copy()
	m.mu.RUnlock()

	m.persistDevice(ctx, out)
	m.publishDevice(out)

	go m.runPollLoop(md)

	m.log.Info().
		Str("device_id", id).
		Str("type", string(deviceType)).
		Str("address", address).
		Int("port", port).
		Msg("Device added")

	return out, nil
}

// defaultName fills an empty name from what the device reports about
// itself, hostname first, then model. Best-effort: when the device
// cannot say who it is, the name stays empty.
func (m *Manager) defaultName(ctx context.Context, md *managedDevice) {
	info, err := md.adapter.DeviceInfo(ctx)
	if err != nil || info == nil {
		m.log.Debug().Err(err).Str("device_id", md.id).Msg("Device info unavailable, name left empty")
		return
	}

	name := info.Hostname
	if name == "" {
		name = info.Model
	}

	if name == "" {
		return
	}

	m.mu.Lock()
	md.record.Name = name
	m.mu.Unlock()
}

// defaultInterval reads the orchestrator-wide default under the lock;
// SetGlobalPollingInterval can change it at runtime.
func (m *Manager) defaultInterval() models.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cfg.DefaultPollingInterval
}

// RemoveDevice stops the polling loop, disconnects the adapter, and
// drops the device from the table and the store.
func (m *Manager) RemoveDevice(ctx context.Context, id string) error {
	m.mu.Lock()
	md, ok := m.devices[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	delete(m.devices, id)
	m.mu.Unlock()

	md.cancel()
	<-md.done

	if err := md.adapter.Disconnect(context.WithoutCancel(ctx)); err != nil {
		m.log.Warn().Err(err).Str("device_id", id).Msg("Disconnect failed during removal")
	}

	if m.store != nil {
		if err := m.store.DeleteDeviceConfig(ctx, id); err != nil {
			m.log.Warn().Err(err).Str("device_id", id).Msg("Failed to delete persisted device config")
		}
	}

	// The entry is out of the table and the loop has exited, so the
	// record is exclusively ours now.
	md.record.Status = models.DeviceStatusRemoved
	m.publishDevice(md.record.Copy())

	m.log.Info().Str("device_id", id).Msg("Device removed")

	return nil
}

// protectedKeys are device fields UpdateDevice silently ignores.
var protectedKeys = map[string]struct{}{
	"id":       {},
	"type":     {},
	"address":  {},
	"port":     {},
	"added_at": {},
}

// UpdateDevice applies a partial update. Protected identity fields in
// the map are dropped without error; settings are forwarded to the
// device before the record changes.
func (m *Manager) UpdateDevice(ctx context.Context, id string, updates map[string]interface{}) (*models.Device, error) {
	m.mu.RLock()
	md, ok := m.devices[id]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	adapter := md.adapter
	m.mu.RUnlock()

	var (
		name     *string
		interval *models.Duration
		settings map[string]interface{}
	)

	for key, value := range updates {
		if _, protected := protectedKeys[key]; protected {
			m.log.Debug().Str("device_id", id).Str("key", key).Msg("Ignoring protected field in device update")
			continue
		}

		switch key {
		case "name":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: name must be a string", ErrInvalidUpdate)
			}

			name = &s
		case "polling_interval":
			d, err := parseInterval(value)
			if err != nil {
				return nil, err
			}

			interval = &d
		case "settings":
			sm, ok := value.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: settings must be an object", ErrInvalidUpdate)
			}

			settings = sm
		default:
			m.log.Debug().Str("device_id", id).Str("key", key).Msg("Ignoring unknown field in device update")
		}
	}

	if len(settings) > 0 {
		if err := adapter.UpdateSettings(ctx, settings); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	if _, still := m.devices[id]; !still {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if name != nil {
		md.record.Name = *name
	}

	if len(settings) > 0 {
		if md.record.Settings == nil {
			md.record.Settings = make(map[string]interface{}, len(settings))
		}

		for k, v := range settings {
			md.record.Settings[k] = v
		}
	}

	if interval != nil {
		md.record.PollingInterval = *interval
		md.pushReload(time.Duration(*interval))
	}

	out := md.record.Copy()
	m.mu.Unlock()

	m.persistDevice(ctx, out)
	m.publishDevice(out)

	return out, nil
}

// parseInterval accepts a duration string ("30s") or a number of seconds.
func parseInterval(value interface{}) (models.Duration, error) {
	var dur time.Duration

	switch v := value.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: polling_interval %q", ErrInvalidUpdate, v)
		}

		dur = parsed
	case float64:
		dur = time.Duration(v * float64(time.Second))
	case int:
		dur = time.Duration(v) * time.Second
	case int64:
		dur = time.Duration(v) * time.Second
	default:
		return 0, fmt.Errorf("%w: polling_interval must be a duration string or seconds", ErrInvalidUpdate)
	}

	if dur < MinPollingInterval {
		return 0, fmt.Errorf("%w: %s", ErrInvalidInterval, dur)
	}

	return models.Duration(dur), nil
}

// RestartDevice asks the device to reboot and returns immediately. There
// is no completion signal; the next successful poll flips the status back.
func (m *Manager) RestartDevice(ctx context.Context, id string) error {
	m.mu.Lock()
	md, ok := m.devices[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	md.record.Status = models.DeviceStatusRestarting
	out := md.record.Copy()
	adapter := md.adapter
	m.mu.Unlock()

	m.publishDevice(out)

	go func() {
		restartCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(m.cfg.RestartTimeout))
		defer cancel()

		if err := adapter.Restart(restartCtx); err != nil {
			m.log.Error().Err(err).Str("device_id", id).Msg("Device restart failed")
			return
		}

		m.log.Info().Str("device_id", id).Msg("Device restart requested")
	}()

	return nil
}

// SetPollingInterval changes a device's poll cadence and hot-reloads the
// running loop.
func (m *Manager) SetPollingInterval(ctx context.Context, id string, interval time.Duration) error {
	if interval < MinPollingInterval {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	m.mu.Lock()
	md, ok := m.devices[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	md.record.PollingInterval = models.Duration(interval)
	md.pushReload(interval)
	out := md.record.Copy()
	m.mu.Unlock()

	m.persistDevice(ctx, out)
	m.publishDevice(out)

	return nil
}

// Device returns a copy of one device record.
func (m *Manager) Device(id string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	return md.record.Copy(), nil
}

// ListDevices returns copies of every device record, oldest first.
func (m *Manager) ListDevices() []*models.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Device, 0, len(m.devices))
	for _, md := range m.devices {
		out = append(out, md.record.Copy())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].ID < out[j].ID
		}

		return out[i].AddedAt.Before(out[j].AddedAt)
	})

	return out
}

func (m *Manager) persistDevice(ctx context.Context, device *models.Device) {
	if m.store == nil {
		return
	}

	if err := m.store.SaveDeviceConfig(ctx, device); err != nil {
		m.log.Warn().Err(err).Str("device_id", device.ID).Msg("Failed to persist device config")
	}
}

func (m *Manager) publishDevice(device *models.Device) {
	if m.publisher == nil || device == nil {
		return
	}

	m.publisher.Publish(models.TopicDevices, device)
}

func copySettings(settings map[string]interface{}) map[string]interface{} {
	if settings == nil {
		return nil
	}

	out := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		out[k] = v
	}

	return out
}
