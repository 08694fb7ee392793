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

// Package pool maintains reusable per-device network sessions keyed by
// "host:port", with idle expiry and oldest-first eviction at capacity.
package pool

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
)

const (
	defaultMaxSessions     = 50
	defaultSessionTimeout  = 10 * time.Minute
	defaultCleanupInterval = time.Minute
)

var (
	ErrPoolClosed = errors.New("pool: closed")

	errInvalidMaxSessions     = errors.New("pool: max_sessions must be at least 1")
	errInvalidSessionTimeout  = errors.New("pool: session_timeout must be positive")
	errInvalidCleanupInterval = errors.New("pool: cleanup_interval must be positive")
	errNilFactory             = errors.New("pool: factory is required")
)

// Conn is a pooled resource. Close must be safe to call once the conn is no
// longer pooled; for HTTP sessions it only drops idle keep-alives.
type Conn interface {
	Close() error
}

// Factory builds a new session for an address. It may dial, so the pool never
// invokes it while holding its lock.
type Factory func(ctx context.Context, address string) (Conn, error)

// Config controls pool capacity and idle expiry.
type Config struct {
	MaxSessions     int             `json:"max_sessions"`
	SessionTimeout  models.Duration `json:"session_timeout"`
	CleanupInterval models.Duration `json:"cleanup_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxSessions:     defaultMaxSessions,
		SessionTimeout:  models.Duration(defaultSessionTimeout),
		CleanupInterval: models.Duration(defaultCleanupInterval),
	}
}

func (c *Config) Validate() error {
	if c.MaxSessions < 1 {
		return errInvalidMaxSessions
	}

	if c.SessionTimeout <= 0 {
		return errInvalidSessionTimeout
	}

	if c.CleanupInterval <= 0 {
		return errInvalidCleanupInterval
	}

	return nil
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	ActiveSessions int    `json:"active_sessions"`
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	Evictions      uint64 `json:"evictions"`
	Expirations    uint64 `json:"expirations"`
}

type entry struct {
	conn      Conn
	address   string
	createdAt time.Time
	lastUsed  time.Time
	useCount  uint64
	element   *list.Element
}

// Manager owns the session table. The mutex guards only map and list
// bookkeeping; session creation and close happen outside it.
type Manager struct {
	cfg     Config
	factory Factory
	log     logger.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	evictList *list.List // front = oldest created
	closed    bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

func NewManager(cfg *Config, factory Factory, log logger.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if factory == nil {
		return nil, errNilFactory
	}

	m := &Manager{
		cfg:       *cfg,
		factory:   factory,
		log:       log,
		entries:   make(map[string]*entry),
		evictList: list.New(),
		done:      make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweep()

	return m, nil
}

// Acquire returns the live session for address, creating one when absent.
// The release func marks the session recently used; callers defer it for the
// duration of their network call.
func (m *Manager) Acquire(ctx context.Context, address string) (Conn, func(), error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrPoolClosed
	}

	if e, ok := m.entries[address]; ok {
		e.lastUsed = time.Now()
		e.useCount++
		m.mu.Unlock()

		m.hits.Add(1)

		return e.conn, m.release(address), nil
	}

	m.mu.Unlock()

	m.misses.Add(1)

	// The factory may dial; never call it under the lock.
	conn, err := m.factory(ctx, address)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()

	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()

		_ = conn.Close()

		return nil, nil, ErrPoolClosed
	}

	if e, ok := m.entries[address]; ok {
		// Another goroutine created the session while we dialed; keep
		// theirs so exactly one survives per key.
		e.lastUsed = now
		e.useCount++
		m.mu.Unlock()

		_ = conn.Close()

		return e.conn, m.release(address), nil
	}

	var evicted *entry
	if len(m.entries) >= m.cfg.MaxSessions {
		evicted = m.removeOldestLocked()
	}

	e := &entry{
		conn:      conn,
		address:   address,
		createdAt: now,
		lastUsed:  now,
		useCount:  1,
	}
	e.element = m.evictList.PushBack(e)
	m.entries[address] = e

	m.mu.Unlock()

	if evicted != nil {
		m.evictions.Add(1)
		m.closeEntry(evicted, "evicted")
	}

	return conn, m.release(address), nil
}

func (m *Manager) release(address string) func() {
	return func() {
		m.mu.Lock()
		if e, ok := m.entries[address]; ok {
			e.lastUsed = time.Now()
		}
		m.mu.Unlock()
	}
}

// CloseAddress drops and closes the session for address, reporting whether
// one existed.
func (m *Manager) CloseAddress(address string) bool {
	m.mu.Lock()

	e, ok := m.entries[address]
	if ok {
		m.removeLocked(e)
	}

	m.mu.Unlock()

	if !ok {
		return false
	}

	m.closeEntry(e, "closed")

	return true
}

// Stats returns a snapshot of pool counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	active := len(m.entries)
	m.mu.Unlock()

	return Stats{
		ActiveSessions: active,
		Hits:           m.hits.Load(),
		Misses:         m.misses.Load(),
		Evictions:      m.evictions.Load(),
		Expirations:    m.expirations.Load(),
	}
}

// Close stops the sweeper and closes every session. Idempotent.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()

		m.mu.Lock()

		m.closed = true

		remaining := make([]*entry, 0, len(m.entries))
		for _, e := range m.entries {
			remaining = append(remaining, e)
		}

		m.entries = make(map[string]*entry)
		m.evictList.Init()

		m.mu.Unlock()

		for _, e := range remaining {
			m.closeEntry(e, "pool shutdown")
		}
	})

	return nil
}

func (m *Manager) sweep() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Duration(m.cfg.CleanupInterval))
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.expireIdle()
		}
	}
}

func (m *Manager) expireIdle() {
	cutoff := time.Now().Add(-time.Duration(m.cfg.SessionTimeout))

	m.mu.Lock()

	var expired []*entry

	for _, e := range m.entries {
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, e)
		}
	}

	for _, e := range expired {
		m.removeLocked(e)
	}

	m.mu.Unlock()

	for _, e := range expired {
		m.expirations.Add(1)
		m.closeEntry(e, "idle timeout")
	}
}

// removeOldestLocked unlinks the entry with the earliest creation time and
// returns it for the caller to close outside the lock.
func (m *Manager) removeOldestLocked() *entry {
	front := m.evictList.Front()
	if front == nil {
		return nil
	}

	e := front.Value.(*entry)
	m.removeLocked(e)

	return e
}

func (m *Manager) removeLocked(e *entry) {
	delete(m.entries, e.address)

	if e.element != nil {
		m.evictList.Remove(e.element)
		e.element = nil
	}
}

func (m *Manager) closeEntry(e *entry, reason string) {
	if err := e.conn.Close(); err != nil && m.log != nil {
		m.log.Debug().
			Err(err).
			Str("address", e.address).
			Str("reason", reason).
			Msg("Failed to close pooled session")
	} else if m.log != nil {
		m.log.Debug().
			Str("address", e.address).
			Str("reason", reason).
			Uint64("use_count", e.useCount).
			Msg("Closed pooled session")
	}
}
