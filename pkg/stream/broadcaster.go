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

// Package stream fans device lifecycle and telemetry events out to
// realtime subscribers. The broadcaster owns the subscriber table and a
// shared heartbeat loop; transports are injected so the HTTP layer can
// hand it WebSocket connections and tests can hand it fakes.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
)

const (
	defaultSendTimeout       = 5 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultServerVersion     = "dev"

	// staleFactor times the heartbeat interval is how long a client may
	// stay silent before it is force-disconnected.
	staleFactor = 2.5
)

// Config tunes the broadcaster.
type Config struct {
	// SendTimeout bounds one write to one subscriber.
	SendTimeout models.Duration `json:"send_timeout,omitempty"`
	// HeartbeatInterval is the cadence of the shared liveness sweep.
	HeartbeatInterval models.Duration `json:"heartbeat_interval,omitempty"`
	// ServerVersion is advertised in the welcome message.
	ServerVersion string `json:"server_version,omitempty"`
}

// DefaultConfig returns the broadcaster defaults.
func DefaultConfig() *Config {
	return &Config{
		SendTimeout:       models.Duration(defaultSendTimeout),
		HeartbeatInterval: models.Duration(defaultHeartbeatInterval),
		ServerVersion:     defaultServerVersion,
	}
}

func (c *Config) normalize() {
	if c.SendTimeout <= 0 {
		c.SendTimeout = models.Duration(defaultSendTimeout)
	}

	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = models.Duration(defaultHeartbeatInterval)
	}

	if c.ServerVersion == "" {
		c.ServerVersion = defaultServerVersion
	}
}

// Broadcaster fans messages out to registered subscribers, runs the
// periodic topic providers, and polices liveness with a shared
// heartbeat loop.
type Broadcaster struct {
	cfg Config
	log logger.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu               sync.RWMutex
	clients          map[string]*Client
	heartbeatStarted bool

	providers []Provider

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a broadcaster. Providers registered before Start run one
// goroutine each; the heartbeat loop starts lazily with the first client.
func New(cfg *Config, log logger.Logger) *Broadcaster {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	normalized := *cfg
	normalized.normalize()

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Broadcaster{
		cfg:        normalized,
		log:        log,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		clients:    make(map[string]*Client),
	}
}

// AddProvider registers a periodic topic provider. Call before Start.
func (b *Broadcaster) AddProvider(p Provider) {
	b.providers = append(b.providers, p)
}

// Start launches the provider loops. The heartbeat loop is not started
// here; it comes up with the first registered client.
func (b *Broadcaster) Start(_ context.Context) error {
	for _, p := range b.providers {
		b.wg.Add(1)

		go b.providerLoop(p)
	}

	b.log.Info().Int("providers", len(b.providers)).Msg("Stream broadcaster started")

	return nil
}

// Stop cancels the heartbeat and provider loops, closes every
// connection, and clears the subscriber table.
func (b *Broadcaster) Stop(_ context.Context) error {
	b.stopOnce.Do(func() {
		b.baseCancel()

		// Taking the lock after the cancel is the barrier: any Register
		// still in flight has either inserted or been refused by now.
		b.mu.Lock()
		clients := make([]*Client, 0, len(b.clients))
		for _, c := range b.clients {
			clients = append(clients, c)
		}

		b.clients = make(map[string]*Client)
		b.mu.Unlock()

		b.wg.Wait()

		for _, c := range clients {
			if err := c.transport.Close(); err != nil {
				b.log.Debug().Err(err).Str("client_id", c.ID).Msg("Transport close failed during shutdown")
			}
		}

		b.log.Info().Int("clients", len(clients)).Msg("Stream broadcaster stopped")
	})

	return nil
}

// Register adds a subscriber and greets it with the welcome and
// capabilities messages.
func (b *Broadcaster) Register(transport Transport) (*Client, error) {
	now := time.Now().UTC()
	client := newClient(uuid.NewString(), transport, now)

	// Check, insert, and start the lazy heartbeat under one lock so a
	// concurrent Stop either sees the entry or refuses us, never neither.
	b.mu.Lock()
	if b.baseCtx.Err() != nil {
		b.mu.Unlock()
		return nil, ErrBroadcasterClosed
	}

	b.clients[client.ID] = client

	if !b.heartbeatStarted {
		b.heartbeatStarted = true
		b.wg.Add(1)

		go b.heartbeatLoop()
	}
	b.mu.Unlock()

	welcome := &Message{
		Type: MessageTypeWelcome,
		Data: map[string]interface{}{
			"client_id":      client.ID,
			"topics":         models.KnownTopics(),
			"server_version": b.cfg.ServerVersion,
		},
		Timestamp: now,
	}

	capabilities := &Message{
		Type: MessageTypeCapabilities,
		Data: map[string]interface{}{
			"commands": supportedInbound,
			"topics":   models.KnownTopics(),
		},
		Timestamp: now,
	}

	if err := b.send(b.baseCtx, client, welcome); err != nil {
		b.disconnect(client, "welcome send failed")
		return nil, err
	}

	if err := b.send(b.baseCtx, client, capabilities); err != nil {
		b.disconnect(client, "capabilities send failed")
		return nil, err
	}

	b.log.Info().Str("client_id", client.ID).Int("clients", b.ClientCount()).Msg("Stream client connected")

	return client, nil
}

// Unregister drops a subscriber and closes its transport. Safe to call
// for clients that were already disconnected.
func (b *Broadcaster) Unregister(client *Client) {
	b.disconnect(client, "unregistered")
}

// Publish sends payload to every subscriber of topic. The subscriber
// set is snapshotted up front; each send carries its own timeout and a
// failure only costs that one subscriber, which is disconnected after
// the loop.
func (b *Broadcaster) Publish(topic string, payload interface{}) {
	subscribers := b.subscribers(topic)
	if len(subscribers) == 0 {
		return
	}

	msg := &Message{
		Type:      MessageTypeData,
		Topic:     topic,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}

	var failed []*Client

	for _, c := range subscribers {
		if err := b.send(b.baseCtx, c, msg); err != nil {
			b.log.Warn().Err(err).
				Str("client_id", c.ID).
				Str("topic", topic).
				Msg("Subscriber send failed, disconnecting")

			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		b.disconnect(c, "send failed")
	}
}

// HasSubscribers reports whether any client is subscribed to topic.
func (b *Broadcaster) HasSubscribers(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.clients {
		if c.subscribedTo(topic) {
			return true
		}
	}

	return false
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.clients)
}

func (b *Broadcaster) subscribers(topic string) []*Client {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Client, 0, len(b.clients))

	for _, c := range b.clients {
		if c.subscribedTo(topic) {
			out = append(out, c)
		}
	}

	return out
}

func (b *Broadcaster) snapshotClients() []*Client {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		out = append(out, c)
	}

	return out
}

// send writes one message with the per-send timeout and counts it.
func (b *Broadcaster) send(parent context.Context, c *Client, msg *Message) error {
	ctx, cancel := context.WithTimeout(parent, time.Duration(b.cfg.SendTimeout))
	defer cancel()

	if err := c.transport.Send(ctx, msg); err != nil {
		return err
	}

	c.sent.Add(1)

	return nil
}

// disconnect removes a client from the table and closes its transport.
// Only the caller that actually removes the entry closes the transport,
// so concurrent disconnects cannot double-close.
func (b *Broadcaster) disconnect(client *Client, reason string) {
	if client == nil {
		return
	}

	b.mu.Lock()
	_, existed := b.clients[client.ID]
	delete(b.clients, client.ID)
	b.mu.Unlock()

	if !existed {
		return
	}

	if err := client.transport.Close(); err != nil {
		b.log.Debug().Err(err).Str("client_id", client.ID).Msg("Transport close failed")
	}

	b.log.Info().
		Str("client_id", client.ID).
		Str("reason", reason).
		Int("clients", b.ClientCount()).
		Msg("Stream client disconnected")
}

// heartbeatLoop runs the shared liveness sweep. One iteration never
// stops the loop; only shutdown does.
func (b *Broadcaster) heartbeatLoop() {
	defer b.wg.Done()

	interval := time.Duration(b.cfg.HeartbeatInterval)
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	b.log.Debug().Dur("interval", interval).Msg("Heartbeat monitor started")

	for {
		select {
		case <-b.baseCtx.Done():
			b.log.Debug().Msg("Heartbeat monitor stopped")
			return
		case now := <-ticker.C:
			b.sweepOnce(now.UTC())
		}
	}
}

// sweepOnce force-disconnects clients whose last activity is older than
// staleFactor times the interval, then pings the survivors; ping
// failures queue disconnection after the loop.
func (b *Broadcaster) sweepOnce(now time.Time) {
	cutoff := time.Duration(staleFactor * float64(time.Duration(b.cfg.HeartbeatInterval)))

	var live, failed []*Client

	for _, c := range b.snapshotClients() {
		if now.Sub(c.lastActivity()) > cutoff {
			b.log.Warn().
				Str("client_id", c.ID).
				Time("last_activity", c.lastActivity()).
				Msg("Client missed heartbeats, force-disconnecting")

			b.disconnect(c, "heartbeat timeout")

			continue
		}

		live = append(live, c)
	}

	ping := &Message{Type: MessageTypePing, Timestamp: now}

	for _, c := range live {
		if err := b.send(b.baseCtx, c, ping); err != nil {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		b.disconnect(c, "ping failed")
	}
}

// providerLoop drives one periodic publisher. Collect is skipped
// entirely while the topic has no subscribers.
func (b *Broadcaster) providerLoop(p Provider) {
	defer b.wg.Done()

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	b.log.Debug().Str("topic", p.Topic()).Dur("interval", p.Interval()).Msg("Topic provider started")

	for {
		select {
		case <-b.baseCtx.Done():
			return
		case <-ticker.C:
			if !b.HasSubscribers(p.Topic()) {
				continue
			}

			ctx, cancel := context.WithTimeout(b.baseCtx, p.Interval())
			data, err := p.Collect(ctx)

			cancel()

			if err != nil {
				b.log.Warn().Err(err).Str("topic", p.Topic()).Msg("Topic provider collect failed")
				continue
			}

			b.Publish(p.Topic(), data)
		}
	}
}
