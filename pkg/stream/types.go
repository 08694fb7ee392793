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

package stream

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Outbound message types.
const (
	MessageTypeWelcome      = "welcome"
	MessageTypeCapabilities = "capabilities"
	MessageTypeData         = "data"
	MessageTypeError        = "error"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypeStatus       = "status"
	MessageTypeTopics       = "topics"
)

// Inbound message types clients may send.
const (
	inboundSubscribe   = "subscribe"
	inboundUnsubscribe = "unsubscribe"
	inboundPing        = "ping"
	inboundPong        = "pong"
	inboundGetStatus   = "get_status"
	inboundGetTopics   = "get_topics"
)

// supportedInbound is the set named in the unknown-type error and in the
// capabilities message.
var supportedInbound = []string{ //nolint:gochecknoglobals // fixed protocol surface
	inboundSubscribe,
	inboundUnsubscribe,
	inboundPing,
	inboundPong,
	inboundGetStatus,
	inboundGetTopics,
}

// Message is one frame sent to a subscriber.
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// inboundMessage is the envelope clients send. Topics carries the
// subscribe/unsubscribe target set; a bare Topic is accepted too.
type inboundMessage struct {
	Type   string      `json:"type"`
	Topic  string      `json:"topic,omitempty"`
	Topics []string    `json:"topics,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Stats  bool        `json:"stats,omitempty"`
}

func (m *inboundMessage) topicSet() []string {
	topics := m.Topics
	if m.Topic != "" {
		topics = append(topics, m.Topic)
	}

	return topics
}

// Client is one registered subscriber.
type Client struct {
	ID        string
	transport Transport

	mu            sync.RWMutex
	subscriptions map[string]struct{}
	lastAck       time.Time

	connectedAt time.Time
	sent        atomic.Uint64
}

func newClient(id string, transport Transport, now time.Time) *Client {
	return &Client{
		ID:            id,
		transport:     transport,
		subscriptions: make(map[string]struct{}),
		lastAck:       now,
		connectedAt:   now,
	}
}

func (c *Client) subscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range topics {
		c.subscriptions[t] = struct{}{}
	}
}

func (c *Client) unsubscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range topics {
		delete(c.subscriptions, t)
	}
}

func (c *Client) subscribedTo(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.subscriptions[topic]

	return ok
}

// Topics returns the client's subscription set, sorted.
func (c *Client) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		out = append(out, t)
	}

	sort.Strings(out)

	return out
}

// noteActivity records proof of life. Any inbound traffic counts, not
// just protocol pongs.
func (c *Client) noteActivity(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastAck = now
}

func (c *Client) lastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastAck
}

// statusData is the payload for get_status and for stats-bearing pongs.
func (c *Client) statusData(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"client_id":      c.ID,
		"subscriptions":  c.Topics(),
		"connected_at":   c.connectedAt,
		"uptime_seconds": now.Sub(c.connectedAt).Seconds(),
		"messages_sent":  c.sent.Load(),
	}
}
