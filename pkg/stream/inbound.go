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
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/hashradar/pkg/models"
)

// HandleInbound processes one raw frame from a client. Protocol errors
// are answered on the client's own transport, never propagated; the
// read loop only cares about transport-level failures.
func (b *Broadcaster) HandleInbound(ctx context.Context, client *Client, raw []byte) {
	now := time.Now().UTC()

	// Any traffic is proof of life, not just pongs.
	client.noteActivity(now)

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		b.sendError(ctx, client, "invalid JSON message")
		return
	}

	switch msg.Type {
	case inboundSubscribe:
		b.handleSubscribe(ctx, client, &msg, now)
	case inboundUnsubscribe:
		b.handleUnsubscribe(ctx, client, &msg, now)
	case inboundPing:
		b.handlePing(ctx, client, &msg, now)
	case inboundPong:
		// Activity already recorded above.
	case inboundGetStatus:
		b.reply(ctx, client, &Message{
			Type:      MessageTypeStatus,
			Data:      client.statusData(now),
			Timestamp: now,
		})
	case inboundGetTopics:
		b.reply(ctx, client, &Message{
			Type:      MessageTypeTopics,
			Data:      map[string]interface{}{"topics": models.KnownTopics()},
			Timestamp: now,
		})
	default:
		b.sendError(ctx, client, fmt.Sprintf("unknown message type %q (supported: %s)",
			msg.Type, strings.Join(supportedInbound, ", ")))
	}
}

func (b *Broadcaster) handleSubscribe(ctx context.Context, client *Client, msg *inboundMessage, now time.Time) {
	topics := msg.topicSet()
	if len(topics) == 0 {
		b.sendError(ctx, client, "subscribe requires at least one topic")
		return
	}

	client.subscribe(topics)

	b.log.Debug().
		Str("client_id", client.ID).
		Strs("topics", topics).
		Msg("Client subscribed")

	b.reply(ctx, client, &Message{
		Type:      MessageTypeSubscribed,
		Data:      map[string]interface{}{"topics": topics},
		Timestamp: now,
	})
}

func (b *Broadcaster) handleUnsubscribe(ctx context.Context, client *Client, msg *inboundMessage, now time.Time) {
	topics := msg.topicSet()
	if len(topics) == 0 {
		b.sendError(ctx, client, "unsubscribe requires at least one topic")
		return
	}

	client.unsubscribe(topics)

	b.reply(ctx, client, &Message{
		Type:      MessageTypeUnsubscribed,
		Data:      map[string]interface{}{"topics": topics},
		Timestamp: now,
	})
}

// handlePing answers with a pong echoing the ping payload; when the
// client asked for stats, the per-client status rides along.
func (b *Broadcaster) handlePing(ctx context.Context, client *Client, msg *inboundMessage, now time.Time) {
	data := msg.Data

	if msg.Stats {
		data = map[string]interface{}{
			"echo":  msg.Data,
			"stats": client.statusData(now),
		}
	}

	b.reply(ctx, client, &Message{
		Type:      MessageTypePong,
		Data:      data,
		Timestamp: now,
	})
}

func (b *Broadcaster) reply(ctx context.Context, client *Client, msg *Message) {
	if err := b.send(ctx, client, msg); err != nil {
		b.log.Warn().Err(err).
			Str("client_id", client.ID).
			Str("type", msg.Type).
			Msg("Reply send failed, disconnecting")

		b.disconnect(client, "reply send failed")
	}
}

func (b *Broadcaster) sendError(ctx context.Context, client *Client, detail string) {
	b.reply(ctx, client, &Message{
		Type:      MessageTypeError,
		Error:     detail,
		Timestamp: time.Now().UTC(),
	})
}
