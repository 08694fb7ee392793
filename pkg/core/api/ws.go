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

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/hashradar/pkg/stream"
)

const (
	wsReadBufferSize   = 1024
	wsWriteBufferSize  = 1024
	wsMaxMessageSize   = 4096
	wsDefaultWriteWait = 10 * time.Second
	wsCloseGraceWait   = time.Second
)

// handleWebSocket upgrades the connection and registers it with the
// broadcaster. The read loop runs here; everything outbound goes through
// the broadcaster.
func (s *APIServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		writeError(w, "Streaming not configured", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return s.checkWebSocketOrigin(r)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	conn.SetReadLimit(wsMaxMessageSize)

	transport := newWSTransport(conn)

	client, err := s.broadcaster.Register(transport)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket registration refused")

		_ = transport.Close()

		return
	}

	s.logger.Info().
		Str("remote_addr", r.RemoteAddr).
		Str("client_id", client.ID).
		Msg("WebSocket connection established")

	defer s.broadcaster.Unregister(client)

	// Liveness is the broadcaster's job: its heartbeat sweep closes the
	// transport when a client goes silent, which unblocks ReadMessage here.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("WebSocket read error")
			}

			return
		}

		s.broadcaster.HandleInbound(r.Context(), client, raw)
	}
}

// checkWebSocketOrigin applies the CORS allowlist to the upgrade request.
func (s *APIServer) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Non-browser clients send no Origin header; allow them.
	if origin == "" {
		return true
	}

	for _, allowed := range s.corsConfig.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	s.logger.Warn().
		Str("origin", origin).
		Interface("allowed_origins", s.corsConfig.AllowedOrigins).
		Msg("WebSocket origin not allowed")

	return false
}

// wsTransport adapts a gorilla connection to stream.Transport. Gorilla
// allows one concurrent writer, so every send holds the mutex.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

// Send writes one frame, honoring the context deadline as the write
// deadline.
func (t *wsTransport) Send(ctx context.Context, msg *stream.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := time.Now().Add(wsDefaultWriteWait)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return t.conn.WriteJSON(msg)
}

// Close sends a close frame best-effort and tears down the connection.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := time.Now().Add(wsCloseGraceWait)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return t.conn.Close()
}
