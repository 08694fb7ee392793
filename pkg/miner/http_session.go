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
	"net"
	"net/http"
	"time"

	"github.com/carverauto/hashradar/pkg/pool"
)

const (
	sessionIdleConnTimeout = 90 * time.Second
	sessionMaxIdlePerHost  = 2
)

// HTTPSession is the pooled resource behind the REST and HTML adapters: a
// keep-alive http.Client scoped to one device. Closing it only drops idle
// connections, so in-flight requests finish even when the pool evicts it.
type HTTPSession struct {
	client    *http.Client
	transport *http.Transport
}

func (s *HTTPSession) Client() *http.Client { return s.client }

func (s *HTTPSession) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

// NewHTTPSessionFactory returns a pool.Factory producing per-device HTTP
// sessions. Building a session never dials; the first request does.
func NewHTTPSessionFactory(requestTimeout, dialTimeout time.Duration) pool.Factory {
	return func(_ context.Context, _ string) (pool.Conn, error) {
		transport := &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: dialTimeout,
			}).DialContext,
			MaxIdleConnsPerHost: sessionMaxIdlePerHost,
			IdleConnTimeout:     sessionIdleConnTimeout,
		}

		return &HTTPSession{
			client: &http.Client{
				Transport: transport,
				Timeout:   requestTimeout,
			},
			transport: transport,
		}, nil
	}
}

// acquireSession pulls the device's HTTP session from the pool.
func acquireSession(ctx context.Context, p *pool.Manager, address string) (*HTTPSession, func(), error) {
	conn, release, err := p.Acquire(ctx, address)
	if err != nil {
		return nil, nil, err
	}

	sess, ok := conn.(*HTTPSession)
	if !ok {
		release()
		return nil, nil, &ProtocolError{Detail: "pool returned a non-HTTP session"}
	}

	return sess, release, nil
}
