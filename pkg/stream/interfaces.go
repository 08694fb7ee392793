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
	"time"
)

// Transport is the write side of one subscriber connection. The HTTP
// layer wraps a WebSocket in it; tests use in-memory fakes.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	Close() error
}

// Provider feeds one topic on a fixed cadence. Collect is only invoked
// while the topic has at least one subscriber.
type Provider interface {
	Topic() string
	Interval() time.Duration
	Collect(ctx context.Context) (interface{}, error)
}
