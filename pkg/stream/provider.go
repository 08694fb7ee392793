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

// FuncProvider adapts a plain collect function into a Provider. The
// core server uses it to publish device-table snapshots without the
// broadcaster knowing about the orchestrator.
type FuncProvider struct {
	topic    string
	interval time.Duration
	collect  func(ctx context.Context) (interface{}, error)
}

// NewFuncProvider builds a Provider from a topic, a cadence, and a
// collect function.
func NewFuncProvider(topic string, interval time.Duration, collect func(ctx context.Context) (interface{}, error)) *FuncProvider {
	return &FuncProvider{topic: topic, interval: interval, collect: collect}
}

func (p *FuncProvider) Topic() string { return p.topic }

func (p *FuncProvider) Interval() time.Duration { return p.interval }

func (p *FuncProvider) Collect(ctx context.Context) (interface{}, error) {
	return p.collect(ctx)
}
