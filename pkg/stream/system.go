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

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/carverauto/hashradar/pkg/models"
)

const defaultSystemInterval = 10 * time.Second

// SystemProvider publishes CPU, memory, and load figures for the host
// running the orchestrator on the system topic. The collector functions
// are fields so tests can swap them out.
type SystemProvider struct {
	interval time.Duration

	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	loadAvg       func(ctx context.Context) (*load.AvgStat, error)
}

// NewSystemProvider builds the host telemetry provider. A non-positive
// interval falls back to the default.
func NewSystemProvider(interval time.Duration) *SystemProvider {
	if interval <= 0 {
		interval = defaultSystemInterval
	}

	return &SystemProvider{
		interval:      interval,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		loadAvg:       load.AvgWithContext,
	}
}

func (p *SystemProvider) Topic() string { return models.TopicSystem }

func (p *SystemProvider) Interval() time.Duration { return p.interval }

// Collect gathers one host snapshot. CPU usage is required; memory and
// load are best-effort and simply absent when their collectors fail.
func (p *SystemProvider) Collect(ctx context.Context) (interface{}, error) {
	// Zero interval compares against the previous call instead of
	// blocking for a sample window.
	usage, err := p.cpuPercent(ctx, 0, false)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"collected_at": time.Now().UTC(),
	}

	if len(usage) > 0 {
		out["cpu_percent"] = usage[0]
	}

	if vm, err := p.virtualMemory(ctx); err == nil {
		out["memory_total_bytes"] = vm.Total
		out["memory_used_bytes"] = vm.Used
		out["memory_used_percent"] = vm.UsedPercent
	}

	if avg, err := p.loadAvg(ctx); err == nil {
		out["load_1"] = avg.Load1
		out["load_5"] = avg.Load5
		out["load_15"] = avg.Load15
	}

	return out, nil
}
