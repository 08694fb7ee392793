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
	"fmt"
	"sort"

	"github.com/carverauto/hashradar/pkg/models"
)

// CreatorFunc builds an adapter for one device.
type CreatorFunc func(address string, port int, deps Deps) (Adapter, error)

// Registry maps device type tags to adapter constructors.
type Registry interface {
	Register(deviceType models.DeviceType, creator CreatorFunc)
	Get(deviceType models.DeviceType, address string, port int, deps Deps) (Adapter, error)
	Types() []models.DeviceType
}

type adapterRegistry struct {
	factories map[models.DeviceType]CreatorFunc
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() Registry {
	return &adapterRegistry{
		factories: make(map[models.DeviceType]CreatorFunc),
	}
}

// DefaultRegistry returns a registry with every built-in adapter registered.
func DefaultRegistry() Registry {
	registry := NewRegistry()

	// AxeOS-style boards with a REST/JSON API.
	registry.Register(models.DeviceTypeBitaxe,
		func(address string, port int, deps Deps) (Adapter, error) {
			return newRESTAdapter(address, port, deps), nil
		})

	// cgminer-compatible units on the TCP line protocol.
	registry.Register(models.DeviceTypeAvalon,
		func(address string, port int, deps Deps) (Adapter, error) {
			return newLineAdapter(address, port, deps), nil
		})

	// Hobby boards that only serve an HTML status page.
	registry.Register(models.DeviceTypeNerdMiner,
		func(address string, port int, deps Deps) (Adapter, error) {
			return newHTMLAdapter(address, port, deps), nil
		})

	return registry
}

func (r *adapterRegistry) Register(deviceType models.DeviceType, creator CreatorFunc) {
	r.factories[deviceType] = creator
}

func (r *adapterRegistry) Get(deviceType models.DeviceType, address string, port int, deps Deps) (Adapter, error) {
	f, ok := r.factories[deviceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDeviceType, deviceType)
	}

	return f(address, port, deps)
}

func (r *adapterRegistry) Types() []models.DeviceType {
	types := make([]models.DeviceType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}
