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

package devices

import "errors"

var (
	ErrDeviceExists         = errors.New("device already managed")
	ErrDeviceNotFound       = errors.New("device not found")
	ErrInvalidInterval      = errors.New("polling interval must be at least 1s")
	ErrInvalidUpdate        = errors.New("invalid device update")
	ErrDiscoveryInProgress  = errors.New("discovery scan already running")
	ErrDiscoveryUnavailable = errors.New("discovery is not configured")
)
