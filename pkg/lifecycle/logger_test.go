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

package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carverauto/hashradar/pkg/logger"
)

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger(context.Background(), "core-main", &logger.Config{
		Level:  "info",
		Output: "stderr",
	})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestCreateLoggerDefaultsOnNilConfig(t *testing.T) {
	log, err := CreateLogger(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewLoggerImplRejectsBadLevel(t *testing.T) {
	_, err := NewLoggerImpl(context.Background(), &logger.Config{Level: "chatty"})
	require.Error(t, err)
}

func TestDebugFlagOverridesLevel(t *testing.T) {
	impl, err := NewLoggerImpl(context.Background(), &logger.Config{Level: "error", Debug: true})
	require.NoError(t, err)

	// Debug events must be enabled when the debug flag is set.
	require.True(t, impl.Debug().Enabled())
}
