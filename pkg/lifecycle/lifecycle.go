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

// Package lifecycle provides shared service plumbing: logger construction
// and a run loop that starts a service, waits for shutdown, and tears it
// down within a bounded timeout.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/hashradar/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

var errNilService = errors.New("server options must include a service")

// Service is anything the runner can bring up and tear down. Start must
// not block; long-running work belongs in goroutines it owns.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServerOptions configures RunServer.
type ServerOptions struct {
	// ServiceName tags lifecycle log lines.
	ServiceName string
	// Service is started once signal handling is installed and stopped on
	// the way out.
	Service Service
	// ShutdownTimeout bounds Stop. Zero means 10s.
	ShutdownTimeout time.Duration
	// Logger receives lifecycle events. When nil a default logger is built.
	Logger logger.Logger
}

// RunServer runs a service until the context is cancelled or a SIGINT or
// SIGTERM arrives, then stops it. The stop context survives the shutdown
// signal so cleanup is not cancelled by the very signal that caused it.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if opts == nil || opts.Service == nil {
		return errNilService
	}

	log := opts.Logger
	if log == nil {
		var err error

		log, err = CreateLogger(ctx, nil)
		if err != nil {
			return err
		}
	}

	name := opts.ServiceName
	if name == "" {
		name = "service"
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := opts.Service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	log.Info().Str("service", name).Msg("Service started")

	<-ctx.Done()

	log.Info().Str("service", name).Msg("Shutting down")

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := opts.Service.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop %s: %w", name, err)
	}

	log.Info().Str("service", name).Msg("Service stopped")

	return nil
}
