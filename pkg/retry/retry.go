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

// Package retry runs operations under a bounded exponential backoff policy
// with retryable/fatal error classification.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/carverauto/hashradar/pkg/models"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
	defaultMultiplier  = 2.0

	// randomizationFactor bounds the jitter applied to each computed delay.
	// With multiplier >= 2 the jittered schedule stays non-decreasing until
	// delays hit MaxDelay.
	randomizationFactor = 0.25
)

var (
	errInvalidMaxAttempts = errors.New("retry: max_attempts must be at least 1")
	errInvalidBaseDelay   = errors.New("retry: base_delay must be positive")
	errInvalidMaxDelay    = errors.New("retry: max_delay must be >= base_delay")
	errInvalidMultiplier  = errors.New("retry: multiplier must be >= 1")
)

// Classification says whether a failed attempt is worth repeating.
type Classification int

const (
	// Retryable errors are transient; the operation is attempted again
	// after a backoff delay.
	Retryable Classification = iota
	// Fatal errors abort immediately; no further attempts are made.
	Fatal
)

// Classifier maps an operation error to a Classification. A nil Classifier
// treats every error as Retryable.
type Classifier func(error) Classification

// Config controls the backoff schedule. Delays grow as
// BaseDelay * Multiplier^(attempt-1), clamped to MaxDelay, with bounded
// random jitter when Jitter is set. The jitter is a documented randomization
// of the computed delay, not an exact additive term.
type Config struct {
	MaxAttempts int             `json:"max_attempts"`
	BaseDelay   models.Duration `json:"base_delay"`
	MaxDelay    models.Duration `json:"max_delay"`
	Multiplier  float64         `json:"multiplier"`
	Jitter      bool            `json:"jitter"`
}

// DefaultConfig returns the policy used when a component does not configure
// its own: 3 attempts, 500ms base, 5s cap, doubling, jitter on.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   models.Duration(defaultBaseDelay),
		MaxDelay:    models.Duration(defaultMaxDelay),
		Multiplier:  defaultMultiplier,
		Jitter:      true,
	}
}

func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errInvalidMaxAttempts
	}

	if c.BaseDelay <= 0 {
		return errInvalidBaseDelay
	}

	if c.MaxDelay < c.BaseDelay {
		return errInvalidMaxDelay
	}

	if c.Multiplier < 1 {
		return errInvalidMultiplier
	}

	return nil
}

// ExhaustedError wraps the last error once every attempt has been used.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs op under the policy in cfg. Fatal errors are returned exactly as op
// produced them; exhaustion returns an *ExhaustedError wrapping the last
// error; cancellation surfaces the context error. A nil cfg uses
// DefaultConfig.
func Do(ctx context.Context, cfg *Config, classify Classifier, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, cfg, classify, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})

	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, cfg *Config, classify Classifier, op func(ctx context.Context) (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(cfg.BaseDelay)
	bo.MaxInterval = time.Duration(cfg.MaxDelay)
	bo.Multiplier = cfg.Multiplier
	bo.RandomizationFactor = 0

	if cfg.Jitter {
		bo.RandomizationFactor = randomizationFactor
	}

	var (
		attempts int
		fatal    bool
	)

	operation := func() (T, error) {
		attempts++

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		if classify != nil && classify(err) == Fatal {
			fatal = true
			return v, backoff.Permanent(err)
		}

		return v, err
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return v, nil
	}

	// MaxTries can trip before Retry unwraps a Permanent error; normalize so
	// fatal errors always come back exactly as the operation returned them.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}

	if fatal || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return v, err
	}

	return v, &ExhaustedError{Attempts: attempts, Err: err}
}
