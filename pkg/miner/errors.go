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
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	// ErrUnknownDeviceType is returned when no adapter is registered for a
	// requested device type.
	ErrUnknownDeviceType = errors.New("unknown device type")
	// ErrNotSupported marks a capability a device's protocol cannot perform.
	ErrNotSupported = errors.New("operation not supported by device")
)

// ConnectionError reports that a device could not be reached or dropped the
// connection mid-operation.
type ConnectionError struct {
	Host string
	Port int
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports that a device did not answer within the deadline.
type TimeoutError struct {
	Host string
	Port int
	Op   string
	Err  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s:%d: timed out: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ProtocolError reports that a device answered, but not in the expected
// protocol shape. Detection treats it as a signature mismatch.
type ProtocolError struct {
	Host   string
	Port   int
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error from %s:%d: %s: %v", e.Host, e.Port, e.Detail, e.Err)
	}

	return fmt.Sprintf("protocol error from %s:%d: %s", e.Host, e.Port, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError reports a rejected caller-supplied value.
type ValidationError struct {
	Field  string
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
	}

	return fmt.Sprintf("validation failed: %s", e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsConnectionError reports whether any error in the chain is a
// *ConnectionError or *TimeoutError, the signals the orchestrator maps to an
// offline device.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return true
	}

	var te *TimeoutError

	return errors.As(err, &te)
}

// isTimeout reports whether err looks like a deadline expiry at any layer.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// wrapDialError converts a transport-level failure into the adapter error
// taxonomy, preserving errors already typed.
func wrapDialError(host string, port int, op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		ce *ConnectionError
		te *TimeoutError
		pe *ProtocolError
		ve *ValidationError
	)

	if errors.As(err, &ce) || errors.As(err, &te) || errors.As(err, &pe) || errors.As(err, &ve) {
		return err
	}

	// Caller cancellation is not a device failure.
	if errors.Is(err, context.Canceled) {
		return err
	}

	if isTimeout(err) {
		return &TimeoutError{Host: host, Port: port, Op: op, Err: err}
	}

	return &ConnectionError{Host: host, Port: port, Op: op, Err: err}
}
