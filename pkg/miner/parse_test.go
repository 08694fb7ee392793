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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHashrate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "kilohash", input: "78.5 KH/s", want: 78500, ok: true},
		{name: "megahash", input: "61.5MH/s", want: 61.5e6, ok: true},
		{name: "gigahash", input: "512.49 GH/s", want: 512.49e9, ok: true},
		{name: "terahash", input: "90.19 TH/s", want: 90.19e12, ok: true},
		{name: "no slash", input: "78.5 KHs", want: 78500, ok: true},
		{name: "lowercase", input: "78.5 kh/s", want: 78500, ok: true},
		{name: "thousands separator", input: "1,234.5 MH/s", want: 1234.5e6, ok: true},
		{name: "bare number is already H/s", input: "78500", want: 78500, ok: true},
		{name: "garbage", input: "n/a", want: 0, ok: false},
		{name: "empty", input: "", want: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseHashrate(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "bare celsius", input: "65.5", want: 65.5, ok: true},
		{name: "celsius unit", input: "65.5 C", want: 65.5, ok: true},
		{name: "celsius degree sign", input: "65.5°C", want: 65.5, ok: true},
		{name: "fahrenheit converts", input: "149 F", want: 65, ok: true},
		{name: "fahrenheit degree sign", input: "149.9°F", want: 65.5, ok: true},
		{name: "unparsable", input: "warm", want: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTemperature(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestParseUptimeSeconds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "full components", input: "1d 2h 3m 4s", want: 93784, ok: true},
		{name: "spelled out", input: "1 day 2 hours 3 minutes 4 seconds", want: 93784, ok: true},
		{name: "compact", input: "2h30m", want: 9000, ok: true},
		{name: "clock hms", input: "2:15:30", want: 8130, ok: true},
		{name: "clock hm", input: "2:15", want: 8100, ok: true},
		{name: "plain seconds", input: "95", want: 95, ok: true},
		{name: "suffixed seconds", input: "95s", want: 95, ok: true},
		{name: "days only", input: "3 days", want: 259200, ok: true},
		{name: "empty", input: "", want: 0, ok: false},
		{name: "garbage", input: "forever", want: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseUptimeSeconds(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "giga suffix", input: "4.29G", want: 4.29e9, ok: true},
		{name: "mega suffix", input: "110M", want: 110e6, ok: true},
		{name: "kilo lowercase", input: "3.2k", want: 3200, ok: true},
		{name: "bare number", input: "123456", want: 123456, ok: true},
		{name: "spaced suffix", input: "4.29 G", want: 4.29e9, ok: true},
		{name: "trailing text rejected", input: "4.29 GH/s", want: 0, ok: false},
		{name: "empty", input: "", want: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDifficulty(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestParseNumberAndPercent(t *testing.T) {
	v, ok := parseNumber("15.2 W")
	assert.True(t, ok)
	assert.InDelta(t, 15.2, v, 1e-9)

	v, ok = parseNumber("1,234 shares")
	assert.True(t, ok)
	assert.InDelta(t, 1234, v, 1e-9)

	v, ok = parsePercent("80%")
	assert.True(t, ok)
	assert.InDelta(t, 80, v, 1e-9)

	_, ok = parseNumber("none")
	assert.False(t, ok)
}
