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
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
	// unit token immediately following a number, e.g. "78.5 KH/s".
	hashrateRe = regexp.MustCompile(`(?i)(-?\d[\d,]*(?:\.\d+)?)\s*([kmgtp]?)h/?s`)
	// duration components, longest unit spellings first so "days" wins over "d".
	uptimeTokenRe = regexp.MustCompile(`(?i)(\d+)\s*(days?|hours?|hrs?|min(?:utes?)?|sec(?:onds?)?|[dhms])`)
	clockRe       = regexp.MustCompile(`^(\d+):(\d{2})(?::(\d{2}))?$`)
	// share difficulty with a bare magnitude suffix, e.g. "4.29G".
	difficultyRe = regexp.MustCompile(`(?i)^(-?\d[\d,]*(?:\.\d+)?)\s*([kmgtp]?)$`)
)

var hashrateMultipliers = map[string]float64{
	"":  1,
	"k": 1e3,
	"m": 1e6,
	"g": 1e9,
	"t": 1e12,
	"p": 1e15,
}

// parseNumber extracts the first numeric token from s, tolerating thousands
// separators and trailing units.
func parseNumber(s string) (float64, bool) {
	match := numberRe.FindString(s)
	if match == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// parseHashrate normalizes a labeled hashrate value to H/s. Values without a
// recognizable unit are taken as already being H/s.
func parseHashrate(s string) (float64, bool) {
	if m := hashrateRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return 0, false
		}

		return v * hashrateMultipliers[strings.ToLower(m[2])], true
	}

	return parseNumber(s)
}

// parseTemperature normalizes to degrees Celsius; Fahrenheit values are
// converted when the unit marker says so.
func parseTemperature(s string) (float64, bool) {
	v, ok := parseNumber(s)
	if !ok {
		return 0, false
	}

	trimmed := strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(trimmed, "f") || strings.HasSuffix(trimmed, "°f") {
		v = (v - 32) * 5 / 9
	}

	return v, true
}

// parsePercent strips a percent sign and returns the bare number.
func parsePercent(s string) (float64, bool) {
	return parseNumber(s)
}

// parseDifficulty expands magnitude-suffixed difficulty strings.
func parseDifficulty(s string) (float64, bool) {
	m := difficultyRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}

	return v * hashrateMultipliers[strings.ToLower(m[2])], true
}

// parseUptimeSeconds normalizes the uptime formats these boards print:
// component strings ("1d 2h 3m 4s"), clock strings ("2:15:30" as h:mm:ss,
// "2:15" as h:mm), and bare second counts.
func parseUptimeSeconds(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}

	if m := clockRe.FindStringSubmatch(trimmed); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])

		seconds := 0
		if m[3] != "" {
			seconds, _ = strconv.Atoi(m[3])
		}

		return float64(hours*3600 + minutes*60 + seconds), true
	}

	tokens := uptimeTokenRe.FindAllStringSubmatch(trimmed, -1)
	if len(tokens) == 0 {
		// Plain number means seconds.
		return parseNumber(trimmed)
	}

	total := 0.0

	for _, tok := range tokens {
		v, _ := strconv.Atoi(tok[1])

		switch strings.ToLower(tok[2])[:1] {
		case "d":
			total += float64(v) * 86400
		case "h":
			total += float64(v) * 3600
		case "m":
			total += float64(v) * 60
		case "s":
			total += float64(v)
		}
	}

	return total, true
}
