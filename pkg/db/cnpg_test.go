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

package db

import (
	"errors"
	"testing"
)

func TestBuildConnURL_DefaultsPortAndSSLMode(t *testing.T) {
	t.Parallel()

	u, err := buildConnURL(&Config{
		Host:     "cnpg-rw",
		Database: "hashradar",
	})
	if err != nil {
		t.Fatalf("buildConnURL error: %v", err)
	}

	if got := u.Host; got != "cnpg-rw:5432" {
		t.Fatalf("host=%q, want %q", got, "cnpg-rw:5432")
	}

	if got := u.Query().Get("sslmode"); got != "disable" {
		t.Fatalf("sslmode=%q, want %q", got, "disable")
	}

	if got := u.Path; got != "/hashradar" {
		t.Fatalf("path=%q, want %q", got, "/hashradar")
	}
}

func TestBuildConnURL_KeepsExplicitPortAndSSLMode(t *testing.T) {
	t.Parallel()

	u, err := buildConnURL(&Config{
		Host:     "cnpg-rw",
		Port:     5433,
		Database: "hashradar",
		SSLMode:  "require",
	})
	if err != nil {
		t.Fatalf("buildConnURL error: %v", err)
	}

	if got := u.Host; got != "cnpg-rw:5433" {
		t.Fatalf("host=%q, want %q", got, "cnpg-rw:5433")
	}

	if got := u.Query().Get("sslmode"); got != "require" {
		t.Fatalf("sslmode=%q, want %q", got, "require")
	}
}

func TestBuildConnURL_EncodesCredentialsAndAppName(t *testing.T) {
	t.Parallel()

	u, err := buildConnURL(&Config{
		Host:            "10.10.0.5",
		Database:        "hashradar",
		Username:        "miner",
		Password:        "s3cr@t/",
		ApplicationName: "hashradar-core",
	})
	if err != nil {
		t.Fatalf("buildConnURL error: %v", err)
	}

	if u.User == nil {
		t.Fatal("expected userinfo on URL")
	}

	password, set := u.User.Password()
	if !set || password != "s3cr@t/" {
		t.Fatalf("password=%q set=%v, want original value round-tripped", password, set)
	}

	if got := u.Query().Get("application_name"); got != "hashradar-core" {
		t.Fatalf("application_name=%q, want %q", got, "hashradar-core")
	}
}

func TestBuildConnURL_UsernameWithoutPassword(t *testing.T) {
	t.Parallel()

	u, err := buildConnURL(&Config{
		Host:     "cnpg-rw",
		Database: "hashradar",
		Username: "miner",
	})
	if err != nil {
		t.Fatalf("buildConnURL error: %v", err)
	}

	if u.User == nil || u.User.Username() != "miner" {
		t.Fatalf("userinfo=%v, want username %q", u.User, "miner")
	}

	if _, set := u.User.Password(); set {
		t.Fatal("password should not be set")
	}
}

func TestBuildConnURL_RequiresHostAndDatabase(t *testing.T) {
	t.Parallel()

	if _, err := buildConnURL(&Config{Database: "hashradar"}); !errors.Is(err, ErrMissingHost) {
		t.Fatalf("err=%v, want ErrMissingHost", err)
	}

	if _, err := buildConnURL(&Config{Host: "cnpg-rw"}); !errors.Is(err, ErrMissingDatabase) {
		t.Fatalf("err=%v, want ErrMissingDatabase", err)
	}
}
