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
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/hashradar/pkg/logger"
	"github.com/carverauto/hashradar/pkg/models"
)

const defaultPostgresPort = 5432

// Config describes the PostgreSQL cluster behind the store.
type Config struct {
	Host              string          `json:"host"`
	Port              int             `json:"port"`
	Database          string          `json:"database"`
	Username          string          `json:"username"`
	Password          string          `json:"password"`
	SSLMode           string          `json:"ssl_mode,omitempty"`
	ApplicationName   string          `json:"application_name,omitempty"`
	MaxConns          int32           `json:"max_conns,omitempty"`
	MinConns          int32           `json:"min_conns,omitempty"`
	MaxConnLifetime   models.Duration `json:"max_conn_lifetime,omitempty"`
	HealthCheckPeriod models.Duration `json:"health_check_period,omitempty"`
}

// DB implements Store on a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

var _ Store = (*DB)(nil)

// New dials the configured cluster, ensures the schema exists, and
// returns the store.
func New(ctx context.Context, cfg *Config, log logger.Logger) (*DB, error) {
	connURL, err := buildConnURL(cfg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("db: failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime)
	}

	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(cfg.HealthCheckPeriod)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("db: failed to initialize pool: %w", err)
	}

	db := &DB{pool: pool, log: log}

	if err := db.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to device store")

	return db, nil
}

// buildConnURL assembles the postgres:// URL for a config, applying the
// port and sslmode defaults.
func buildConnURL(cfg *Config) (url.URL, error) {
	if cfg.Host == "" {
		return url.URL{}, ErrMissingHost
	}

	if cfg.Database == "" {
		return url.URL{}, ErrMissingDatabase
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	if cfg.ApplicationName != "" {
		query.Set("application_name", cfg.ApplicationName)
	}

	connURL.RawQuery = query.Encode()

	return connURL, nil
}

// Close releases the underlying pool. Safe to call more than once.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}
