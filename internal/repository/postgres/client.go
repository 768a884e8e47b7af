package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"admin-service/internal/config"
	"admin-service/internal/util"
)

type PostgresClient struct {
	Pool   *pgxpool.Pool
	config *config.DatabaseConfig
}

func NewPostgresClient(cfg *config.Config) (*PostgresClient, error) {
	dbConfig := cfg.Database

	poolConfig, err := pgxpool.ParseConfig(dbConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(dbConfig.MaxConns)
	poolConfig.MinConns = int32(dbConfig.MinConns)
	poolConfig.MaxConnLifetime = dbConfig.ConnMaxLifetime

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	util.Info("Postgres client initialized",
		util.Int("max_conns", dbConfig.MaxConns),
	)

	return &PostgresClient{
		Pool:   pool,
		config: &dbConfig,
	}, nil
}

// EnsureSchema creates the credential store tables when missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS admin_accounts (
			id                  BIGSERIAL PRIMARY KEY,
			username            TEXT NOT NULL UNIQUE,
			password_hash       TEXT NOT NULL,
			status              TEXT NOT NULL DEFAULT 'active',
			full_name           TEXT NOT NULL DEFAULT '',
			email               TEXT NOT NULL DEFAULT '',
			phone_country_code  TEXT NOT NULL DEFAULT '',
			phone_number        TEXT NOT NULL DEFAULT '',
			language            TEXT NOT NULL DEFAULT '',
			timezone            TEXT NOT NULL DEFAULT '',
			require_2fa         BOOLEAN NOT NULL DEFAULT FALSE,
			require_2fa_phone   BOOLEAN NOT NULL DEFAULT FALSE,
			secondary_auth_hash TEXT NOT NULL DEFAULT '',
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS security_questions (
			id           BIGSERIAL PRIMARY KEY,
			subject_type TEXT NOT NULL,
			subject_id   BIGINT NOT NULL,
			question     TEXT NOT NULL,
			answer_hash  TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS security_questions_subject_idx
			ON security_questions (subject_type, subject_id)`,
		`CREATE TABLE IF NOT EXISTS keypairs (
			subject_type       TEXT NOT NULL,
			subject_id         BIGINT NOT NULL,
			public_key_pem     TEXT NOT NULL,
			private_key_sealed BYTEA NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (subject_type, subject_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := c.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// HealthCheck verifies database connectivity
func (c *PostgresClient) HealthCheck(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

func (c *PostgresClient) Close() {
	if c.Pool != nil {
		c.Pool.Close()
		util.Info("Postgres client closed")
	}
}
