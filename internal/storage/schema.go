package storage

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq        BIGSERIAL PRIMARY KEY,
		id         UUID NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		content    TEXT NOT NULL,
		sender     TEXT NOT NULL,
		is_user    BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages (user_id, created_at DESC, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS credential_records (
		user_id         TEXT PRIMARY KEY,
		active_provider TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS provider_configs (
		user_id           TEXT NOT NULL REFERENCES credential_records (user_id),
		provider          TEXT NOT NULL,
		encrypted_api_key TEXT NOT NULL,
		model             TEXT NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, provider)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		content    TEXT NOT NULL,
		sender     TEXT NOT NULL,
		is_user    BOOLEAN NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages (user_id, created_at DESC, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS credential_records (
		user_id         TEXT PRIMARY KEY,
		active_provider TEXT NOT NULL,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS provider_configs (
		user_id           TEXT NOT NULL REFERENCES credential_records (user_id),
		provider          TEXT NOT NULL,
		encrypted_api_key TEXT NOT NULL,
		model             TEXT NOT NULL,
		updated_at        DATETIME NOT NULL,
		PRIMARY KEY (user_id, provider)
	)`,
}

// Migrate creates the tables and indexes for the connected dialect. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if db.driver == DriverSQLite {
		stmts = sqliteSchema
	}

	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
