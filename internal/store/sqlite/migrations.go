// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sqlite is the default embedded relational store, backing every
// repository interface in internal/store. Schema versioning follows the
// PRAGMA user_version pattern: each migration bumps user_version by one
// and runs inside its own transaction.
package sqlite

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS principals (
				id TEXT PRIMARY KEY,
				external_subject TEXT NOT NULL UNIQUE,
				email TEXT NOT NULL DEFAULT '',
				credits INTEGER NOT NULL DEFAULT 0,
				push_token TEXT NOT NULL DEFAULT '',
				preferred_language TEXT NOT NULL DEFAULT 'pt',
				payment_customer_id TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL REFERENCES principals(id),
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				finalized_at TIMESTAMP,
				processed_at TIMESTAMP,
				summary TEXT,
				suggested_title TEXT,
				capture_language TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id)`,
			`CREATE TABLE IF NOT EXISTS blocks (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES sessions(id),
				type TEXT NOT NULL,
				text_content TEXT,
				media_ref TEXT,
				metadata TEXT,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_blocks_session ON blocks(session_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS media_files (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES sessions(id),
				kind TEXT NOT NULL,
				object_key TEXT NOT NULL UNIQUE,
				content_type TEXT NOT NULL,
				size_bytes INTEGER,
				status TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_media_session ON media_files(session_id, kind, status)`,
			`CREATE TABLE IF NOT EXISTS ai_jobs (
				id TEXT PRIMARY KEY,
				principal_id TEXT NOT NULL REFERENCES principals(id),
				session_id TEXT NOT NULL REFERENCES sessions(id),
				type TEXT NOT NULL,
				credits_used INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_session ON ai_jobs(session_id, status)`,
			`CREATE TABLE IF NOT EXISTS embeddings (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES sessions(id),
				block_id TEXT,
				provider TEXT NOT NULL,
				vector BLOB NOT NULL,
				source_text TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_embeddings_session ON embeddings(session_id)`,
			`CREATE TABLE IF NOT EXISTS payments (
				id TEXT PRIMARY KEY,
				principal_id TEXT NOT NULL REFERENCES principals(id),
				checkout_session_id TEXT UNIQUE,
				payment_intent_id TEXT UNIQUE,
				amount_minor INTEGER NOT NULL,
				currency TEXT NOT NULL,
				credits_granted INTEGER NOT NULL,
				status TEXT NOT NULL,
				package_id TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP
			)`,
		},
	},
}

// Migrate brings db up to the latest schema version, applying only the
// migrations newer than the current PRAGMA user_version.
func Migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("sqlite: begin migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("sqlite: migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: set user_version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: commit migration %d: %w", m.version, err)
		}
		current = m.version
	}
	return nil
}
