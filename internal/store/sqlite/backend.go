// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/ManuGH/sessionforge/internal/persistence/sqlite"
	"github.com/ManuGH/sessionforge/internal/store"
)

// Backend implements store.Backend over a single *sql.DB.
type Backend struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and migrates
// it to the latest schema. An existing file-backed database is run through
// a quick integrity check first, failing startup on corruption rather than
// surfacing it as scattered query errors later.
func Open(path string) (*Backend, error) {
	if path != ":memory:" {
		if _, statErr := os.Stat(path); statErr == nil {
			problems, err := sqlite.VerifyIntegrity(path, "quick")
			if err != nil {
				return nil, fmt.Errorf("sqlite: integrity check: %w", err)
			}
			if len(problems) > 0 {
				return nil, fmt.Errorf("sqlite: database at %q failed integrity check: %s", path, strings.Join(problems, "; "))
			}
		}
	}

	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Principals() store.Principals { return &principalRepo{db: b.db} }
func (b *Backend) Sessions() store.Sessions     { return &sessionRepo{db: b.db} }
func (b *Backend) Media() store.Media           { return &mediaRepo{db: b.db} }
func (b *Backend) Jobs() store.Jobs             { return &jobRepo{db: b.db} }
func (b *Backend) Embeddings() store.Embeddings { return &embeddingRepo{db: b.db} }
func (b *Backend) Payments() store.Payments     { return &paymentRepo{db: b.db} }
func (b *Backend) Credits() store.CreditLedger  { return &creditRepo{db: b.db} }

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

// DB exposes the underlying *sql.DB for backends that need raw access, such
// as the sqlite vector index's brute-force scan.
func (b *Backend) DB() *sql.DB { return b.db }
