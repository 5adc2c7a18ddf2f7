// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver, used only for goose migrations
)

// Backend implements store.Backend over a pgx connection pool. Migrations
// run once at Open time through a short-lived database/sql.DB (goose's
// only supported handle type); all runtime queries go through pgxpool.
type Backend struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, runs pending migrations, and returns a ready Backend.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	if err := migrateDSN(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Backend{pool: pool}, nil
}

func migrateDSN(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("postgres: open migration handle: %w", err)
	}
	defer db.Close()
	return migrate(db)
}

func (b *Backend) Principals() store.Principals { return &principalRepo{pool: b.pool} }
func (b *Backend) Sessions() store.Sessions     { return &sessionRepo{pool: b.pool} }
func (b *Backend) Media() store.Media           { return &mediaRepo{pool: b.pool} }
func (b *Backend) Jobs() store.Jobs             { return &jobRepo{pool: b.pool} }
func (b *Backend) Embeddings() store.Embeddings { return &embeddingRepo{pool: b.pool} }
func (b *Backend) Payments() store.Payments     { return &paymentRepo{pool: b.pool} }
func (b *Backend) Credits() store.CreditLedger  { return &creditRepo{pool: b.pool} }

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func (b *Backend) Ping(ctx context.Context) error { return b.pool.Ping(ctx) }

// Pool exposes the underlying pool for components that need raw access,
// such as the pgvector-backed vectorindex.PostgresIndex.
func (b *Backend) Pool() *pgxpool.Pool { return b.pool }
