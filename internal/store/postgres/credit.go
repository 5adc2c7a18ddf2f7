// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type creditRepo struct{ pool *pgxpool.Pool }

func (r *creditRepo) Balance(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT credits FROM principals WHERE id = $1`, ownerID).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: read balance: %w", err)
	}
	return n, nil
}

// HasAtLeast is advisory only; it is NOT sufficient on its own before a
// debit (TOCTOU) — callers must still call Debit and handle false.
func (r *creditRepo) HasAtLeast(ctx context.Context, ownerID string, n int) (bool, error) {
	balance, err := r.Balance(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return balance >= n, nil
}

// Debit is the single atomic conditional update serializing concurrent
// finalize attempts: `credits = credits - n WHERE id = $1 AND credits >= n`.
func (r *creditRepo) Debit(ctx context.Context, ownerID string, n int) (bool, error) {
	if n < 0 {
		return false, fmt.Errorf("postgres: debit: n must be >= 0, got %d", n)
	}
	if n == 0 {
		return true, nil
	}

	tag, err := r.pool.Exec(ctx, `UPDATE principals SET credits = credits - $1 WHERE id = $2 AND credits >= $1`, n, ownerID)
	if err != nil {
		return false, fmt.Errorf("postgres: debit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Credit is an unconditional `credits = credits + n`; n must be > 0.
func (r *creditRepo) Credit(ctx context.Context, ownerID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("postgres: credit: n must be > 0, got %d", n)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE principals SET credits = credits + $1 WHERE id = $2`, n, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: credit: unknown principal %q", ownerID)
	}
	return nil
}
