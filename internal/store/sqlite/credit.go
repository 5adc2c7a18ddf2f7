// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

type creditRepo struct{ db *sql.DB }

func (r *creditRepo) Balance(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT credits FROM principals WHERE id = ?`, ownerID).Scan(&n)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("sqlite: read balance: %w", err)
	}
	return n, nil
}

// HasAtLeast is an advisory read only; it is NOT sufficient on its own
// before a debit (TOCTOU) — callers must still call Debit and handle false.
func (r *creditRepo) HasAtLeast(ctx context.Context, ownerID string, n int) (bool, error) {
	balance, err := r.Balance(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return balance >= n, nil
}

// Debit is the single atomic conditional update serializing concurrent
// finalize attempts: `credits = credits - n WHERE id = ? AND credits >= n`.
// n == 0 is a no-op success; the balance is never driven negative.
func (r *creditRepo) Debit(ctx context.Context, ownerID string, n int) (bool, error) {
	if n < 0 {
		return false, fmt.Errorf("sqlite: debit: n must be >= 0, got %d", n)
	}
	if n == 0 {
		return true, nil
	}

	res, err := r.db.ExecContext(ctx, `UPDATE principals SET credits = credits - ? WHERE id = ? AND credits >= ?`, n, ownerID, n)
	if err != nil {
		return false, fmt.Errorf("sqlite: debit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: debit rows affected: %w", err)
	}
	return affected == 1, nil
}

// Credit is an unconditional `credits = credits + n`; n must be > 0.
func (r *creditRepo) Credit(ctx context.Context, ownerID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("sqlite: credit: n must be > 0, got %d", n)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE principals SET credits = credits + ? WHERE id = ?`, n, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: credit: %w", err)
	}
	if n2, err := res.RowsAffected(); err == nil && n2 == 0 {
		return fmt.Errorf("sqlite: credit: unknown principal %q", ownerID)
	}
	return nil
}
