// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
)

type paymentRepo struct{ db *sql.DB }

const paymentSelect = `SELECT id, principal_id, checkout_session_id, payment_intent_id, amount_minor, currency, credits_granted, status, package_id, created_at, completed_at FROM payments`

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO payments (id, principal_id, checkout_session_id, payment_intent_id, amount_minor, currency, credits_granted, status, package_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PrincipalID, p.CheckoutSessionID, p.PaymentIntentID, p.AmountMinor, p.Currency, p.CreditsGranted, p.Status, p.PackageID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: create payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) GetByCheckoutSessionID(ctx context.Context, id string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx, paymentSelect+` WHERE checkout_session_id = ?`, id)
	return scanPayment(row)
}

func (r *paymentRepo) GetByPaymentIntentID(ctx context.Context, id string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx, paymentSelect+` WHERE payment_intent_id = ?`, id)
	return scanPayment(row)
}

func scanPayment(row *sql.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.PrincipalID, &p.CheckoutSessionID, &p.PaymentIntentID, &p.AmountMinor, &p.Currency, &p.CreditsGranted, &p.Status, &p.PackageID, &p.CreatedAt, &p.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan payment: %w", err)
	}
	return &p, nil
}

// MarkCompleted performs the idempotent pending->completed transition.
// alreadyCompleted is true when the row was already completed, matching the
// webhook-replay "already_processed" contract; a row in any other
// non-pending status yields an error.
func (r *paymentRepo) MarkCompleted(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE payments SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		model.PaymentCompleted, time.Now(), id, model.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("sqlite: mark payment completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 1 {
		return false, nil
	}

	row := r.db.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = ?`, id)
	var status model.PaymentStatus
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: payment", apperrors.ErrNotFound)
		}
		return false, fmt.Errorf("sqlite: read payment status: %w", err)
	}
	if status == model.PaymentCompleted {
		return true, nil
	}
	return false, fmt.Errorf("sqlite: cannot complete payment in status %q", status)
}

func (r *paymentRepo) MarkFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payments SET status = ? WHERE id = ? AND status = ?`, model.PaymentFailed, id, model.PaymentPending)
	if err != nil {
		return fmt.Errorf("sqlite: mark payment failed: %w", err)
	}
	// No-op if already non-pending, per §4.7.
	_ = res
	return nil
}
