// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type paymentRepo struct{ pool *pgxpool.Pool }

const paymentSelect = `SELECT id, principal_id, checkout_session_id, payment_intent_id, amount_minor, currency, credits_granted, status, package_id, created_at, completed_at FROM payments`

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payments (id, principal_id, checkout_session_id, payment_intent_id, amount_minor, currency, credits_granted, status, package_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.PrincipalID, p.CheckoutSessionID, p.PaymentIntentID, p.AmountMinor, p.Currency, p.CreditsGranted, p.Status, p.PackageID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) GetByCheckoutSessionID(ctx context.Context, id string) (*model.Payment, error) {
	row := r.pool.QueryRow(ctx, paymentSelect+` WHERE checkout_session_id = $1`, id)
	return scanPayment(row)
}

func (r *paymentRepo) GetByPaymentIntentID(ctx context.Context, id string) (*model.Payment, error) {
	row := r.pool.QueryRow(ctx, paymentSelect+` WHERE payment_intent_id = $1`, id)
	return scanPayment(row)
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.PrincipalID, &p.CheckoutSessionID, &p.PaymentIntentID, &p.AmountMinor, &p.Currency, &p.CreditsGranted, &p.Status, &p.PackageID, &p.CreatedAt, &p.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan payment: %w", err)
	}
	return &p, nil
}

func (r *paymentRepo) MarkCompleted(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE payments SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`,
		model.PaymentCompleted, time.Now(), id, model.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("postgres: mark payment completed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return false, nil
	}

	row := r.pool.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1`, id)
	var status model.PaymentStatus
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%w: payment", apperrors.ErrNotFound)
		}
		return false, fmt.Errorf("postgres: read payment status: %w", err)
	}
	if status == model.PaymentCompleted {
		return true, nil
	}
	return false, fmt.Errorf("postgres: cannot complete payment in status %q", status)
}

func (r *paymentRepo) MarkFailed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE payments SET status = $1 WHERE id = $2 AND status = $3`, model.PaymentFailed, id, model.PaymentPending)
	if err != nil {
		return fmt.Errorf("postgres: mark payment failed: %w", err)
	}
	return nil
}
