// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type principalRepo struct{ pool *pgxpool.Pool }

const principalSelect = `SELECT id, external_subject, email, credits, push_token, preferred_language, payment_customer_id, created_at FROM principals`

func (r *principalRepo) GetByExternalSubject(ctx context.Context, subject string) (*model.Principal, error) {
	row := r.pool.QueryRow(ctx, principalSelect+` WHERE external_subject = $1`, subject)
	return scanPrincipal(row)
}

func (r *principalRepo) GetByID(ctx context.Context, id string) (*model.Principal, error) {
	row := r.pool.QueryRow(ctx, principalSelect+` WHERE id = $1`, id)
	return scanPrincipal(row)
}

func scanPrincipal(row pgx.Row) (*model.Principal, error) {
	var p model.Principal
	err := row.Scan(&p.ID, &p.ExternalSubject, &p.Email, &p.Credits, &p.PushToken, &p.PreferredLanguage, &p.PaymentCustomerID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: principal", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan principal: %w", err)
	}
	return &p, nil
}

func (r *principalRepo) Create(ctx context.Context, p *model.Principal) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO principals (id, external_subject, email, credits, push_token, preferred_language, payment_customer_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.ExternalSubject, p.Email, p.Credits, p.PushToken, p.PreferredLanguage, p.PaymentCustomerID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create principal: %w", err)
	}
	return nil
}

func (r *principalRepo) SetPushToken(ctx context.Context, id, token string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE principals SET push_token = $1 WHERE id = $2`, token, id)
	return checkRowAffected(tag, err, "principal")
}

func (r *principalRepo) SetPreferredLanguage(ctx context.Context, id, lang string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE principals SET preferred_language = $1 WHERE id = $2`, lang, id)
	return checkRowAffected(tag, err, "principal")
}

func (r *principalRepo) SetPaymentCustomerID(ctx context.Context, id, customerID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE principals SET payment_customer_id = $1 WHERE id = $2`, customerID, id)
	return checkRowAffected(tag, err, "principal")
}

func checkRowAffected(tag pgconn.CommandTag, err error, entity string) error {
	if err != nil {
		return fmt.Errorf("postgres: update %s: %w", entity, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, entity)
	}
	return nil
}
