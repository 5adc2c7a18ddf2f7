// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
)

type principalRepo struct{ db *sql.DB }

func (r *principalRepo) GetByExternalSubject(ctx context.Context, subject string) (*model.Principal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, external_subject, email, credits, push_token, preferred_language, payment_customer_id, created_at FROM principals WHERE external_subject = ?`, subject)
	return scanPrincipal(row)
}

func (r *principalRepo) GetByID(ctx context.Context, id string) (*model.Principal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, external_subject, email, credits, push_token, preferred_language, payment_customer_id, created_at FROM principals WHERE id = ?`, id)
	return scanPrincipal(row)
}

func scanPrincipal(row *sql.Row) (*model.Principal, error) {
	var p model.Principal
	err := row.Scan(&p.ID, &p.ExternalSubject, &p.Email, &p.Credits, &p.PushToken, &p.PreferredLanguage, &p.PaymentCustomerID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: principal", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan principal: %w", err)
	}
	return &p, nil
}

func (r *principalRepo) Create(ctx context.Context, p *model.Principal) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO principals (id, external_subject, email, credits, push_token, preferred_language, payment_customer_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ExternalSubject, p.Email, p.Credits, p.PushToken, p.PreferredLanguage, p.PaymentCustomerID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: create principal: %w", err)
	}
	return nil
}

func (r *principalRepo) SetPushToken(ctx context.Context, id, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE principals SET push_token = ? WHERE id = ?`, token, id)
	return checkRowAffected(res, err, "principal")
}

func (r *principalRepo) SetPreferredLanguage(ctx context.Context, id, lang string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE principals SET preferred_language = ? WHERE id = ?`, lang, id)
	return checkRowAffected(res, err, "principal")
}

func (r *principalRepo) SetPaymentCustomerID(ctx context.Context, id, customerID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE principals SET payment_customer_id = ? WHERE id = ?`, customerID, id)
	return checkRowAffected(res, err, "principal")
}

func checkRowAffected(res sql.Result, err error, entity string) error {
	if err != nil {
		return fmt.Errorf("sqlite: update %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected %s: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, entity)
	}
	return nil
}
