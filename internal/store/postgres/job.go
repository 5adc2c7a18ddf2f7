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

type jobRepo struct{ pool *pgxpool.Pool }

const jobSelect = `SELECT id, principal_id, session_id, type, credits_used, status, created_at, completed_at FROM ai_jobs`

func (r *jobRepo) Create(ctx context.Context, j *model.AIJob) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO ai_jobs (id, principal_id, session_id, type, credits_used, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		j.ID, j.PrincipalID, j.SessionID, j.Type, j.CreditsUsed, j.Status, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id string) (*model.AIJob, error) {
	row := r.pool.QueryRow(ctx, jobSelect+` WHERE id = $1`, id)
	return scanJob(row)
}

func scanJob(row pgx.Row) (*model.AIJob, error) {
	var j model.AIJob
	err := row.Scan(&j.ID, &j.PrincipalID, &j.SessionID, &j.Type, &j.CreditsUsed, &j.Status, &j.CreatedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: ai_job", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan job: %w", err)
	}
	return &j, nil
}

func (r *jobRepo) GetActiveForSession(ctx context.Context, sessionID string) (*model.AIJob, error) {
	row := r.pool.QueryRow(ctx, jobSelect+` WHERE session_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`, sessionID, model.AIJobPending)
	return scanJob(row)
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ai_jobs SET status = $1, completed_at = $2 WHERE id = $3`, model.AIJobCompleted, time.Now(), id)
	return checkRowAffected(tag, err, "ai_job")
}

func (r *jobRepo) MarkFailed(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ai_jobs SET status = $1, completed_at = $2 WHERE id = $3`, model.AIJobFailed, time.Now(), id)
	return checkRowAffected(tag, err, "ai_job")
}

func (r *jobRepo) CountByStatus(ctx context.Context) (map[model.AIJobStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM ai_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("postgres: count jobs by status: %w", err)
	}
	defer rows.Close()

	out := map[model.AIJobStatus]int{}
	for rows.Next() {
		var status model.AIJobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan job count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
