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

type jobRepo struct{ db *sql.DB }

const jobSelect = `SELECT id, principal_id, session_id, type, credits_used, status, created_at, completed_at FROM ai_jobs`

func (r *jobRepo) Create(ctx context.Context, j *model.AIJob) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO ai_jobs (id, principal_id, session_id, type, credits_used, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.PrincipalID, j.SessionID, j.Type, j.CreditsUsed, j.Status, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: create job: %w", err)
	}
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id string) (*model.AIJob, error) {
	row := r.db.QueryRowContext(ctx, jobSelect+` WHERE id = ?`, id)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*model.AIJob, error) {
	var j model.AIJob
	err := row.Scan(&j.ID, &j.PrincipalID, &j.SessionID, &j.Type, &j.CreditsUsed, &j.Status, &j.CreatedAt, &j.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ai_job", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan job: %w", err)
	}
	return &j, nil
}

// GetActiveForSession returns the one non-terminal job for a session, if any.
func (r *jobRepo) GetActiveForSession(ctx context.Context, sessionID string) (*model.AIJob, error) {
	row := r.db.QueryRowContext(ctx, jobSelect+` WHERE session_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1`, sessionID, model.AIJobPending)
	return scanJob(row)
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE ai_jobs SET status = ?, completed_at = ? WHERE id = ?`, model.AIJobCompleted, time.Now(), id)
	return checkRowAffected(res, err, "ai_job")
}

func (r *jobRepo) MarkFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE ai_jobs SET status = ?, completed_at = ? WHERE id = ?`, model.AIJobFailed, time.Now(), id)
	return checkRowAffected(res, err, "ai_job")
}

func (r *jobRepo) CountByStatus(ctx context.Context) (map[model.AIJobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ai_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: count jobs by status: %w", err)
	}
	defer rows.Close()

	out := map[model.AIJobStatus]int{}
	for rows.Next() {
		var status model.AIJobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scan job count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
