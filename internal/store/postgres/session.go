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

type sessionRepo struct{ pool *pgxpool.Pool }

const sessionSelect = `SELECT id, owner_id, type, status, created_at, updated_at, finalized_at, processed_at, summary, suggested_title, capture_language FROM sessions`

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sessions (id, owner_id, type, status, created_at, updated_at, capture_language) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.OwnerID, s.Type, s.Status, s.CreatedAt, s.UpdatedAt, s.CaptureLanguage)
	if err != nil {
		return fmt.Errorf("postgres: create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id, ownerID string) (*model.Session, error) {
	row := r.pool.QueryRow(ctx, sessionSelect+` WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanSession(row)
}

func (r *sessionRepo) GetForWorker(ctx context.Context, id string) (*model.Session, error) {
	row := r.pool.QueryRow(ctx, sessionSelect+` WHERE id = $1`, id)
	return scanSession(row)
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(&s.ID, &s.OwnerID, &s.Type, &s.Status, &s.CreatedAt, &s.UpdatedAt, &s.FinalizedAt, &s.ProcessedAt, &s.Summary, &s.SuggestedTitle, &s.CaptureLanguage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: session", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan session: %w", err)
	}
	return &s, nil
}

func (r *sessionRepo) TransitionStatus(ctx context.Context, id string, from, to model.SessionStatus, finalizedAt, processedAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET status = $1, updated_at = $2,
		finalized_at = COALESCE($3, finalized_at), processed_at = COALESCE($4, processed_at)
		WHERE id = $5 AND status = $6`,
		to, time.Now(), finalizedAt, processedAt, id, from)
	if err != nil {
		return false, fmt.Errorf("postgres: transition session status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *sessionRepo) SetProcessedFields(ctx context.Context, id string, summary, title *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET summary = $1, suggested_title = $2 WHERE id = $3`, summary, title, id)
	if err != nil {
		return fmt.Errorf("postgres: set processed fields: %w", err)
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id, ownerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin delete session: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Child rows go first so the foreign keys to sessions(id) still hold;
	// a missing or foreign-owned session rolls them back below.
	for _, stmt := range []string{
		`DELETE FROM blocks WHERE session_id = $1`,
		`DELETE FROM ai_jobs WHERE session_id = $1`,
		`DELETE FROM embeddings WHERE session_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("postgres: cascade delete: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session", apperrors.ErrNotFound)
	}

	return tx.Commit(ctx)
}

func (r *sessionRepo) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM sessions WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list session ids by owner: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan session id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *sessionRepo) AppendBlock(ctx context.Context, b *model.Block) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO blocks (id, session_id, type, text_content, media_ref, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.SessionID, b.Type, b.TextContent, b.MediaRef, blockMetadataJSON(b.Metadata), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append block: %w", err)
	}
	return nil
}

func (r *sessionRepo) ListBlocks(ctx context.Context, sessionID string) ([]model.Block, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, session_id, type, text_content, media_ref, metadata, created_at FROM blocks WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list blocks: %w", err)
	}
	defer rows.Close()

	var out []model.Block
	for rows.Next() {
		var b model.Block
		var meta []byte
		if err := rows.Scan(&b.ID, &b.SessionID, &b.Type, &b.TextContent, &b.MediaRef, &meta, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan block: %w", err)
		}
		if err := unmarshalBlockMetadata(meta, &b.Metadata); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *sessionRepo) AppendBlocks(ctx context.Context, blocks []model.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin append blocks: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range blocks {
		b := &blocks[i]
		if _, err := tx.Exec(ctx, `INSERT INTO blocks (id, session_id, type, text_content, media_ref, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID, b.SessionID, b.Type, b.TextContent, b.MediaRef, blockMetadataJSON(b.Metadata), b.CreatedAt); err != nil {
			return fmt.Errorf("postgres: insert block: %w", err)
		}
	}

	return tx.Commit(ctx)
}
