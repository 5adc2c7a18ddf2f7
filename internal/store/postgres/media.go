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
	"github.com/jackc/pgx/v5/pgxpool"
)

type mediaRepo struct{ pool *pgxpool.Pool }

const mediaSelect = `SELECT id, session_id, kind, object_key, content_type, size_bytes, status, created_at FROM media_files`

func (r *mediaRepo) Create(ctx context.Context, m *model.MediaFile) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO media_files (id, session_id, kind, object_key, content_type, size_bytes, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.SessionID, m.Kind, m.ObjectKey, m.ContentType, m.SizeBytes, m.Status, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create media: %w", err)
	}
	return nil
}

func (r *mediaRepo) Get(ctx context.Context, id string) (*model.MediaFile, error) {
	row := r.pool.QueryRow(ctx, mediaSelect+` WHERE id = $1`, id)
	return scanMedia(row)
}

func scanMedia(row pgx.Row) (*model.MediaFile, error) {
	var m model.MediaFile
	err := row.Scan(&m.ID, &m.SessionID, &m.Kind, &m.ObjectKey, &m.ContentType, &m.SizeBytes, &m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: media", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan media: %w", err)
	}
	return &m, nil
}

func (r *mediaRepo) Commit(ctx context.Context, id string, size *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE media_files SET status = $1, size_bytes = COALESCE($2, size_bytes) WHERE id = $3 AND status = $4`,
		model.MediaUploaded, size, id, model.MediaPending)
	if err != nil {
		return fmt.Errorf("postgres: commit media: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	m, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status == model.MediaUploaded {
		return nil
	}
	return fmt.Errorf("postgres: commit media: unexpected status %q", m.Status)
}

func (r *mediaRepo) ListBySessionAndKind(ctx context.Context, sessionID string, kind model.MediaKind, status model.MediaStatus) ([]model.MediaFile, error) {
	rows, err := r.pool.Query(ctx, mediaSelect+` WHERE session_id = $1 AND kind = $2 AND status = $3 ORDER BY created_at ASC`, sessionID, kind, status)
	if err != nil {
		return nil, fmt.Errorf("postgres: list media: %w", err)
	}
	defer rows.Close()

	var out []model.MediaFile
	for rows.Next() {
		var m model.MediaFile
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Kind, &m.ObjectKey, &m.ContentType, &m.SizeBytes, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan media: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *mediaRepo) Delete(ctx context.Context, id, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM media_files WHERE id = $1 AND session_id = $2`, id, sessionID)
	return checkRowAffected(tag, err, "media")
}

func (r *mediaRepo) DeleteBySession(ctx context.Context, sessionID string) ([]model.MediaFile, error) {
	rows, err := r.pool.Query(ctx, mediaSelect+` WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list media for delete: %w", err)
	}
	var out []model.MediaFile
	for rows.Next() {
		var m model.MediaFile
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Kind, &m.ObjectKey, &m.ContentType, &m.SizeBytes, &m.Status, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan media: %w", err)
		}
		out = append(out, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM media_files WHERE session_id = $1`, sessionID); err != nil {
		return nil, fmt.Errorf("postgres: delete media by session: %w", err)
	}
	return out, nil
}
