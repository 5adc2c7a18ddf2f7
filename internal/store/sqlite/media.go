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

type mediaRepo struct{ db *sql.DB }

const mediaSelect = `SELECT id, session_id, kind, object_key, content_type, size_bytes, status, created_at FROM media_files`

func (r *mediaRepo) Create(ctx context.Context, m *model.MediaFile) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO media_files (id, session_id, kind, object_key, content_type, size_bytes, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Kind, m.ObjectKey, m.ContentType, m.SizeBytes, m.Status, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: create media: %w", err)
	}
	return nil
}

func (r *mediaRepo) Get(ctx context.Context, id string) (*model.MediaFile, error) {
	row := r.db.QueryRowContext(ctx, mediaSelect+` WHERE id = ?`, id)
	return scanMedia(row)
}

func scanMedia(row *sql.Row) (*model.MediaFile, error) {
	var m model.MediaFile
	err := row.Scan(&m.ID, &m.SessionID, &m.Kind, &m.ObjectKey, &m.ContentType, &m.SizeBytes, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: media", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan media: %w", err)
	}
	return &m, nil
}

// Commit is idempotent: if the row is already uploaded it is a no-op success.
func (r *mediaRepo) Commit(ctx context.Context, id string, size *int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE media_files SET status = ?, size_bytes = COALESCE(?, size_bytes) WHERE id = ? AND status = ?`,
		model.MediaUploaded, size, id, model.MediaPending)
	if err != nil {
		return fmt.Errorf("sqlite: commit media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Either already uploaded (idempotent success) or truly missing.
	m, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status == model.MediaUploaded {
		return nil
	}
	return fmt.Errorf("sqlite: commit media: unexpected status %q", m.Status)
}

func (r *mediaRepo) ListBySessionAndKind(ctx context.Context, sessionID string, kind model.MediaKind, status model.MediaStatus) ([]model.MediaFile, error) {
	rows, err := r.db.QueryContext(ctx, mediaSelect+` WHERE session_id = ? AND kind = ? AND status = ? ORDER BY created_at ASC`, sessionID, kind, status)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list media: %w", err)
	}
	defer rows.Close()

	var out []model.MediaFile
	for rows.Next() {
		var m model.MediaFile
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Kind, &m.ObjectKey, &m.ContentType, &m.SizeBytes, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan media: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *mediaRepo) Delete(ctx context.Context, id, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media_files WHERE id = ? AND session_id = ?`, id, sessionID)
	return checkRowAffected(res, err, "media")
}

func (r *mediaRepo) DeleteBySession(ctx context.Context, sessionID string) ([]model.MediaFile, error) {
	rows, err := r.db.QueryContext(ctx, mediaSelect+` WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list media for delete: %w", err)
	}
	var out []model.MediaFile
	for rows.Next() {
		var m model.MediaFile
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Kind, &m.ObjectKey, &m.ContentType, &m.SizeBytes, &m.Status, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scan media: %w", err)
		}
		out = append(out, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM media_files WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("sqlite: delete media by session: %w", err)
	}
	return out, nil
}
