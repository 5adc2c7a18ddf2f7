// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
)

type sessionRepo struct{ db *sql.DB }

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions (id, owner_id, type, status, created_at, updated_at, capture_language) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.Type, s.Status, s.CreatedAt, s.UpdatedAt, s.CaptureLanguage)
	if err != nil {
		return fmt.Errorf("sqlite: create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id, ownerID string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx, sessionSelect+` WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanSession(row)
}

func (r *sessionRepo) GetForWorker(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx, sessionSelect+` WHERE id = ?`, id)
	return scanSession(row)
}

const sessionSelect = `SELECT id, owner_id, type, status, created_at, updated_at, finalized_at, processed_at, summary, suggested_title, capture_language FROM sessions`

func scanSession(row *sql.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(&s.ID, &s.OwnerID, &s.Type, &s.Status, &s.CreatedAt, &s.UpdatedAt, &s.FinalizedAt, &s.ProcessedAt, &s.Summary, &s.SuggestedTitle, &s.CaptureLanguage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan session: %w", err)
	}
	return &s, nil
}

// TransitionStatus is the single read-modify-write serialization point for
// session state changes: exactly one concurrent finalize/orchestrator-claim
// wins the conditional update.
func (r *sessionRepo) TransitionStatus(ctx context.Context, id string, from, to model.SessionStatus, finalizedAt, processedAt *time.Time) (bool, error) {
	now := time.Now()

	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET status = ?, updated_at = ?,
		finalized_at = COALESCE(?, finalized_at), processed_at = COALESCE(?, processed_at)
		WHERE id = ? AND status = ?`,
		to, now, finalizedAt, processedAt, id, from)
	if err != nil {
		return false, fmt.Errorf("sqlite: transition session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *sessionRepo) SetProcessedFields(ctx context.Context, id string, summary, title *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET summary = ?, suggested_title = ? WHERE id = ?`, summary, title, id)
	if err != nil {
		return fmt.Errorf("sqlite: set processed fields: %w", err)
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id, ownerID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin delete session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Child rows go first so the foreign keys to sessions(id) still hold;
	// a missing or foreign-owned session rolls them back below.
	// media_files is deleted separately by the media registry, which also
	// needs the rows to clean up the backing storage objects.
	for _, stmt := range []string{
		`DELETE FROM blocks WHERE session_id = ?`,
		`DELETE FROM ai_jobs WHERE session_id = ?`,
		`DELETE FROM embeddings WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("sqlite: cascade delete: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: session", apperrors.ErrNotFound)
	}

	return tx.Commit()
}

func (r *sessionRepo) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM sessions WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list session ids by owner: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan session id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *sessionRepo) AppendBlock(ctx context.Context, b *model.Block) error {
	meta, err := json.Marshal(b.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal block metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO blocks (id, session_id, type, text_content, media_ref, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SessionID, b.Type, b.TextContent, b.MediaRef, string(meta), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: append block: %w", err)
	}
	return nil
}

func (r *sessionRepo) ListBlocks(ctx context.Context, sessionID string) ([]model.Block, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, session_id, type, text_content, media_ref, metadata, created_at FROM blocks WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list blocks: %w", err)
	}
	defer rows.Close()

	var out []model.Block
	for rows.Next() {
		var b model.Block
		var meta string
		if err := rows.Scan(&b.ID, &b.SessionID, &b.Type, &b.TextContent, &b.MediaRef, &meta, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan block: %w", err)
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &b.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal block metadata: %w", err)
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *sessionRepo) AppendBlocks(ctx context.Context, blocks []model.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append blocks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO blocks (id, session_id, type, text_content, media_ref, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare append blocks: %w", err)
	}
	defer stmt.Close()

	for i := range blocks {
		b := &blocks[i]
		meta, err := json.Marshal(b.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite: marshal block metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, b.ID, b.SessionID, b.Type, b.TextContent, b.MediaRef, string(meta), b.CreatedAt); err != nil {
			return fmt.Errorf("sqlite: insert block: %w", err)
		}
	}

	return tx.Commit()
}
