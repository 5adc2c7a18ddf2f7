// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ManuGH/sessionforge/internal/domain/model"
)

type embeddingRepo struct{ db *sql.DB }

func (r *embeddingRepo) InsertBatch(ctx context.Context, embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin insert embeddings: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO embeddings (id, session_id, block_id, provider, vector, source_text, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert embeddings: %w", err)
	}
	defer stmt.Close()

	for i := range embeddings {
		e := &embeddings[i]
		if _, err := stmt.ExecContext(ctx, e.ID, e.SessionID, e.BlockID, e.Provider, EncodeVector(e.Vector), e.SourceText, e.CreatedAt); err != nil {
			return fmt.Errorf("sqlite: insert embedding: %w", err)
		}
	}

	return tx.Commit()
}

func (r *embeddingRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM embeddings WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("sqlite: delete embeddings by session: %w", err)
	}
	return nil
}
