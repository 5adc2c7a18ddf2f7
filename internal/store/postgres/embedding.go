// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package postgres

import (
	"context"
	"fmt"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// embeddingRepo implements store.Embeddings; the similarity-search side
// lives in internal/domain/vectorindex.PostgresIndex, which queries the
// same table through the pgvector `<=>` operator.
type embeddingRepo struct{ pool *pgxpool.Pool }

func (r *embeddingRepo) InsertBatch(ctx context.Context, embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin insert embeddings: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range embeddings {
		e := &embeddings[i]
		if _, err := tx.Exec(ctx, `INSERT INTO embeddings (id, session_id, block_id, provider, vector, source_text, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.SessionID, e.BlockID, e.Provider, pgvector.NewVector(e.Vector), e.SourceText, e.CreatedAt); err != nil {
			return fmt.Errorf("postgres: insert embedding: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *embeddingRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM embeddings WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("postgres: delete embeddings by session: %w", err)
	}
	return nil
}
