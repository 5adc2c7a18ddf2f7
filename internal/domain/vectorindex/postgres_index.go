// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vectorindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresIndex stores embeddings in a pgvector column and filters/orders
// with the `<=>` cosine-distance operator, rather than a Go-side scan.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

// NewPostgresIndex constructs an index over an existing connection pool.
func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

func (idx *PostgresIndex) Upsert(ctx context.Context, embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	for i := range embeddings {
		if err := validateDimension(embeddings[i].Vector); err != nil {
			return err
		}
	}

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("vectorindex: begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range embeddings {
		e := &embeddings[i]
		_, err := tx.Exec(ctx, `INSERT INTO embeddings (id, session_id, block_id, provider, vector, source_text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET vector = EXCLUDED.vector, source_text = EXCLUDED.source_text`,
			e.ID, e.SessionID, e.BlockID, e.Provider, pgvector.NewVector(e.Vector), e.SourceText, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("vectorindex: upsert embedding: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (idx *PostgresIndex) Query(ctx context.Context, vector []float32, k int, maxDistance float64, sessionIDs []string, provider string) ([]Hit, error) {
	if err := validateDimension(vector); err != nil {
		return nil, err
	}
	if len(sessionIDs) == 0 {
		return nil, ErrEmptyScope
	}

	vec := pgvector.NewVector(vector)
	args := []any{vec, sessionIDs, maxDistance}
	query := strings.Builder{}
	query.WriteString(`SELECT id, session_id, block_id, provider, vector, source_text, created_at, (vector <=> $1) AS distance
		FROM embeddings WHERE session_id = ANY($2) AND (vector <=> $1) <= $3`)
	if provider != "" {
		args = append(args, provider)
		query.WriteString(fmt.Sprintf(" AND provider = $%d", len(args)))
	}
	query.WriteString(" ORDER BY distance ASC")
	if k > 0 {
		args = append(args, k)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := idx.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query embeddings: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var e model.Embedding
		var v pgvector.Vector
		var distance float64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.BlockID, &e.Provider, &v, &e.SourceText, &e.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("vectorindex: scan embedding: %w", err)
		}
		e.Vector = v.Slice()
		hits = append(hits, Hit{Embedding: e, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorindex: iterate embeddings: %w", err)
	}
	return hits, nil
}
