// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vectorindex

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/ManuGH/sessionforge/internal/store/sqlite"
)

// SQLiteIndex computes cosine distance in Go over a linear scan restricted
// to the caller's session-id scope, acceptable at the single-tenant
// embedded scale the default backend operates at.
type SQLiteIndex struct {
	db         *sql.DB
	embeddings store.Embeddings
}

// NewSQLiteIndex constructs an index over the backend's underlying database.
func NewSQLiteIndex(backend *sqlite.Backend) *SQLiteIndex {
	return &SQLiteIndex{db: backend.DB(), embeddings: backend.Embeddings()}
}

func (idx *SQLiteIndex) Upsert(ctx context.Context, embeddings []model.Embedding) error {
	for i := range embeddings {
		if err := validateDimension(embeddings[i].Vector); err != nil {
			return err
		}
	}
	return idx.embeddings.InsertBatch(ctx, embeddings)
}

func (idx *SQLiteIndex) Query(ctx context.Context, vector []float32, k int, maxDistance float64, sessionIDs []string, provider string) ([]Hit, error) {
	if err := validateDimension(vector); err != nil {
		return nil, err
	}
	if len(sessionIDs) == 0 {
		return nil, ErrEmptyScope
	}

	placeholders := make([]string, len(sessionIDs))
	args := make([]any, 0, len(sessionIDs)+1)
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT id, session_id, block_id, provider, vector, source_text, created_at
		FROM embeddings WHERE session_id IN (%s)`, strings.Join(placeholders, ","))
	if provider != "" {
		query += " AND provider = ?"
		args = append(args, provider)
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query embeddings: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var e model.Embedding
		var blob []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &e.BlockID, &e.Provider, &blob, &e.SourceText, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("vectorindex: scan embedding: %w", err)
		}
		vec, err := sqlite.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		e.Vector = vec

		d := cosineDistance(vector, vec)
		if d <= maxDistance {
			hits = append(hits, Hit{Embedding: e, Distance: d})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorindex: iterate embeddings: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// cosineDistance is 1 - cosine similarity; 0 is identical, 2 is opposite.
func cosineDistance(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	similarity := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return 1 - similarity
}
