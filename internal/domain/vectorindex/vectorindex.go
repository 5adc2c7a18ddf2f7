// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package vectorindex implements semantic similarity search (C6) over the
// embeddings table: upsert and a cosine-distance scoped query, with one
// implementation per relational backend.
package vectorindex

import (
	"context"
	"fmt"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
)

// Hit is one ranked match, ordered by ascending distance (descending similarity).
type Hit struct {
	Embedding model.Embedding
	Distance  float64
}

// Index is implemented per relational backend (sqlite: brute-force Go scan;
// postgres: pgvector `<=>` operator).
type Index interface {
	// Upsert persists embeddings, rejecting any vector whose length is not
	// model.EmbeddingDimension.
	Upsert(ctx context.Context, embeddings []model.Embedding) error

	// Query returns the k nearest neighbors to vector, scoped to sessionIDs,
	// optionally filtered to a single provider, with distance <= maxDistance.
	Query(ctx context.Context, vector []float32, k int, maxDistance float64, sessionIDs []string, provider string) ([]Hit, error)
}

// ErrEmptyScope is returned by Query when sessionIDs is empty: the caller
// must resolve owner -> session-id set before querying, never rely on the
// index to filter by ownership implicitly.
var ErrEmptyScope = fmt.Errorf("%w: session scope must not be empty", apperrors.ErrValidation)

// MinSimilarityToMaxDistance converts the HTTP-facing similarity threshold
// into the distance threshold the index operates on.
func MinSimilarityToMaxDistance(minSimilarity float64) float64 {
	return 1 - minSimilarity
}

func validateDimension(v []float32) error {
	if len(v) != model.EmbeddingDimension {
		return fmt.Errorf("%w: vector has dimension %d, want %d", apperrors.ErrValidation, len(v), model.EmbeddingDimension)
	}
	return nil
}
