// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package search implements semantic retrieval (C9): embed the query text,
// resolve the caller's owned sessions, and query the vector index scoped
// to that set.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/cache"
	"github.com/ManuGH/sessionforge/internal/domain/provider"
	"github.com/ManuGH/sessionforge/internal/domain/vectorindex"
	"github.com/ManuGH/sessionforge/internal/metrics"
	"github.com/ManuGH/sessionforge/internal/store"
)

// embedCacheTTL bounds how long a cached query embedding is reused. Short
// enough that a provider/model swap rolls out without manual invalidation.
const embedCacheTTL = 10 * time.Minute

// Hit is one ranked semantic match returned to the caller.
type Hit struct {
	SessionID  string
	BlockID    *string
	Text       string
	Similarity float64
	Provider   string
}

// Service implements search(query_text, reader, k, min_similarity).
type Service struct {
	sessions store.Sessions
	router   *provider.Router
	index    vectorindex.Index
	// cache is an optional lookaside for repeated query embeddings; nil
	// disables it and every Search re-embeds the query text.
	cache cache.Cache
}

// New constructs a Service with no query-embedding cache.
func New(sessions store.Sessions, router *provider.Router, index vectorindex.Index) *Service {
	return &Service{sessions: sessions, router: router, index: index}
}

// NewWithCache constructs a Service that reuses embeddings for repeated
// query text across callers via the given cache.
func NewWithCache(sessions store.Sessions, router *provider.Router, index vectorindex.Index, c cache.Cache) *Service {
	return &Service{sessions: sessions, router: router, index: index, cache: c}
}

func (s *Service) embedQuery(ctx context.Context, queryText string) ([]float32, error) {
	if s.cache == nil {
		return s.router.Embed(ctx, queryText)
	}

	sum := sha256.Sum256([]byte(queryText))
	key := "search:embed:" + hex.EncodeToString(sum[:])

	if v, ok := s.cache.Get(key); ok {
		if vector, ok := decodeEmbedding(v); ok {
			return vector, nil
		}
	}

	vector, err := s.router.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, vector, embedCacheTTL)
	return vector, nil
}

// decodeEmbedding recovers an embedding vector from a cache hit. The
// in-memory cache returns the []float32 as stored; a Redis-backed cache
// round-trips it through JSON, which decodes numbers as float64.
func decodeEmbedding(v any) ([]float32, bool) {
	switch vec := v.(type) {
	case []float32:
		return vec, true
	case []any:
		out := make([]float32, len(vec))
		for i, x := range vec {
			f, ok := x.(float64)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	default:
		return nil, false
	}
}

// Search embeds queryText with the configured embedding provider, resolves
// reader's owned sessions, and returns the k nearest matches at or above
// minSimilarity, ordered by descending similarity.
func (s *Service) Search(ctx context.Context, queryText, readerID string, k int, minSimilarity float64) ([]Hit, error) {
	vector, err := s.embedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	sessionIDs, err := s.sessions.ListIDsByOwner(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("search: resolve owned sessions: %w", err)
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	maxDistance := vectorindex.MinSimilarityToMaxDistance(minSimilarity)
	matches, err := s.index.Query(ctx, vector, k, maxDistance, sessionIDs, "")
	if err != nil {
		return nil, fmt.Errorf("search: query index: %w", err)
	}

	metrics.SearchQueriesTotal.Inc()

	hits := make([]Hit, len(matches))
	for i, m := range matches {
		hits[i] = Hit{
			SessionID:  m.Embedding.SessionID,
			BlockID:    m.Embedding.BlockID,
			Text:       m.Embedding.SourceText,
			Similarity: clampSimilarity(1 - m.Distance),
			Provider:   m.Embedding.Provider,
		}
	}
	return hits, nil
}

func clampSimilarity(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
