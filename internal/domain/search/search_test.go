// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package search

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/sessionforge/internal/cache"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/domain/provider"
	"github.com/ManuGH/sessionforge/internal/domain/vectorindex"
	"github.com/ManuGH/sessionforge/internal/store/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubEmbedBackend struct{ name string }

func (s *stubEmbedBackend) Name() string                        { return s.name }
func (s *stubEmbedBackend) Supports(c provider.Capability) bool { return c == provider.CapabilityEmbed }
func (s *stubEmbedBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1
	return vec, nil
}

type stubChatBackend struct{ name string }

func (s *stubChatBackend) Name() string { return s.name }
func (s *stubChatBackend) Supports(c provider.Capability) bool {
	return c == provider.CapabilitySummarize || c == provider.CapabilityTitle
}
func (s *stubChatBackend) Summarize(ctx context.Context, text, lang string) (string, error) {
	return "summary", nil
}
func (s *stubChatBackend) Title(ctx context.Context, text, lang string) (string, error) {
	return "title", nil
}

func newTestService(t *testing.T) (*Service, *sqlite.Backend, string) {
	t.Helper()
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	ownerID := "owner_1"
	require.NoError(t, backend.Principals().Create(context.Background(), &model.Principal{
		ID: ownerID, ExternalSubject: "ext_1", CreatedAt: time.Now(),
	}))

	router, err := provider.NewRouter(provider.Config{
		Chat:  &stubChatBackend{name: "chat"},
		Embed: &stubEmbedBackend{name: "embed"},
	})
	require.NoError(t, err)

	index := vectorindex.NewSQLiteIndex(backend)
	svc := New(backend.Sessions(), router, index)
	return svc, backend, ownerID
}

func seedSessionWithEmbedding(t *testing.T, backend *sqlite.Backend, ownerID, text string, vector []float32) string {
	t.Helper()
	ctx := context.Background()
	sess := &model.Session{
		ID: uuid.NewString(), OwnerID: ownerID, Type: model.SessionTypeVoice,
		Status: model.SessionOpen, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, backend.Sessions().Create(ctx, sess))
	require.NoError(t, backend.Embeddings().InsertBatch(ctx, []model.Embedding{{
		ID: uuid.NewString(), SessionID: sess.ID, Provider: "embed",
		Vector: vector, SourceText: text, CreatedAt: time.Now(),
	}}))
	return sess.ID
}

func TestSearchReturnsOwnedMatches(t *testing.T) {
	svc, backend, owner := newTestService(t)
	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1
	sessID := seedSessionWithEmbedding(t, backend, owner, "hello world", vec)

	hits, err := svc.Search(context.Background(), "hello", owner, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, sessID, hits[0].SessionID)
	require.Equal(t, "hello world", hits[0].Text)
	require.InDelta(t, 1.0, hits[0].Similarity, 0.001)
}

func TestSearchExcludesOtherOwnersSessions(t *testing.T) {
	svc, backend, owner := newTestService(t)
	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1

	require.NoError(t, backend.Principals().Create(context.Background(), &model.Principal{
		ID: "owner_2", ExternalSubject: "ext_2", CreatedAt: time.Now(),
	}))
	seedSessionWithEmbedding(t, backend, "owner_2", "someone else's text", vec)

	hits, err := svc.Search(context.Background(), "hello", owner, 5, 0.5)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSearchWithNoOwnedSessionsReturnsNoHits(t *testing.T) {
	svc, _, owner := newTestService(t)
	hits, err := svc.Search(context.Background(), "hello", owner, 5, 0.5)
	require.NoError(t, err)
	require.Empty(t, hits)
}

// countingEmbedder counts calls so the cache test can assert the second
// Search for the same query text skips the provider entirely.
type countingEmbedder struct {
	name  string
	calls int
}

func (c *countingEmbedder) Name() string { return c.name }
func (c *countingEmbedder) Supports(capability provider.Capability) bool {
	return capability == provider.CapabilityEmbed
}
func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1
	return vec, nil
}

func TestSearchReusesCachedQueryEmbedding(t *testing.T) {
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	ownerID := "owner_1"
	require.NoError(t, backend.Principals().Create(context.Background(), &model.Principal{
		ID: ownerID, ExternalSubject: "ext_1", CreatedAt: time.Now(),
	}))

	embedder := &countingEmbedder{name: "embed"}
	router, err := provider.NewRouter(provider.Config{
		Chat:  &stubChatBackend{name: "chat"},
		Embed: embedder,
	})
	require.NoError(t, err)

	index := vectorindex.NewSQLiteIndex(backend)
	svc := NewWithCache(backend.Sessions(), router, index, cache.NewMemoryCache(time.Minute))

	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1
	seedSessionWithEmbedding(t, backend, ownerID, "hello world", vec)

	_, err = svc.Search(context.Background(), "hello", ownerID, 5, 0.5)
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), "hello", ownerID, 5, 0.5)
	require.NoError(t, err)

	require.Equal(t, 1, embedder.calls, "second search with the same query text should hit the cache")
}
