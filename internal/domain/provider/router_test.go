// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubChat struct {
	name   string
	titleV string
	err    error
}

func (s *stubChat) Name() string { return s.name }
func (s *stubChat) Supports(c Capability) bool {
	return c == CapabilitySummarize || c == CapabilityTitle
}
func (s *stubChat) Summarize(ctx context.Context, text, lang string) (string, error) {
	return "## Resumo\n" + text, s.err
}
func (s *stubChat) Title(ctx context.Context, text, lang string) (string, error) {
	return s.titleV, s.err
}

type stubEmbedder struct {
	name string
	vec  []float32
	err  error
}

func (s *stubEmbedder) Name() string                   { return s.name }
func (s *stubEmbedder) Supports(c Capability) bool     { return c == CapabilityEmbed }
func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

func TestRouterRequiresEmbedCapableBackend(t *testing.T) {
	chatOnly := &stubChat{name: "chat-only"}
	_, err := NewRouter(Config{Chat: chatOnly, Embed: chatOnly})
	require.Error(t, err)
}

func TestRouterFallsBackToEmbedFallback(t *testing.T) {
	chatOnly := &stubChat{name: "chat-only"}
	fallback := &stubEmbedder{name: "fallback-embed", vec: []float32{0.1, 0.2}}

	r, err := NewRouter(Config{Chat: chatOnly, Embed: chatOnly, EmbedFallback: fallback})
	require.NoError(t, err)

	vec, err := r.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestRouterTitleTruncatesTo60Chars(t *testing.T) {
	long := "this title is intentionally constructed to exceed the sixty character cap by a wide margin"
	chat := &stubChat{name: "chat", titleV: long}
	embedder := &stubEmbedder{name: "embed", vec: []float32{1}}

	r, err := NewRouter(Config{Chat: chat, Embed: embedder})
	require.NoError(t, err)

	title, err := r.Title(context.Background(), "body", "en")
	require.NoError(t, err)
	require.LessOrEqual(t, len([]rune(title)), 60)
	require.Contains(t, title, "…")
}

func TestRouterSummarizePropagatesProviderFailure(t *testing.T) {
	chat := &stubChat{name: "chat", err: errors.New("upstream 503")}
	embedder := &stubEmbedder{name: "embed", vec: []float32{1}}

	r, err := NewRouter(Config{Chat: chat, Embed: embedder})
	require.NoError(t, err)

	_, err = r.Summarize(context.Background(), "text", "pt")
	require.Error(t, err)
}

func TestRouterRateLimitRejectsOnCanceledContext(t *testing.T) {
	chat := &stubChat{name: "chat", titleV: "ok"}
	embedder := &stubEmbedder{name: "embed", vec: []float32{1}}

	r, err := NewRouter(Config{Chat: chat, Embed: embedder, RateLimitPerSecond: 1})
	require.NoError(t, err)

	// Drain the burst allowance, then exceed it under a context that is
	// already canceled: the limiter's Wait must return immediately with an
	// error rather than blocking for a token.
	for i := 0; i < defaultRateLimitBurst; i++ {
		_, err := r.Summarize(context.Background(), "text", "pt")
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Summarize(ctx, "text", "pt")
	require.Error(t, err)
}
