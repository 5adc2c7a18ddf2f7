// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainBackend wraps langchaingo's OpenAI-compatible clients, serving
// both as the default embedding backend and as an alternate chat backend.
// It is the known-capable embedding fallback the router requires whenever
// the configured chat backend cannot embed.
type LangchainBackend struct {
	llm      llms.Model
	embedder embeddings.Embedder
}

// NewLangchainBackend constructs a backend from an API key. embedModel and
// chatModel select the underlying OpenAI-compatible model names.
func NewLangchainBackend(apiKey, embedModel, chatModel string) (*LangchainBackend, error) {
	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(chatModel))
	if err != nil {
		return nil, fmt.Errorf("langchain: new llm: %w", err)
	}
	embedLLM, err := openai.New(openai.WithToken(apiKey), openai.WithEmbeddingModel(embedModel))
	if err != nil {
		return nil, fmt.Errorf("langchain: new embed llm: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(embedLLM)
	if err != nil {
		return nil, fmt.Errorf("langchain: new embedder: %w", err)
	}
	return &LangchainBackend{llm: llm, embedder: embedder}, nil
}

func (b *LangchainBackend) Name() string { return "langchain" }

func (b *LangchainBackend) Supports(c Capability) bool {
	switch c {
	case CapabilityEmbed, CapabilitySummarize, CapabilityTitle:
		return true
	default:
		return false
	}
}

func (b *LangchainBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("langchain: embed documents: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("langchain: no embedding returned")
	}
	return vecs[0], nil
}

func (b *LangchainBackend) complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, b.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("langchain: generate: %w", err)
	}
	return out, nil
}

func (b *LangchainBackend) Summarize(ctx context.Context, blocksText, language string) (string, error) {
	prompt := fmt.Sprintf(promptFor(summaryPrompts, language), blocksText)
	return b.complete(ctx, prompt)
}

func (b *LangchainBackend) Title(ctx context.Context, text, language string) (string, error) {
	prompt := fmt.Sprintf(promptFor(titlePrompts, language), text)
	return b.complete(ctx, prompt)
}
