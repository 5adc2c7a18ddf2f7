// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend implements chat-based summarize and title generation
// against the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicBackend constructs a backend bound to an API key.
func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	return &AnthropicBackend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.ModelClaude3_7SonnetLatest,
	}
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

func (b *AnthropicBackend) Supports(c Capability) bool {
	switch c {
	case CapabilitySummarize, CapabilityTitle:
		return true
	default:
		return false
	}
}

func (b *AnthropicBackend) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: messages.new: %w", err)
	}
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return msg.Content[0].Text, nil
}

func (b *AnthropicBackend) Summarize(ctx context.Context, blocksText, language string) (string, error) {
	prompt := fmt.Sprintf(promptFor(summaryPrompts, language), blocksText)
	return b.complete(ctx, prompt, 1024)
}

func (b *AnthropicBackend) Title(ctx context.Context, text, language string) (string, error) {
	prompt := fmt.Sprintf(promptFor(titlePrompts, language), text)
	return b.complete(ctx, prompt, 64)
}
