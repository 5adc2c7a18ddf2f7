// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockBackend is the alternate chat backend, used when AI_PROVIDER=bedrock.
// It speaks the Anthropic-on-Bedrock message schema via InvokeModel.
type BedrockBackend struct {
	client  *bedrockruntime.Client
	modelID string
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// NewBedrockBackend constructs a backend from the shared AWS config loader,
// the same one the object-store gateway uses.
func NewBedrockBackend(ctx context.Context, region, modelID string) (*BedrockBackend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return &BedrockBackend{client: bedrockruntime.NewFromConfig(cfg), modelID: modelID}, nil
}

func (b *BedrockBackend) Name() string { return "bedrock" }

func (b *BedrockBackend) Supports(c Capability) bool {
	switch c {
	case CapabilitySummarize, CapabilityTitle:
		return true
	default:
		return false
	}
}

func (b *BedrockBackend) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: invoke model: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("bedrock: unmarshal response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("bedrock: empty response")
	}
	return resp.Content[0].Text, nil
}

func (b *BedrockBackend) Summarize(ctx context.Context, blocksText, language string) (string, error) {
	prompt := fmt.Sprintf(promptFor(summaryPrompts, language), blocksText)
	return b.complete(ctx, prompt, 1024)
}

func (b *BedrockBackend) Title(ctx context.Context, text, language string) (string, error) {
	prompt := fmt.Sprintf(promptFor(titlePrompts, language), text)
	return b.complete(ctx, prompt, 64)
}
