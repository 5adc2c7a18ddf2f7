// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/sessionforge/internal/platform/httpx"
	"github.com/sony/gobreaker"
)

// HTTPVisionBackend describes an image against an HTTP vision endpoint,
// preferring a presigned URL and falling back to inlined base64 bytes.
// Wrapped in its own gobreaker instance, same rationale as HTTPSpeechBackend.
type HTTPVisionBackend struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPVisionBackend constructs a vision backend.
func NewHTTPVisionBackend(name, endpoint, apiKey string) *HTTPVisionBackend {
	return &HTTPVisionBackend{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpx.NewClient(30 * time.Second),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (b *HTTPVisionBackend) Name() string { return b.name }

func (b *HTTPVisionBackend) Supports(c Capability) bool { return c == CapabilityDescribeImage }

type visionRequest struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url,omitempty"`
	ImageB64 string `json:"image_base64,omitempty"`
}

type visionResponse struct {
	Description string `json:"description"`
}

func (b *HTTPVisionBackend) DescribeImage(ctx context.Context, ref ImageRef, language string) (string, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.describe(ctx, ref, language)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *HTTPVisionBackend) describe(ctx context.Context, ref ImageRef, language string) (string, error) {
	reqBody := visionRequest{Prompt: promptFor(imageDescriptionPrompts, language)}
	if ref.URL != "" {
		reqBody.ImageURL = ref.URL
	} else {
		reqBody.ImageB64 = base64.StdEncoding.EncodeToString(ref.Bytes)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("vision: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("vision: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision: unexpected status %d", resp.StatusCode)
	}

	var parsed visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	return parsed.Description, nil
}
