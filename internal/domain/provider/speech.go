// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/sessionforge/internal/platform/httpx"
	"github.com/sony/gobreaker"
)

// HTTPSpeechBackend transcribes a local WAV file against an HTTP
// speech-to-text endpoint (any OpenAI-transcriptions-compatible API). It is
// wrapped in its own gobreaker instance rather than the hand-rolled
// internal/resilience breaker: unlike the chat/embedding SDK clients, this
// is a raw HTTP call this codebase owns end to end, and gobreaker's
// generation-counted half-open probe fits a single-endpoint client better.
type HTTPSpeechBackend struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPSpeechBackend constructs a speech backend. name distinguishes
// primary/fallback instances in metrics and logs (e.g. "speech-primary").
func NewHTTPSpeechBackend(name, endpoint, apiKey string) *HTTPSpeechBackend {
	return &HTTPSpeechBackend{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpx.NewClient(60 * time.Second),
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

func (b *HTTPSpeechBackend) Name() string { return b.name }

func (b *HTTPSpeechBackend) Supports(c Capability) bool { return c == CapabilityTranscribe }

type speechTranscriptionResponse struct {
	Text string `json:"text"`
}

func (b *HTTPSpeechBackend) Transcribe(ctx context.Context, wavPath, language, hint string) (string, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.transcribe(ctx, wavPath, language, hint)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *HTTPSpeechBackend) transcribe(ctx context.Context, wavPath, language, hint string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", fmt.Errorf("speech: open wav: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", fmt.Errorf("speech: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("speech: copy wav: %w", err)
	}
	if language != "" {
		_ = w.WriteField("language", language)
	}
	if hint != "" {
		_ = w.WriteField("prompt", hint)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("speech: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("speech: new request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech: unexpected status %d", resp.StatusCode)
	}

	var parsed speechTranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("speech: decode response: %w", err)
	}
	return parsed.Text, nil
}
