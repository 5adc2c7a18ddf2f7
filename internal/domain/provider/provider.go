// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package provider defines the capability abstraction over external AI
// backends and the router that selects and falls back between them.
package provider

import (
	"context"
	"errors"
)

// ErrCapabilityUnsupported is returned by a backend asked for a capability
// it does not implement.
var ErrCapabilityUnsupported = errors.New("provider: capability unsupported")

// Capability names the unit of work a backend may support.
type Capability string

const (
	CapabilityEmbed         Capability = "embed"
	CapabilitySummarize     Capability = "summarize"
	CapabilityTitle         Capability = "title"
	CapabilityTranscribe    Capability = "transcribe"
	CapabilityDescribeImage Capability = "describe_image"
)

// Backend is implemented by every concrete provider client. Not every
// backend implements every capability; Supports reports which it does.
type Backend interface {
	Name() string
	Supports(c Capability) bool
}

// Embedder produces a fixed-dimension vector for a chunk of text.
type Embedder interface {
	Backend
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summarizer produces a markdown summary from a session's block text.
type Summarizer interface {
	Backend
	Summarize(ctx context.Context, blocksText, language string) (string, error)
}

// Titler produces a short title from combined session text.
type Titler interface {
	Backend
	Title(ctx context.Context, text, language string) (string, error)
}

// Transcriber converts a local WAV file into text.
type Transcriber interface {
	Backend
	Transcribe(ctx context.Context, wavPath string, language string, hint string) (string, error)
}

// ImageRef is either a URL or inlined bytes; exactly one should be set.
type ImageRef struct {
	URL   string
	Bytes []byte
}

// ImageDescriber produces a text description of an image.
type ImageDescriber interface {
	Backend
	DescribeImage(ctx context.Context, ref ImageRef, language string) (string, error)
}

// Result wraps a provider call outcome with the timing and token usage the
// observability surface requires.
type Result struct {
	Provider     string
	Capability   Capability
	DurationMS   int64
	InputTokens  int
	OutputTokens int
}
