// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/metrics"
	"github.com/ManuGH/sessionforge/internal/resilience"
	"golang.org/x/time/rate"
)

// Router holds the capability-to-backend wiring configured at startup: a
// single chat backend for summarize/title, a single embedding backend (with
// a known-capable fallback when the configured one cannot embed), and a
// primary+fallback pair each for transcription and image description.
type Router struct {
	chat  Backend
	embed Backend

	embedFallback Embedder

	speechPrimary  Transcriber
	speechFallback Transcriber

	visionPrimary  ImageDescriber
	visionFallback ImageDescriber

	breakers map[string]*resilience.CircuitBreaker
	limiters map[string]*rate.Limiter
}

// Config names each backend the router wires by capability. EmbedFallback
// must be set whenever Embed does not itself support CapabilityEmbed.
type Config struct {
	Chat  Backend
	Embed Backend

	EmbedFallback Embedder

	SpeechPrimary  Transcriber
	SpeechFallback Transcriber

	VisionPrimary  ImageDescriber
	VisionFallback ImageDescriber

	// RateLimitPerSecond caps sustained outbound calls to each backend,
	// independent of the backend's own rate limit headers. Zero disables
	// limiting (the router only gates on circuit-breaker state).
	RateLimitPerSecond float64
}

// defaultRateLimitBurst lets a backend absorb a short burst (e.g. a batch
// of image-description calls for one multi-photo session) above its
// steady-state rate before calls start queueing.
const defaultRateLimitBurst = 5

// NewRouter validates the capability wiring and constructs a Router. It
// fails fast (matching the "always have an embedding-capable backend"
// requirement) rather than discovering the gap on the first embed call.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Chat == nil {
		return nil, fmt.Errorf("provider: router requires a chat backend")
	}
	if cfg.Embed == nil {
		return nil, fmt.Errorf("provider: router requires an embedding backend")
	}
	if !cfg.Embed.Supports(CapabilityEmbed) && cfg.EmbedFallback == nil {
		return nil, fmt.Errorf("provider: embedding backend %q lacks embed capability and no fallback was configured", cfg.Embed.Name())
	}

	r := &Router{
		chat:           cfg.Chat,
		embed:          cfg.Embed,
		embedFallback:  cfg.EmbedFallback,
		speechPrimary:  cfg.SpeechPrimary,
		speechFallback: cfg.SpeechFallback,
		visionPrimary:  cfg.VisionPrimary,
		visionFallback: cfg.VisionFallback,
		breakers:       map[string]*resilience.CircuitBreaker{},
		limiters:       map[string]*rate.Limiter{},
	}

	for _, b := range []Backend{cfg.Chat, cfg.Embed, cfg.SpeechPrimary, cfg.SpeechFallback, cfg.VisionPrimary, cfg.VisionFallback} {
		if b == nil {
			continue
		}
		if _, ok := r.breakers[b.Name()]; !ok {
			r.breakers[b.Name()] = resilience.NewCircuitBreaker(b.Name(), 3, 5, time.Minute, 30*time.Second)
		}
		if cfg.RateLimitPerSecond > 0 {
			if _, ok := r.limiters[b.Name()]; !ok {
				r.limiters[b.Name()] = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), defaultRateLimitBurst)
			}
		}
	}

	return r, nil
}

func (r *Router) breakerFor(name string) *resilience.CircuitBreaker {
	cb, ok := r.breakers[name]
	if !ok {
		cb = resilience.NewCircuitBreaker(name, 3, 5, time.Minute, 30*time.Second)
		r.breakers[name] = cb
	}
	return cb
}

func logProviderFailure(providerName string, capability Capability, err error) {
	lg := log.WithComponent("provider")
	lg.Warn().
		Str("event", "provider_failure").
		Str("provider", providerName).
		Str("capability", string(capability)).
		Err(err).
		Msg("provider call failed")
}

func call[T any](ctx context.Context, r *Router, providerName string, capability Capability, fn func() (T, error)) (T, error) {
	var zero T
	cb := r.breakerFor(providerName)
	if !cb.AllowRequest() {
		return zero, fmt.Errorf("provider: %s circuit open for %s", providerName, capability)
	}

	if lim, ok := r.limiters[providerName]; ok {
		if err := lim.Wait(ctx); err != nil {
			return zero, fmt.Errorf("provider: %s rate limit wait for %s: %w", providerName, capability, err)
		}
	}

	cb.RecordAttempt()
	start := time.Now()
	out, err := fn()
	elapsed := time.Since(start).Seconds()

	if err != nil {
		cb.RecordTechnicalFailure()
		metrics.RecordProviderCall(providerName, string(capability), "failure", elapsed, 0, 0)
		logProviderFailure(providerName, capability, err)
		return zero, err
	}

	cb.RecordSuccess()
	metrics.RecordProviderCall(providerName, string(capability), "success", elapsed, 0, 0)
	return out, nil
}

// Embed embeds text with the configured embedding backend, substituting the
// fallback embedder when the primary lacks embed capability.
func (r *Router) Embed(ctx context.Context, text string) ([]float32, error) {
	if emb, ok := r.embed.(Embedder); ok && r.embed.Supports(CapabilityEmbed) {
		return call(ctx, r, r.embed.Name(), CapabilityEmbed, func() ([]float32, error) {
			return emb.Embed(ctx, text)
		})
	}
	if r.embedFallback == nil {
		return nil, fmt.Errorf("provider: no embedding-capable backend configured")
	}
	lg := log.WithComponent("provider")
	lg.Warn().
		Str("event", "embed_fallback_substituted").
		Str("configured_backend", r.embed.Name()).
		Str("fallback_backend", r.embedFallback.Name()).
		Msg("embed backend lacks embed capability, substituting fallback")
	return call(ctx, r, r.embedFallback.Name(), CapabilityEmbed, func() ([]float32, error) {
		return r.embedFallback.Embed(ctx, text)
	})
}

// Summarize runs the configured chat backend's Summarize.
func (r *Router) Summarize(ctx context.Context, blocksText, language string) (string, error) {
	s, ok := r.chat.(Summarizer)
	if !ok {
		return "", fmt.Errorf("%w: %s does not summarize", ErrCapabilityUnsupported, r.chat.Name())
	}
	return call(ctx, r, r.chat.Name(), CapabilitySummarize, func() (string, error) {
		return s.Summarize(ctx, blocksText, language)
	})
}

// Title runs the configured chat backend's Title, truncating per the 60-char cap.
func (r *Router) Title(ctx context.Context, text, language string) (string, error) {
	t, ok := r.chat.(Titler)
	if !ok {
		return "", fmt.Errorf("%w: %s does not title", ErrCapabilityUnsupported, r.chat.Name())
	}
	out, err := call(ctx, r, r.chat.Name(), CapabilityTitle, func() (string, error) {
		return t.Title(ctx, text, language)
	})
	if err != nil {
		return "", err
	}
	return truncateTitle(out), nil
}

// Transcribe tries the primary speech backend, then the fallback once on failure.
func (r *Router) Transcribe(ctx context.Context, wavPath, language, hint string) (string, error) {
	if r.speechPrimary == nil {
		return "", fmt.Errorf("provider: no speech backend configured")
	}
	out, err := call(ctx, r, r.speechPrimary.Name(), CapabilityTranscribe, func() (string, error) {
		return r.speechPrimary.Transcribe(ctx, wavPath, language, hint)
	})
	if err == nil {
		return out, nil
	}
	if r.speechFallback == nil {
		return "", err
	}
	return call(ctx, r, r.speechFallback.Name(), CapabilityTranscribe, func() (string, error) {
		return r.speechFallback.Transcribe(ctx, wavPath, language, hint)
	})
}

// DescribeImage tries the primary vision backend, then the fallback once on failure.
func (r *Router) DescribeImage(ctx context.Context, ref ImageRef, language string) (string, error) {
	if r.visionPrimary == nil {
		return "", fmt.Errorf("provider: no vision backend configured")
	}
	out, err := call(ctx, r, r.visionPrimary.Name(), CapabilityDescribeImage, func() (string, error) {
		return r.visionPrimary.DescribeImage(ctx, ref, language)
	})
	if err == nil {
		return out, nil
	}
	if r.visionFallback == nil {
		return "", err
	}
	return call(ctx, r, r.visionFallback.Name(), CapabilityDescribeImage, func() (string, error) {
		return r.visionFallback.DescribeImage(ctx, ref, language)
	})
}
