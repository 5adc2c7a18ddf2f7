// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bootstrap is the composition root shared by cmd/server and
// cmd/worker: opening the configured storage backend, the object-store
// gateway, the vector index, and the AI provider router from one Config.
package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/sessionforge/internal/cache"
	"github.com/ManuGH/sessionforge/internal/config"
	"github.com/ManuGH/sessionforge/internal/domain/provider"
	"github.com/ManuGH/sessionforge/internal/domain/vectorindex"
	xglog "github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/objectstore"
	platformnet "github.com/ManuGH/sessionforge/internal/platform/net"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/ManuGH/sessionforge/internal/store/postgres"
	"github.com/ManuGH/sessionforge/internal/store/sqlite"
	"github.com/redis/go-redis/v9"
)

// Container holds the shared infrastructure both entrypoints build domain
// services on top of.
type Container struct {
	Backend store.Backend
	Gateway *objectstore.Gateway
	Router  *provider.Router
	Index   vectorindex.Index
	// Cache is best-effort: a query-embedding cache miss just costs an
	// extra provider call, so a Redis outage degrades performance rather
	// than availability. Redis-backed when Redis answers at startup,
	// otherwise a local Badger cache; nil only when neither can be opened.
	Cache cache.Cache
}

// Wire opens every shared dependency from cfg. Callers are responsible for
// calling Container.Backend.Close when done.
func Wire(ctx context.Context, cfg config.Config) (*Container, error) {
	backend, err := openBackend(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open storage backend: %w", err)
	}

	gateway, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:      cfg.StorageEndpoint,
		Bucket:        cfg.StorageBucket,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		Region:        cfg.StorageRegion,
		PresignTTLPut: cfg.PresignTTL,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("bootstrap: open object store gateway: %w", err)
	}

	router, err := buildRouter(ctx, cfg)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("bootstrap: build provider router: %w", err)
	}

	index, err := buildIndex(backend)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("bootstrap: build vector index: %w", err)
	}

	return &Container{Backend: backend, Gateway: gateway, Router: router, Index: index, Cache: buildCache(cfg)}, nil
}

// buildCache prefers Redis for the query-embedding lookaside search.Service
// uses, since it's shared across server and worker instances; when Redis
// can't be reached at startup it falls back to a local Badger-backed cache
// rather than disabling the lookaside outright, at the cost of each instance
// keeping its own copy. It returns nil, which disables the lookaside, only
// when the Badger cache can't be opened either.
func buildCache(cfg config.Config) cache.Cache {
	if c := buildRedisCache(cfg); c != nil {
		return c
	}

	c, err := cache.NewBadgerCache(cfg.CacheDir, xglog.WithComponent("cache"))
	if err != nil {
		_lg := xglog.WithComponent("bootstrap")
		_lg.Warn().Err(err).Msg("bootstrap: badger cache fallback unavailable, query-embedding cache disabled")
		return nil
	}
	return c
}

func buildRedisCache(cfg config.Config) cache.Cache {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		_lg := xglog.WithComponent("bootstrap")
		_lg.Warn().Err(err).Msg("bootstrap: invalid REDIS_URL, falling back to local cache")
		return nil
	}

	c, err := cache.NewRedisCache(cache.RedisConfig{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}, xglog.WithComponent("cache"))
	if err != nil {
		_lg := xglog.WithComponent("bootstrap")
		_lg.Warn().Err(err).Msg("bootstrap: redis cache unreachable, falling back to local cache")
		return nil
	}
	return c
}

// openBackend dispatches on DatabaseURL's scheme: "sqlite" for a local
// file, anything else (postgres, postgresql) to the pgx pool backend.
func openBackend(ctx context.Context, databaseURL string) (store.Backend, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		return sqlite.Open(path)
	case "postgres", "postgresql":
		return postgres.Open(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}
}

func buildIndex(backend store.Backend) (vectorindex.Index, error) {
	switch b := backend.(type) {
	case *sqlite.Backend:
		return vectorindex.NewSQLiteIndex(b), nil
	case *postgres.Backend:
		return vectorindex.NewPostgresIndex(b.Pool()), nil
	default:
		return nil, fmt.Errorf("bootstrap: no vector index implementation for backend %T", backend)
	}
}

// buildRouter wires the chat, embedding, speech, and vision capabilities
// from cfg. Speech/vision backends are optional: a session whose capture
// never uses voice or image blocks never calls them.
func buildRouter(ctx context.Context, cfg config.Config) (*provider.Router, error) {
	chat, err := buildChatBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embed, embedFallback, err := buildEmbedBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy := outboundPolicyFromConfig(cfg)

	var speechPrimary, speechFallback provider.Transcriber
	if cfg.ProviderAPIKeySpeech != "" {
		if err := checkOutboundEndpoint(ctx, "speech-primary", cfg.ProviderSpeechEndpoint, policy); err != nil {
			return nil, err
		}
		speechPrimary = provider.NewHTTPSpeechBackend("speech-primary", cfg.ProviderSpeechEndpoint, cfg.ProviderAPIKeySpeech)
		if cfg.ProviderSpeechFallbackEndpoint != "" {
			if err := checkOutboundEndpoint(ctx, "speech-fallback", cfg.ProviderSpeechFallbackEndpoint, policy); err != nil {
				return nil, err
			}
			speechFallback = provider.NewHTTPSpeechBackend("speech-fallback", cfg.ProviderSpeechFallbackEndpoint, cfg.ProviderAPIKeySpeech)
		}
	}

	var visionPrimary, visionFallback provider.ImageDescriber
	if cfg.ProviderAPIKeyVision != "" {
		if err := checkOutboundEndpoint(ctx, "vision-primary", cfg.ProviderVisionEndpoint, policy); err != nil {
			return nil, err
		}
		visionPrimary = provider.NewHTTPVisionBackend("vision-primary", cfg.ProviderVisionEndpoint, cfg.ProviderAPIKeyVision)
		if cfg.ProviderVisionFallbackEndpoint != "" {
			if err := checkOutboundEndpoint(ctx, "vision-fallback", cfg.ProviderVisionFallbackEndpoint, policy); err != nil {
				return nil, err
			}
			visionFallback = provider.NewHTTPVisionBackend("vision-fallback", cfg.ProviderVisionFallbackEndpoint, cfg.ProviderAPIKeyVision)
		}
	}

	return provider.NewRouter(provider.Config{
		Chat:               chat,
		Embed:              embed,
		EmbedFallback:      embedFallback,
		SpeechPrimary:      speechPrimary,
		SpeechFallback:     speechFallback,
		VisionPrimary:      visionPrimary,
		VisionFallback:     visionFallback,
		RateLimitPerSecond: cfg.ProviderRateLimitPerSecond,
	})
}

func outboundPolicyFromConfig(cfg config.Config) platformnet.OutboundPolicy {
	return platformnet.OutboundPolicy{
		Enabled: cfg.ProviderOutboundPolicyEnabled,
		Allow: platformnet.OutboundAllowlist{
			Hosts:   cfg.ProviderOutboundAllowHosts,
			CIDRs:   cfg.ProviderOutboundAllowCIDRs,
			Ports:   cfg.ProviderOutboundAllowPorts,
			Schemes: cfg.ProviderOutboundAllowSchemes,
		},
	}
}

// checkOutboundEndpoint validates a configured provider endpoint against the
// outbound allowlist before the router ever dials it, failing startup rather
// than the first in-flight request if an operator points it somewhere the
// allowlist forbids.
func checkOutboundEndpoint(ctx context.Context, name, endpoint string, policy platformnet.OutboundPolicy) error {
	if !policy.Enabled {
		return nil
	}
	if _, err := platformnet.ValidateOutboundURL(ctx, endpoint, policy); err != nil {
		return fmt.Errorf("bootstrap: provider endpoint %s (%s) rejected by outbound policy: %w", name, endpoint, err)
	}
	return nil
}

func buildChatBackend(ctx context.Context, cfg config.Config) (provider.Backend, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return provider.NewAnthropicBackend(cfg.ProviderAPIKeyChat), nil
	case "bedrock":
		return provider.NewBedrockBackend(ctx, cfg.BedrockRegion, cfg.BedrockModelID)
	case "langchain":
		return provider.NewLangchainBackend(cfg.ProviderAPIKeyChat, cfg.EmbeddingModelName, cfg.ChatModelName)
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider)
	}
}

// buildEmbedBackend returns the configured embedding backend and, when that
// backend cannot itself embed (bedrock's Claude models have no embed
// capability), a langchain-backed fallback embedder.
func buildEmbedBackend(ctx context.Context, cfg config.Config) (provider.Backend, provider.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "langchain":
		b, err := provider.NewLangchainBackend(cfg.ProviderAPIKeyEmbedding, cfg.EmbeddingModelName, cfg.ChatModelName)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	case "bedrock":
		b, err := provider.NewBedrockBackend(ctx, cfg.BedrockRegion, cfg.BedrockModelID)
		if err != nil {
			return nil, nil, err
		}
		fallback, err := provider.NewLangchainBackend(cfg.ProviderAPIKeyEmbedding, cfg.EmbeddingModelName, cfg.ChatModelName)
		if err != nil {
			return nil, nil, err
		}
		return b, fallback, nil
	default:
		return nil, nil, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", cfg.EmbeddingProvider)
	}
}
