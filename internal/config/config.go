// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the immutable process configuration from environment
// variables, with an optional YAML file watched for hot-reloadable fields.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingIdentityConfig is returned when identity provider configuration
// or the payments webhook secret is absent while Environment is production.
var ErrMissingIdentityConfig = errors.New("missing identity configuration in production")

// Config is the immutable, fully-resolved process configuration. A single
// instance is constructed once at startup and passed explicitly into
// constructors; it is never held as mutable package-level state.
type Config struct {
	Environment string // "dev" or "production"
	LogLevel    string

	DatabaseURL string // postgres://... or sqlite://path/to/file.db (sqlite:///abs for an absolute path)
	RedisURL    string // job broker / idempotency cache

	IdentityProjectID    string
	IdentityCredentialsB64 string // base64-encoded service-account JSON

	PaymentsSecretKey    string
	PaymentsWebhookSecret string

	StorageEndpoint  string
	StorageBucket    string
	StorageAccessKey string
	StorageSecretKey string
	StorageRegion    string
	PresignTTL       time.Duration

	ProviderAPIKeyChat      string
	ProviderAPIKeyEmbedding string
	ProviderAPIKeySpeech    string
	ProviderAPIKeyVision    string
	ProviderSpeechEndpoint  string
	ProviderVisionEndpoint  string
	ProviderSpeechFallbackEndpoint string
	ProviderVisionFallbackEndpoint string
	ProviderRateLimitPerSecond     float64 // per-backend sustained call cap; 0 disables

	// ProviderOutboundPolicyEnabled gates configured speech/vision provider
	// endpoints through an SSRF allowlist before the router dials them.
	ProviderOutboundPolicyEnabled   bool
	ProviderOutboundAllowHosts      []string
	ProviderOutboundAllowCIDRs      []string
	ProviderOutboundAllowPorts      []int
	ProviderOutboundAllowSchemes    []string

	AIProvider        string // "anthropic" | "bedrock" | "langchain"
	EmbeddingProvider string // "langchain" | "bedrock"
	EnableEmbeddings  bool
	ChatModelName      string // langchain-backend chat model name
	EmbeddingModelName string // langchain-backend embedding model name
	BedrockRegion      string
	BedrockModelID     string

	HTTPAddr        string
	RateLimitGlobal int
	RateLimitAuth   int
	AdminSharedSecret string // gates the operator diagnostics surface

	WorkerCount     int
	WorkerLeaseTTL  time.Duration
	HeartbeatEvery  time.Duration

	ConfigFile string // optional YAML override path, watched via fsnotify

	TelemetryEnabled      bool
	TelemetryExporterType string // "grpc" or "http"
	TelemetryEndpoint     string
	TelemetrySamplingRate float64

	// CacheDir is the on-disk root for the Badger-backed cache fallback
	// used when Redis is unreachable at startup.
	CacheDir string
}

// Load resolves Config from the process environment, matching exactly the
// recognized options of the external interfaces surface.
func Load() (Config, error) {
	cfg := Config{
		Environment: ParseString("ENVIRONMENT", "dev"),
		LogLevel:    ParseString("LOG_LEVEL", "info"),

		DatabaseURL: ParseString("DATABASE_URL", "sqlite://./data/sessionai.db"),
		RedisURL:    ParseString("REDIS_URL", "redis://localhost:6379/0"),

		IdentityProjectID:      ParseString("IDENTITY_PROJECT_ID", ""),
		IdentityCredentialsB64: ParseString("IDENTITY_CREDENTIALS_B64", ""),

		PaymentsSecretKey:     ParseString("PAYMENTS_SECRET_KEY", ""),
		PaymentsWebhookSecret: ParseString("PAYMENTS_WEBHOOK_SECRET", ""),

		StorageEndpoint:  ParseString("S3_ENDPOINT", ""),
		StorageBucket:    ParseString("S3_BUCKET", ""),
		StorageAccessKey: ParseString("S3_ACCESS_KEY", ""),
		StorageSecretKey: ParseString("S3_SECRET_KEY", ""),
		StorageRegion:    ParseString("S3_REGION", "auto"),
		PresignTTL:       ParseDuration("S3_PRESIGN_TTL", 10*time.Minute),

		ProviderAPIKeyChat:      ParseString("PROVIDER_API_KEY_CHAT", ""),
		ProviderAPIKeyEmbedding: ParseString("PROVIDER_API_KEY_EMBEDDING", ""),
		ProviderAPIKeySpeech:    ParseString("PROVIDER_API_KEY_SPEECH", ""),
		ProviderAPIKeyVision:    ParseString("PROVIDER_API_KEY_VISION", ""),
		ProviderSpeechEndpoint:  ParseString("PROVIDER_SPEECH_ENDPOINT", "https://api.openai.com/v1/audio/transcriptions"),
		ProviderVisionEndpoint:  ParseString("PROVIDER_VISION_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
		ProviderSpeechFallbackEndpoint: ParseString("PROVIDER_SPEECH_FALLBACK_ENDPOINT", ""),
		ProviderVisionFallbackEndpoint: ParseString("PROVIDER_VISION_FALLBACK_ENDPOINT", ""),
		ProviderRateLimitPerSecond:     ParseFloat("PROVIDER_RATE_LIMIT_PER_SECOND", 0),

		ProviderOutboundPolicyEnabled: ParseBool("PROVIDER_OUTBOUND_POLICY_ENABLED", true),
		ProviderOutboundAllowHosts:    ParseStringSlice("PROVIDER_OUTBOUND_ALLOW_HOSTS", []string{"api.openai.com"}),
		ProviderOutboundAllowCIDRs:    ParseStringSlice("PROVIDER_OUTBOUND_ALLOW_CIDRS", nil),
		ProviderOutboundAllowPorts:    ParseIntSlice("PROVIDER_OUTBOUND_ALLOW_PORTS", []int{443}),
		ProviderOutboundAllowSchemes:  ParseStringSlice("PROVIDER_OUTBOUND_ALLOW_SCHEMES", []string{"https"}),

		AIProvider:        ParseString("AI_PROVIDER", "anthropic"),
		EmbeddingProvider: ParseString("EMBEDDING_PROVIDER", "langchain"),
		EnableEmbeddings:  ParseBool("ENABLE_EMBEDDINGS", true),
		ChatModelName:      ParseString("CHAT_MODEL_NAME", "gpt-4o-mini"),
		EmbeddingModelName: ParseString("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),
		BedrockRegion:      ParseString("BEDROCK_REGION", "us-east-1"),
		BedrockModelID:     ParseString("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),

		HTTPAddr:        ParseString("HTTP_ADDR", ":8080"),
		RateLimitGlobal: ParseInt("RATE_LIMIT_GLOBAL", 100),
		RateLimitAuth:   ParseInt("RATE_LIMIT_AUTH", 20),
		AdminSharedSecret: ParseString("ADMIN_SHARED_SECRET", ""),

		WorkerCount:    ParseInt("WORKER_COUNT", 4),
		WorkerLeaseTTL: ParseDuration("WORKER_LEASE_TTL", 5*time.Minute),
		HeartbeatEvery: ParseDuration("WORKER_HEARTBEAT_EVERY", 30*time.Second),

		ConfigFile: ParseString("CONFIG_FILE", ""),

		TelemetryEnabled:      ParseBool("TELEMETRY_ENABLED", false),
		TelemetryExporterType: ParseString("TELEMETRY_EXPORTER", "grpc"),
		TelemetryEndpoint:     ParseString("TELEMETRY_ENDPOINT", "localhost:4317"),
		TelemetrySamplingRate: ParseFloat("TELEMETRY_SAMPLING_RATE", 0.1),

		CacheDir: ParseString("CACHE_DIR", "./data/cache"),
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the fail-fast production invariant: missing identity
// configuration or webhook secret is fatal only when Environment is
// "production".
func Validate(cfg Config) error {
	if cfg.Environment == "production" {
		if cfg.IdentityProjectID == "" || cfg.IdentityCredentialsB64 == "" {
			return fmt.Errorf("%w: IDENTITY_PROJECT_ID and IDENTITY_CREDENTIALS_B64 are required", ErrMissingIdentityConfig)
		}
		if cfg.PaymentsWebhookSecret == "" {
			return fmt.Errorf("%w: PAYMENTS_WEBHOOK_SECRET is required", ErrMissingIdentityConfig)
		}
	}
	return nil
}
