// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/sessionforge/internal/bootstrap"
	"github.com/ManuGH/sessionforge/internal/config"
	"github.com/ManuGH/sessionforge/internal/domain/pipeline"
	xglog "github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/notify"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/telemetry"
	"github.com/ManuGH/sessionforge/internal/version"
	"github.com/rs/zerolog"
)

func main() {
	xglog.Configure(xglog.Config{Level: "info", Service: "sessionforge-worker", Version: version.Version})
	logger := xglog.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "sessionforge-worker", Version: version.Version})

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TelemetryEnabled,
		ServiceName:    "sessionforge-worker",
		ServiceVersion: version.Version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.TelemetryExporterType,
		Endpoint:       cfg.TelemetryEndpoint,
		SamplingRate:   cfg.TelemetrySamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init telemetry provider")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	infra, err := bootstrap.Wire(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire storage/provider infrastructure")
	}
	defer func() { _ = infra.Backend.Close() }()

	q, err := queue.NewRedisQueue(ctx, cfg.RedisURL, cfg.WorkerLeaseTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to job queue")
	}

	notifier := buildNotifier(cfg, logger)

	orch := pipeline.New(infra.Backend, infra.Gateway, infra.Router, infra.Index, q, notifier, pipeline.Config{
		WorkerCount:           cfg.WorkerCount,
		EmbeddingsEnabled:     cfg.EnableEmbeddings,
		EmbeddingProviderName: cfg.EmbeddingProvider,
	})

	logger.Info().Int("worker_count", cfg.WorkerCount).Msg("pipeline orchestrator starting")
	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("pipeline orchestrator failed")
	}
	logger.Info().Msg("worker exiting")
}

// buildNotifier wires the FCM push sink when identity service-account
// credentials are configured, falling back to a no-op sink in dev.
func buildNotifier(cfg config.Config, logger zerolog.Logger) notify.Sink {
	if cfg.IdentityProjectID == "" || cfg.IdentityCredentialsB64 == "" {
		logger.Warn().Msg("no FCM credentials configured, push notifications disabled")
		return notify.NopSink{}
	}

	tokens, err := notify.NewServiceAccountTokenSource(cfg.IdentityCredentialsB64)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build FCM token source, push notifications disabled")
		return notify.NopSink{}
	}
	return notify.NewFCMSink(cfg.IdentityProjectID, tokens)
}
