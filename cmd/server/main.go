// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/sessionforge/internal/auth"
	"github.com/ManuGH/sessionforge/internal/bootstrap"
	"github.com/ManuGH/sessionforge/internal/config"
	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/domain/media"
	"github.com/ManuGH/sessionforge/internal/domain/payment"
	"github.com/ManuGH/sessionforge/internal/domain/search"
	"github.com/ManuGH/sessionforge/internal/domain/session"
	"github.com/ManuGH/sessionforge/internal/health"
	"github.com/ManuGH/sessionforge/internal/httpapi"
	xglog "github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/telemetry"
	"github.com/ManuGH/sessionforge/internal/version"
	"github.com/stripe/stripe-go/v81"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// passthroughVerifier treats the bearer token itself as the external
// subject. Identity token verification is a black-box collaborator out of
// scope for this service; a production deployment swaps this for a real
// verifier (Firebase, Auth0, ...) behind the same auth.Verifier interface.
type passthroughVerifier struct{}

func (passthroughVerifier) Verify(_ context.Context, token string) (subject, email string, err error) {
	if token == "" {
		return "", "", auth.ErrInvalidToken
	}
	return token, "", nil
}

func main() {
	xglog.Configure(xglog.Config{Level: "info", Service: "sessionforge", Version: version.Version})
	logger := xglog.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "sessionforge", Version: version.Version})

	if cfg.ConfigFile != "" {
		holder := config.NewHolder(cfg, cfg.ConfigFile)
		if err := holder.StartWatcher(ctx); err != nil {
			logger.Warn().Err(err).Str("path", cfg.ConfigFile).Msg("config hot-reload disabled")
		} else {
			defer holder.Stop()
			updates := make(chan config.Config, 1)
			holder.RegisterListener(updates)
			go func() {
				for next := range updates {
					if err := xglog.SetLevel(ctx, "config-reload", nil, next.LogLevel); err != nil {
						logger.Warn().Err(err).Str("level", next.LogLevel).Msg("ignoring invalid log level from config file")
					}
				}
			}()
		}
	}

	stripe.Key = cfg.PaymentsSecretKey

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TelemetryEnabled,
		ServiceName:    "sessionforge",
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

	ledger := credit.New(infra.Backend.Credits())
	mediaRegistry := media.New(infra.Backend.Media(), infra.Backend.Sessions(), infra.Gateway)
	sessionSvc := session.New(infra.Backend.Sessions(), infra.Backend.Jobs(), ledger, mediaRegistry, q)
	searchSvc := search.NewWithCache(infra.Backend.Sessions(), infra.Router, infra.Index, infra.Cache)
	catalog := payment.NewCatalog()
	reconciler := payment.New(infra.Backend.Payments(), infra.Backend.Principals(), ledger, catalog, cfg.PaymentsWebhookSecret)

	authResolver := auth.NewResolver(passthroughVerifier{}, infra.Backend.Principals())

	healthMgr := health.NewManager(version.Version)
	healthMgr.RegisterChecker(health.NewStorageChecker(infra.Backend.Ping))
	healthMgr.RegisterChecker(health.NewBrokerChecker(q.Ping))

	router := httpapi.New(httpapi.Config{
		Sessions:   sessionSvc,
		Media:      mediaRegistry,
		Ledger:     ledger,
		Principals: infra.Backend.Principals(),
		Search:     searchSvc,
		Catalog:    catalog,
		Reconciler: reconciler,
		Jobs:          infra.Backend.Jobs(),
		SessionsStore: infra.Backend.Sessions(),
		Queue:         q,
		Health:        healthMgr,

		AuthResolver:       authResolver,
		AdminSecret:        cfg.AdminSharedSecret,
		RateLimitPerMinute: cfg.RateLimitGlobal,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "sessionforge"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server exiting")
}
