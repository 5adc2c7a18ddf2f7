// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"net/http"

	"github.com/ManuGH/sessionforge/internal/auth"
	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/domain/media"
	"github.com/ManuGH/sessionforge/internal/domain/payment"
	"github.com/ManuGH/sessionforge/internal/domain/search"
	"github.com/ManuGH/sessionforge/internal/domain/session"
	"github.com/ManuGH/sessionforge/internal/health"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config collects every dependency the router needs to wire the full HTTP
// surface (§6) over the domain services.
type Config struct {
	Sessions   *session.Service
	Media      *media.Registry
	Ledger     *credit.Ledger
	Principals store.Principals
	Search     *search.Service
	Catalog    *payment.Catalog
	Reconciler *payment.Reconciler
	Jobs       store.Jobs
	// SessionsStore and Queue back the admin reprocess endpoint, which
	// operates outside any one owner's auth context.
	SessionsStore store.Sessions
	Queue         queue.Queue
	Health        *health.Manager

	AuthResolver       *auth.Resolver
	AdminSecret        string
	RateLimitPerMinute int
}

// New assembles the chi router: global middleware, then one route group
// per resource, each gated by the auth scheme its operations require.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(recoverer)
	r.Use(cors)
	r.Use(securityHeaders)
	r.Use(log.Middleware())
	r.Use(httpMetrics)
	r.Use(rateLimit(cfg.RateLimitPerMinute))

	r.Get("/health", cfg.Health.ServeHealth)
	r.Get("/ready", cfg.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	sessions := &sessionsHandler{sessions: cfg.Sessions, ledger: cfg.Ledger}
	uploads := &uploadsHandler{media: cfg.Media}
	me := &meHandler{ledger: cfg.Ledger, principals: cfg.Principals}
	searchHTTP := &searchHandler{search: cfg.Search}
	payments := &paymentsHandler{catalog: cfg.Catalog, reconciler: cfg.Reconciler}
	admin := &adminHandler{jobs: cfg.Jobs, sessions: cfg.SessionsStore, queue: cfg.Queue}

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/{provider}", payments.webhook)
	})

	r.Get("/payments/packages", payments.listPackages)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(cfg.AuthResolver))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessions.create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessions.get)
				r.Delete("/", sessions.delete)
				r.Post("/blocks", sessions.appendBlock)
				r.Get("/blocks", sessions.listBlocks)
				r.Post("/finalize", sessions.finalize)
				r.Delete("/media/{media_id}", uploads.delete)
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/presign", uploads.presign)
			r.Post("/commit", uploads.commit)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/credits", me.credits)
			r.Post("/fcm-token", me.setFCMToken)
			r.Post("/preferred-language", me.setPreferredLanguage)
		})

		r.Post("/search/semantic", searchHTTP.semantic)

		r.Post("/payments/checkout", payments.createCheckout)
		r.Post("/payments/payment-intent", payments.createPaymentIntent)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAdminSecret(cfg.AdminSecret))
		r.Get("/admin/jobs", admin.jobStats)
		r.Get("/admin/logs", admin.recentLogs)
		r.Post("/admin/log-level", admin.setLogLevel)
		r.Post("/admin/sessions/{id}/reprocess", admin.reprocess)
	})

	return r
}
