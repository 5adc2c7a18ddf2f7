// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/ManuGH/sessionforge/internal/audit"
	"github.com/ManuGH/sessionforge/internal/auth"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

var auditLogger = audit.NewLogger()

// httpMetrics records request count and latency keyed by method, route
// pattern (not raw path, to avoid per-id cardinality), and status.
func httpMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		metrics.ObserveHTTPRequest(r.Method, path, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
	})
}

// recoverer turns a panicking handler into a 500 instead of crashing the
// process, logging the stack for diagnosis.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithComponentFromContext(r.Context(), "httpapi").
					Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered in http handler")
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeaders applies the baseline header set a public-facing API
// serves regardless of route.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// cors allows any origin to call the API; the mobile client has no origin
// header at all and the only browser-facing surface is the admin page.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Secret")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies a global per-IP request budget via httprate; one budget
// covers the authenticated and unauthenticated surfaces alike.
func rateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 100
	}
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// Verifier resolves an opaque bearer token, matching auth.Resolver's
// dependency so the middleware can be built without importing a concrete
// identity backend.
type Verifier = auth.Verifier

// requireAuth resolves the request's bearer token into a Principal and
// attaches it to the request context, rejecting the request with 401 when
// the token is missing or invalid.
func requireAuth(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractBearerToken(r)
			p, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if token == "" {
					auditLogger.AuthMissing(r.RemoteAddr, r.URL.Path)
				} else {
					auditLogger.AuthFailure(r.RemoteAddr, r.URL.Path, err.Error())
				}
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
			ctx := auth.ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAdminSecret gates the admin surface behind a shared secret passed
// in the X-Admin-Secret header, separate from the per-user bearer flow.
func requireAdminSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.AuthorizeToken(r.Header.Get("X-Admin-Secret"), secret) {
				auditLogger.AuthFailure(r.RemoteAddr, r.URL.Path, "bad or missing admin secret")
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
