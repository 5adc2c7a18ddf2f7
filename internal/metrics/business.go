// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionforge_http_requests_total",
		Help: "HTTP requests by method, normalized path and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sessionforge_http_request_duration_seconds",
		Help:    "HTTP request latency by method, normalized path and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionforge_sessions_created_total",
		Help: "Total sessions opened",
	})

	SessionsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionforge_sessions_finalized_total",
		Help: "Total sessions finalized, by outcome (processing|no_credits)",
	}, []string{"outcome"})

	AIJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionforge_ai_jobs_total",
		Help: "AI jobs by job_type and status (created|processing|completed|failed)",
	}, []string{"job_type", "status"})

	AIJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sessionforge_ai_job_duration_seconds",
		Help:    "AI job stage duration by job_type and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"job_type", "status"})

	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionforge_provider_requests_total",
		Help: "Provider calls by provider, capability and outcome",
	}, []string{"provider", "capability", "outcome"})

	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sessionforge_provider_request_duration_seconds",
		Help:    "Provider call latency by provider and capability",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "capability"})

	ProviderTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionforge_provider_tokens_total",
		Help: "Provider token usage by provider, capability and kind (input|output)",
	}, []string{"provider", "capability", "kind"})

	CreditsDebitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionforge_credits_debited_total",
		Help: "Total credits successfully debited",
	})

	CreditsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionforge_credits_refunded_total",
		Help: "Total credits refunded",
	})

	CreditsGrantedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionforge_credits_granted_total",
		Help: "Total credits granted via completed payments",
	})

	PaymentWebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionforge_payment_webhooks_total",
		Help: "Webhook events received by provider and outcome (applied|replayed|rejected)",
	}, []string{"provider", "outcome"})

	SearchQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionforge_search_queries_total",
		Help: "Total semantic search queries executed",
	})
)

// ObserveHTTPRequest records both the counter and the latency histogram for
// one completed HTTP request.
func ObserveHTTPRequest(method, path, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

// RecordAIJob increments the job-status counter and, when a duration is
// known (job left the created state), observes it.
func RecordAIJob(jobType, status string, seconds float64) {
	AIJobsTotal.WithLabelValues(jobType, status).Inc()
	if seconds > 0 {
		AIJobDuration.WithLabelValues(jobType, status).Observe(seconds)
	}
}

// RecordProviderCall records a provider request outcome, its latency, and
// any token usage reported by the provider.
func RecordProviderCall(provider, capability, outcome string, seconds float64, inputTokens, outputTokens int) {
	ProviderRequestsTotal.WithLabelValues(provider, capability, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(provider, capability).Observe(seconds)
	if inputTokens > 0 {
		ProviderTokensTotal.WithLabelValues(provider, capability, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		ProviderTokensTotal.WithLabelValues(provider, capability, "output").Add(float64(outputTokens))
	}
}
