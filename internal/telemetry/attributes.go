// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the sessionforge application.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Session/pipeline attributes
	SessionIDKey     = "session.id"
	SessionTypeKey   = "session.type"
	PipelineStageKey = "pipeline.stage"

	// Provider attributes
	ProviderNameKey       = "provider.name"
	ProviderCapabilityKey = "provider.capability"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes creates session/pipeline span attributes. Fields left
// empty are omitted.
func SessionAttributes(sessionID, sessionType, stage string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if sessionType != "" {
		attrs = append(attrs, attribute.String(SessionTypeKey, sessionType))
	}
	if stage != "" {
		attrs = append(attrs, attribute.String(PipelineStageKey, stage))
	}
	return attrs
}

// ProviderAttributes creates AI-provider call span attributes.
func ProviderAttributes(name, capability string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProviderNameKey, name),
		attribute.String(ProviderCapabilityKey, capability),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
