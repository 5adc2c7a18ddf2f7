// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package notify is the best-effort push-notification sink: a fire-and-
// forget delivery surface over FCM-shaped push tokens. Delivery failures
// are logged, never propagated — the pipeline's session_ready notification
// must never fail a job.
package notify

import "context"

// Sink delivers a single push notification to one device token.
type Sink interface {
	Send(ctx context.Context, pushToken, title, body string, data map[string]string) error
}

// NopSink discards every notification; used when no push credentials are
// configured (dev environments, tests).
type NopSink struct{}

func (NopSink) Send(context.Context, string, string, string, map[string]string) error { return nil }

var _ Sink = NopSink{}
