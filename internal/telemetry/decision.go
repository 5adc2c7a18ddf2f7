// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// creditDecisionAttributes whitelists the span attributes RecordCreditDecision
// is allowed to set. Owner ID is deliberately excluded: per-owner values on a
// span attribute would turn trace cardinality into a per-user concern.
var creditDecisionAttributes = map[attribute.Key]bool{
	"sessionforge.credit.outcome": true,
	"sessionforge.credit.amount":  true,
}

// RecordCreditDecision annotates the current span and emits a counter metric
// for a credit ledger operation: outcome is "granted", "denied", "credited",
// or "refunded". The metric uses the globally registered MeterProvider, so a
// process that never calls otel.SetMeterProvider gets the no-op
// implementation and pays only the cost of the no-op counter add.
func RecordCreditDecision(ctx context.Context, outcome string, amount int) {
	meter := otel.GetMeterProvider().Meter("sessionforge.credit")
	counter, err := meter.Int64Counter("sessionforge_credit_decision_total",
		metric.WithDescription("credit ledger operations by outcome"))
	if err == nil {
		counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	attrs := []attribute.KeyValue{
		attribute.String("sessionforge.credit.outcome", outcome),
		attribute.Int("sessionforge.credit.amount", amount),
	}
	for _, kv := range attrs {
		if !creditDecisionAttributes[kv.Key] {
			return
		}
	}
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
