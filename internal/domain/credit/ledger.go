// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package credit wraps the store's atomic ledger primitives with the
// service-level contract: debit is the single serialization point for
// concurrent finalize attempts, and the caller degrades to no_credits on
// a failed debit rather than treating it as an error.
package credit

import (
	"context"
	"fmt"

	"github.com/ManuGH/sessionforge/internal/metrics"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/ManuGH/sessionforge/internal/telemetry"
)

// Ledger is the credit-accounting service used by the session and payment
// domains.
type Ledger struct {
	store store.CreditLedger
}

// New constructs a Ledger over the given backend's credit repository.
func New(s store.CreditLedger) *Ledger {
	return &Ledger{store: s}
}

// Balance returns 0 for an unknown owner.
func (l *Ledger) Balance(ctx context.Context, ownerID string) (int, error) {
	return l.store.Balance(ctx, ownerID)
}

// HasAtLeast is advisory only — callers must still attempt Debit and
// handle a false result, since this check is not atomic with the debit.
func (l *Ledger) HasAtLeast(ctx context.Context, ownerID string, n int) (bool, error) {
	return l.store.HasAtLeast(ctx, ownerID, n)
}

// Debit attempts the atomic conditional debit and records the outcome.
func (l *Ledger) Debit(ctx context.Context, ownerID string, n int) (bool, error) {
	ok, err := l.store.Debit(ctx, ownerID, n)
	if err != nil {
		return false, fmt.Errorf("credit: debit: %w", err)
	}
	if ok {
		metrics.CreditsDebitedTotal.Add(float64(n))
		telemetry.RecordCreditDecision(ctx, "granted", n)
	} else {
		telemetry.RecordCreditDecision(ctx, "denied", n)
	}
	return ok, nil
}

// Credit grants n credits unconditionally; n must be > 0.
func (l *Ledger) Credit(ctx context.Context, ownerID string, n int) error {
	if err := l.store.Credit(ctx, ownerID, n); err != nil {
		return fmt.Errorf("credit: credit: %w", err)
	}
	metrics.CreditsGrantedTotal.Add(float64(n))
	telemetry.RecordCreditDecision(ctx, "credited", n)
	return nil
}

// Refund returns previously-debited credits to the owner, used when a
// finalize's downstream commit fails after a successful debit.
func (l *Ledger) Refund(ctx context.Context, ownerID string, n int) error {
	if n <= 0 {
		return nil
	}
	if err := l.store.Credit(ctx, ownerID, n); err != nil {
		return fmt.Errorf("credit: refund: %w", err)
	}
	metrics.CreditsRefundedTotal.Add(float64(n))
	telemetry.RecordCreditDecision(ctx, "refunded", n)
	return nil
}

// SessionProcessingCost is the number of credits one finalize-with-AI
// attempt consumes.
const SessionProcessingCost = 1
