// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package payment implements the payment reconciler (C8): checkout-session
// and payment-intent creation, webhook signature verification, and the
// idempotent pending->completed/failed state machine that credits the
// principal on a successful charge.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Reconciler creates checkout sessions / payment intents and reconciles the
// resulting webhook events against the local Payment ledger.
type Reconciler struct {
	payments   store.Payments
	principals store.Principals
	ledger     *credit.Ledger
	catalog    *Catalog

	webhookSecret string
}

// New constructs a Reconciler. secretKey is assigned to stripe.Key at
// startup by the caller (see cmd/server); webhookSecret verifies inbound
// event signatures.
func New(payments store.Payments, principals store.Principals, ledger *credit.Ledger, catalog *Catalog, webhookSecret string) *Reconciler {
	return &Reconciler{payments: payments, principals: principals, ledger: ledger, catalog: catalog, webhookSecret: webhookSecret}
}

func (r *Reconciler) packageByID(ctx context.Context, packageID string) (*model.CreditPackage, error) {
	packages, err := r.catalog.ListPackages(ctx)
	if err != nil {
		return nil, err
	}
	for i := range packages {
		if packages[i].ID == packageID {
			return &packages[i], nil
		}
	}
	return nil, fmt.Errorf("%w: credit package %q", apperrors.ErrNotFound, packageID)
}

// CreateCheckout creates a hosted Stripe Checkout session for pkg and
// records a pending Payment row keyed by the checkout session id.
func (r *Reconciler) CreateCheckout(ctx context.Context, ownerID, packageID, successURL, cancelURL string) (checkoutURL string, err error) {
	pkg, err := r.packageByID(ctx, packageID)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(pkg.ID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(ownerID),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("payment: create checkout session: %w", err)
	}

	payment := &model.Payment{
		ID:                uuid.NewString(),
		PrincipalID:       ownerID,
		CheckoutSessionID: &sess.ID,
		AmountMinor:       pkg.Price,
		Currency:          pkg.Currency,
		CreditsGranted:    pkg.Credits,
		Status:            model.PaymentPending,
		PackageID:         pkg.ID,
		CreatedAt:         time.Now(),
	}
	if err := r.payments.Create(ctx, payment); err != nil {
		// The checkout session was already created upstream; the row is
		// reconciled out-of-band if the eventual webhook finds nothing to
		// update against (see §4.7's orphaned-payment open question).
		_lg := log.WithComponent("payment")
		_lg.Error().Err(err).Str("checkout_session_id", sess.ID).Msg("failed to record pending payment after checkout create")
		return "", fmt.Errorf("payment: record pending payment: %w", err)
	}

	return sess.URL, nil
}

// CreatePaymentIntent creates a Stripe PaymentIntent for in-app (non-hosted)
// checkout and records a pending Payment row keyed by the intent id.
func (r *Reconciler) CreatePaymentIntent(ctx context.Context, ownerID, packageID string) (clientSecret, paymentIntentID string, err error) {
	pkg, err := r.packageByID(ctx, packageID)
	if err != nil {
		return "", "", err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pkg.Price),
		Currency: stripe.String(pkg.Currency),
		Metadata: map[string]string{"owner_id": ownerID, "package_id": pkg.ID},
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("payment: create payment intent: %w", err)
	}

	paymentRow := &model.Payment{
		ID:              uuid.NewString(),
		PrincipalID:     ownerID,
		PaymentIntentID: &intent.ID,
		AmountMinor:     pkg.Price,
		Currency:        pkg.Currency,
		CreditsGranted:  pkg.Credits,
		Status:          model.PaymentPending,
		PackageID:       pkg.ID,
		CreatedAt:       time.Now(),
	}
	if err := r.payments.Create(ctx, paymentRow); err != nil {
		_lg := log.WithComponent("payment")
		_lg.Error().Err(err).Str("payment_intent_id", intent.ID).Msg("failed to record pending payment after intent create")
		return "", "", fmt.Errorf("payment: record pending payment: %w", err)
	}

	return intent.ClientSecret, intent.ID, nil
}

// HandleWebhook verifies the signature on payload and dispatches the event
// to the matching reconciliation path. An unrecognized event type is
// logged and ignored, matching the "typed events, four handled" contract.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if r.webhookSecret == "" {
		return apperrors.ErrMissingSecret
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, r.webhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadSignature, err)
	}

	logger := log.WithComponent("payment")

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("payment: decode checkout.session.completed: %w", err)
		}
		return r.completeByCheckoutSession(ctx, sess.ID)

	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("payment: decode payment_intent.succeeded: %w", err)
		}
		return r.completeByPaymentIntent(ctx, intent.ID)

	case "checkout.session.expired":
		logger.Info().Str("event", "checkout.session.expired").Msg("checkout session expired")
		return nil

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("payment: decode payment_intent.payment_failed: %w", err)
		}
		return r.failByPaymentIntent(ctx, intent.ID)

	default:
		logger.Info().Str("event_type", string(event.Type)).Msg("ignoring unhandled webhook event type")
		return nil
	}
}

// completeByCheckoutSession and completeByPaymentIntent both implement the
// same idempotent transition: missing row -> ignored (logged); already
// completed -> ErrAlreadyProcessed; else complete + credit.
func (r *Reconciler) completeByCheckoutSession(ctx context.Context, checkoutSessionID string) error {
	p, err := r.payments.GetByCheckoutSessionID(ctx, checkoutSessionID)
	if err != nil {
		return r.ignoreMissingPayment(err, "checkout_session_id", checkoutSessionID)
	}
	return r.complete(ctx, p)
}

func (r *Reconciler) completeByPaymentIntent(ctx context.Context, paymentIntentID string) error {
	p, err := r.payments.GetByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		return r.ignoreMissingPayment(err, "payment_intent_id", paymentIntentID)
	}
	return r.complete(ctx, p)
}

func (r *Reconciler) failByPaymentIntent(ctx context.Context, paymentIntentID string) error {
	p, err := r.payments.GetByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		return r.ignoreMissingPayment(err, "payment_intent_id", paymentIntentID)
	}
	return r.payments.MarkFailed(ctx, p.ID)
}

func (r *Reconciler) ignoreMissingPayment(err error, field, value string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		_lg := log.WithComponent("payment")
		_lg.Warn().Str(field, value).Msg("webhook event references an unknown payment row, ignoring")
		return nil
	}
	return fmt.Errorf("payment: lookup payment: %w", err)
}

// complete performs the idempotent complete-then-credit transition. A row
// already in the completed state is reported as already-processed rather
// than an error, since replayed webhook deliveries are expected.
func (r *Reconciler) complete(ctx context.Context, p *model.Payment) error {
	alreadyCompleted, err := r.payments.MarkCompleted(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("payment: mark completed: %w", err)
	}
	if alreadyCompleted {
		return apperrors.ErrAlreadyProcessed
	}

	if err := r.ledger.Credit(ctx, p.PrincipalID, p.CreditsGranted); err != nil {
		return fmt.Errorf("payment: credit principal after completed payment: %w", err)
	}
	return nil
}
