// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/store/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func newTestReconciler(t *testing.T) (*Reconciler, *sqlite.Backend, string) {
	t.Helper()
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	ownerID := "owner_1"
	require.NoError(t, backend.Principals().Create(context.Background(), &model.Principal{
		ID: ownerID, ExternalSubject: "ext_1", Credits: 0, CreatedAt: time.Now(),
	}))

	ledger := credit.New(backend.Credits())
	r := New(backend.Payments(), backend.Principals(), ledger, NewCatalog(), testWebhookSecret)
	return r, backend, ownerID
}

func signedPayload(t *testing.T, payload []byte) (string, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return string(signed.Payload), signed.Header
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	err := r.HandleWebhook(context.Background(), []byte(`{"type":"checkout.session.completed"}`), "t=1,v1=bogus")
	require.True(t, errors.Is(err, apperrors.ErrBadSignature))
}

func TestHandleWebhookRejectsWhenNoSecretConfigured(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	r.webhookSecret = ""
	err := r.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=bogus")
	require.True(t, errors.Is(err, apperrors.ErrMissingSecret))
}

func TestHandleWebhookCompletesCheckoutSessionAndCreditsOwner(t *testing.T) {
	r, backend, owner := newTestReconciler(t)
	ctx := context.Background()

	checkoutSessionID := "cs_test_123"
	payment := &model.Payment{
		ID: uuid.NewString(), PrincipalID: owner, CheckoutSessionID: &checkoutSessionID,
		AmountMinor: 999, Currency: "usd", CreditsGranted: 50,
		Status: model.PaymentPending, PackageID: "price_1", CreatedAt: time.Now(),
	}
	require.NoError(t, backend.Payments().Create(ctx, payment))

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"` + checkoutSessionID + `"}}}`)
	rawPayload, sigHeader := signedPayload(t, body)

	require.NoError(t, r.HandleWebhook(ctx, []byte(rawPayload), sigHeader))

	balance, err := backend.Credits().Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 50, balance)

	// Replaying the same event is idempotent: already-processed, no double credit.
	err = r.HandleWebhook(ctx, []byte(rawPayload), sigHeader)
	require.True(t, errors.Is(err, apperrors.ErrAlreadyProcessed))

	balance, err = backend.Credits().Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 50, balance)
}

func TestHandleWebhookIgnoresUnknownCheckoutSession(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	body := []byte(`{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"id":"cs_unknown"}}}`)
	rawPayload, sigHeader := signedPayload(t, body)

	require.NoError(t, r.HandleWebhook(context.Background(), []byte(rawPayload), sigHeader))
}

func TestHandleWebhookFailsPendingPaymentIntent(t *testing.T) {
	r, backend, owner := newTestReconciler(t)
	ctx := context.Background()

	intentID := "pi_test_123"
	payment := &model.Payment{
		ID: uuid.NewString(), PrincipalID: owner, PaymentIntentID: &intentID,
		AmountMinor: 500, Currency: "usd", CreditsGranted: 25,
		Status: model.PaymentPending, PackageID: "price_2", CreatedAt: time.Now(),
	}
	require.NoError(t, backend.Payments().Create(ctx, payment))

	body := []byte(`{"id":"evt_3","type":"payment_intent.payment_failed","data":{"object":{"id":"` + intentID + `"}}}`)
	rawPayload, sigHeader := signedPayload(t, body)

	require.NoError(t, r.HandleWebhook(ctx, []byte(rawPayload), sigHeader))

	got, err := backend.Payments().GetByPaymentIntentID(ctx, intentID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentFailed, got.Status)
}

func TestHandleWebhookIgnoresExpiredCheckoutSession(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	body := []byte(`{"id":"evt_4","type":"checkout.session.expired","data":{"object":{"id":"cs_expired"}}}`)
	rawPayload, sigHeader := signedPayload(t, body)

	require.NoError(t, r.HandleWebhook(context.Background(), []byte(rawPayload), sigHeader))
}
