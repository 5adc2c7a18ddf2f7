// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"io"
	"net/http"

	"github.com/ManuGH/sessionforge/internal/domain/payment"
	"github.com/go-chi/chi/v5"
)

type paymentsHandler struct {
	catalog    *payment.Catalog
	reconciler *payment.Reconciler
}

type creditPackageResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Credits  int    `json:"credits"`
	Price    int64  `json:"price_minor"`
	Currency string `json:"currency"`
}

func (h *paymentsHandler) listPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.catalog.ListPackages(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]creditPackageResponse, len(packages))
	for i, pkg := range packages {
		resp[i] = creditPackageResponse{ID: pkg.ID, Name: pkg.Name, Credits: pkg.Credits, Price: pkg.Price, Currency: pkg.Currency}
	}
	writeJSON(w, http.StatusOK, resp)
}

type checkoutRequest struct {
	PackageID  string `json:"package_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (h *paymentsHandler) createCheckout(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	url, err := h.reconciler.CreateCheckout(r.Context(), ownerID, req.PackageID, req.SuccessURL, req.CancelURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

type paymentIntentRequest struct {
	PackageID string `json:"package_id"`
}

func (h *paymentsHandler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	var req paymentIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	clientSecret, intentID, err := h.reconciler.CreatePaymentIntent(r.Context(), ownerID, req.PackageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"client_secret": clientSecret, "payment_intent_id": intentID})
}

// webhook handles POST /webhooks/{provider}. Only "stripe" is wired; any
// other provider path returns 404 since no reconciler is registered for it.
func (h *paymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "provider") != "stripe" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown payment provider"})
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "cannot read request body"})
		return
	}

	if err := h.reconciler.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
