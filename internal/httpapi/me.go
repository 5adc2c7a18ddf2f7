// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"fmt"
	"net/http"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/store"
)

// supportedLanguages is the allowlist for POST /me/preferred-language.
var supportedLanguages = map[string]bool{
	"pt": true,
	"en": true,
}

type meHandler struct {
	ledger     *credit.Ledger
	principals store.Principals
}

func (h *meHandler) credits(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	balance, err := h.ledger.Balance(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credits": balance})
}

type fcmTokenRequest struct {
	Token string `json:"token"`
}

func (h *meHandler) setFCMToken(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	var req fcmTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.principals.SetPushToken(r.Context(), ownerID, req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type preferredLanguageRequest struct {
	Language string `json:"language"`
}

func (h *meHandler) setPreferredLanguage(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	var req preferredLanguageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !supportedLanguages[req.Language] {
		writeError(w, r, fmt.Errorf("%w: language must be one of pt, en", apperrors.ErrValidation))
		return
	}
	if err := h.principals.SetPreferredLanguage(r.Context(), ownerID, req.Language); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
