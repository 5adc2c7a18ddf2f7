// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpapi wires the external HTTP surface (§6) over the domain
// services: chi router, middleware stack, and one handler file per
// resource group.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/auth"
	"github.com/ManuGH/sessionforge/internal/log"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		_lg := log.WithComponent("httpapi")
		_lg.Error().Err(err).Msg("failed to encode response body")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError classifies err against the apperrors taxonomy and writes the
// matching status code. ErrAlreadyProcessed maps to 200 with an
// already_processed marker rather than an error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperrors.ErrAlreadyProcessed) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
		return
	}

	class := apperrors.ClassOf(err)
	status := apperrors.HTTPStatus(class)

	logger := log.WithComponentFromContext(r.Context(), "httpapi")
	if status >= 500 {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}

	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(apperrors.ErrValidation, err)
	}
	return nil
}

// principalFrom reads the Principal the auth middleware attached to the
// request context; handlers call this after passing through requireAuth.
func principalFrom(r *http.Request) (string, bool) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		return "", false
	}
	return p.ID, true
}
