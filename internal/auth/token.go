// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth extracts bearer tokens from inbound requests and resolves
// them, via a black-box identity verifier, into a domain Principal.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ExtractBearerToken reads the Authorization header's Bearer token. Identity
// token verification itself is out of scope: the token is handed to a
// Verifier as an opaque string and the subject/email it returns is what
// this package resolves into a Principal.
func ExtractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// AuthorizeToken returns true if got matches expected using constant-time comparison.
// Empty tokens are always treated as unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
