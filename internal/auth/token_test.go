// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.local/test", nil)
	r.Header.Set("Authorization", "Bearer abc123 ")

	if got := ExtractBearerToken(r); got != "abc123" {
		t.Fatalf("ExtractBearerToken() = %q, want %q", got, "abc123")
	}
}

func TestExtractBearerTokenMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.local/test", nil)
	if got := ExtractBearerToken(r); got != "" {
		t.Fatalf("ExtractBearerToken() = %q, want empty", got)
	}

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if got := ExtractBearerToken(r); got != "" {
		t.Fatalf("ExtractBearerToken() with non-Bearer scheme = %q, want empty", got)
	}
}
