// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateOutboundURLProviderEndpoints(t *testing.T) {
	openAIAllow := OutboundAllowlist{
		Hosts:   []string{"api.openai.com"},
		Ports:   []int{443},
		Schemes: []string{"https"},
	}

	t.Run("disabled policy rejects everything", func(t *testing.T) {
		_, err := ValidateOutboundURL(context.Background(), "https://api.openai.com/v1/audio/transcriptions",
			OutboundPolicy{Enabled: false, Allow: openAIAllow})
		require.ErrorIs(t, err, ErrOutboundDisabled)
	})

	t.Run("allowlisted provider endpoint passes", func(t *testing.T) {
		normalized, err := ValidateOutboundURL(context.Background(), "https://api.openai.com/v1/audio/transcriptions",
			OutboundPolicy{Enabled: true, Allow: openAIAllow})
		require.NoError(t, err)
		require.Equal(t, "https://api.openai.com/v1/audio/transcriptions", normalized)
	})

	t.Run("endpoint redirected to metadata ip is rejected", func(t *testing.T) {
		_, err := ValidateOutboundURL(context.Background(), "https://169.254.169.254/latest/meta-data",
			OutboundPolicy{Enabled: true, Allow: openAIAllow})
		require.ErrorContains(t, err, "blocked ip")
	})

	t.Run("endpoint pointed at self-hosted host not on allowlist is rejected", func(t *testing.T) {
		_, err := ValidateOutboundURL(context.Background(), "https://evil.example.com/v1/chat/completions",
			OutboundPolicy{Enabled: true, Allow: openAIAllow})
		require.ErrorIs(t, err, ErrOutboundNotAllowed)
	})

	t.Run("self-hosted vision endpoint allowed via CIDR", func(t *testing.T) {
		_, err := ValidateOutboundURL(context.Background(), "https://10.10.0.5/v1/vision",
			OutboundPolicy{Enabled: true, Allow: OutboundAllowlist{
				CIDRs:   []string{"10.10.0.0/16"},
				Ports:   []int{443},
				Schemes: []string{"https"},
			}})
		require.NoError(t, err)
	})

	t.Run("disallowed scheme is rejected", func(t *testing.T) {
		_, err := ValidateOutboundURL(context.Background(), "ftp://api.openai.com",
			OutboundPolicy{Enabled: true, Allow: openAIAllow})
		require.ErrorContains(t, err, "scheme")
	})

	t.Run("disallowed port is rejected", func(t *testing.T) {
		_, err := ValidateOutboundURL(context.Background(), "https://api.openai.com:8443/v1",
			OutboundPolicy{Enabled: true, Allow: openAIAllow})
		require.ErrorContains(t, err, "port")
	})
}

func TestNormalizeHost(t *testing.T) {
	t.Run("trims trailing dot", func(t *testing.T) {
		got, err := NormalizeHost("api.openai.com.")
		require.NoError(t, err)
		require.Equal(t, "api.openai.com", got)
	})

	t.Run("rejects host with scheme", func(t *testing.T) {
		_, err := NormalizeHost("https://api.openai.com")
		require.Error(t, err)
	})

	t.Run("rejects host with userinfo", func(t *testing.T) {
		_, err := NormalizeHost("user:pass@api.openai.com")
		require.Error(t, err)
	})

	t.Run("normalizes IPv4 literal", func(t *testing.T) {
		got, err := NormalizeHost("169.254.169.254")
		require.NoError(t, err)
		require.Equal(t, "169.254.169.254", got)
	})
}
