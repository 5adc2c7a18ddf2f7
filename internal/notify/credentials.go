// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2/google"
)

// fcmScope is the OAuth2 scope the FCM HTTP v1 API requires.
const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// NewServiceAccountTokenSource builds a TokenSource that mints FCM access
// tokens from a base64-encoded service-account JSON key, refreshed
// automatically by the oauth2 library as tokens expire.
func NewServiceAccountTokenSource(credentialsB64 string) (TokenSource, error) {
	raw, err := base64.StdEncoding.DecodeString(credentialsB64)
	if err != nil {
		return nil, fmt.Errorf("notify: decode service account credentials: %w", err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(raw, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("notify: parse service account credentials: %w", err)
	}

	return func(ctx context.Context) (string, error) {
		token, err := jwtCfg.TokenSource(ctx).Token()
		if err != nil {
			return "", fmt.Errorf("notify: mint access token: %w", err)
		}
		return token.AccessToken, nil
	}, nil
}
