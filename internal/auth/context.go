// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"

	"github.com/ManuGH/sessionforge/internal/domain/model"
)

type principalContextKey struct{}

// ContextWithPrincipal attaches the resolved Principal to ctx, done once by
// the request-tier auth middleware after a successful Resolve.
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the Principal attached by the auth
// middleware, or nil if the request carries none (unauthenticated routes).
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalContextKey{}).(*model.Principal)
	return p
}
