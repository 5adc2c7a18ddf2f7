// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/google/uuid"
)

// Verifier is the black-box identity token verifier: validates an opaque
// bearer token and returns the external subject and, when available, the
// account email. Concrete implementations (e.g. Firebase, a project's own
// identity service) live outside this package.
type Verifier interface {
	Verify(ctx context.Context, token string) (subject, email string, err error)
}

// ErrInvalidToken is returned when a token fails verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Resolver turns a verified external subject into a durable Principal,
// creating one on first sight (get-or-create, keyed on external subject).
type Resolver struct {
	verifier   Verifier
	principals store.Principals
}

// NewResolver constructs a Resolver.
func NewResolver(verifier Verifier, principals store.Principals) *Resolver {
	return &Resolver{verifier: verifier, principals: principals}
}

// Resolve verifies token and returns the corresponding Principal, creating
// one with zero credits on first sight.
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	subject, email, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	p, err := r.principals.GetByExternalSubject(ctx, subject)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("auth: lookup principal: %w", err)
	}

	p = &model.Principal{
		ID:                uuid.NewString(),
		ExternalSubject:   subject,
		Email:             email,
		PreferredLanguage: "pt",
		CreatedAt:         time.Now(),
	}
	if err := r.principals.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("auth: create principal: %w", err)
	}
	return p, nil
}
