// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package apperrors defines the closed set of sentinel errors the service
// classifies all failures into, and a classifier mapping internal reason
// codes onto one of them. Handlers match with errors.Is/errors.As rather
// than inspecting custom error types.
package apperrors

import "errors"

var (
	// ErrValidation covers malformed bodies, disallowed content types,
	// unsupported languages, unknown packages. Surfaced verbatim (400).
	ErrValidation = errors.New("validation error")

	// ErrNotFound covers both "does not exist" and "exists but not owned by
	// the caller" — collapsed into one class to avoid leaking ownership (404).
	ErrNotFound = errors.New("not found")

	// ErrStateConflict covers appending to a closed session, finalizing a
	// non-open session, or double-finalize (400).
	ErrStateConflict = errors.New("state conflict")

	// ErrInsufficientCredits is not surfaced as an HTTP error: finalize
	// downgrades to no_credits instead. Kept as a sentinel for internal
	// control flow and logging.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAlreadyProcessed marks an idempotent-replay outcome (webhook event
	// for an already-completed payment). Surfaced as 200, not an error to
	// the client, but used internally to distinguish the no-op path.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrProviderFailure covers a single failed call to an external AI
	// provider (worker-only; recovered by skip or fallback).
	ErrProviderFailure = errors.New("provider failure")

	// ErrFatalJob covers misconfigured provider at stage entry or a DB
	// commit failure; marks the job and session failed.
	ErrFatalJob = errors.New("fatal job failure")

	// ErrBadSignature covers a webhook whose signature fails verification (400).
	ErrBadSignature = errors.New("bad webhook signature")

	// ErrMissingSecret covers a webhook received while no verification
	// secret is configured (500).
	ErrMissingSecret = errors.New("missing webhook secret")
)

// Class is the taxonomy kind a given error maps onto, independent of its
// concrete sentinel or wrapped detail.
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassNotFound
	ClassStateConflict
	ClassInsufficientCredits
	ClassAlreadyProcessed
	ClassProviderFailure
	ClassFatalJob
	ClassBadSignature
	ClassMissingSecret
)

// ClassOf classifies err into one of the taxonomy's kinds by walking its
// error chain against the package's sentinels.
func ClassOf(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrStateConflict):
		return ClassStateConflict
	case errors.Is(err, ErrInsufficientCredits):
		return ClassInsufficientCredits
	case errors.Is(err, ErrAlreadyProcessed):
		return ClassAlreadyProcessed
	case errors.Is(err, ErrProviderFailure):
		return ClassProviderFailure
	case errors.Is(err, ErrFatalJob):
		return ClassFatalJob
	case errors.Is(err, ErrBadSignature):
		return ClassBadSignature
	case errors.Is(err, ErrMissingSecret):
		return ClassMissingSecret
	default:
		return ClassUnknown
	}
}

// HTTPStatus maps a Class onto its representative status code for the
// request tier. The worker tier never calls this — it only logs and
// mutates state.
func HTTPStatus(c Class) int {
	switch c {
	case ClassValidation, ClassStateConflict, ClassBadSignature:
		return 400
	case ClassNotFound:
		return 404
	case ClassMissingSecret:
		return 500
	case ClassAlreadyProcessed:
		return 200
	default:
		return 500
	}
}
