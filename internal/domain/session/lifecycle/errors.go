// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"fmt"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/model"
)

// ErrIllegalTransition wraps apperrors.ErrStateConflict with the specific
// (state, event) pair that was rejected, for logging.
func ErrIllegalTransition(from model.SessionStatus, ev EventKind) error {
	return fmt.Errorf("%w: no transition from %q on event %q", apperrors.ErrStateConflict, from, ev)
}
