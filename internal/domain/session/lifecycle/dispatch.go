// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/log"
)

// Dispatch validates ev against the current status and returns the target
// status on success. It does not mutate any store; callers apply the
// returned status inside their own transaction.
func Dispatch(current model.SessionStatus, ev Event) (model.SessionStatus, error) {
	t, ok := TransitionFor(current, ev.Kind)
	if !ok {
		return current, ErrIllegalTransition(current, ev.Kind)
	}

	lg := log.WithComponent("session.lifecycle")
	lg.Debug().
		Str("session_id", ev.SessionID).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("event", ev.Kind.String()).
		Str("detail_code", t.DetailCode).
		Msg(t.Reason)

	return t.To, nil
}

// ApplyTransition is a convenience wrapper for callers that only have a
// *model.Session and want to mutate it in place after validating the event.
func ApplyTransition(s *model.Session, ev Event) error {
	next, err := Dispatch(s.Status, ev)
	if err != nil {
		return err
	}
	s.Status = next
	return nil
}
