// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lifecycle implements the Session state machine as a table of
// explicit transitions, mirroring the shape used elsewhere in this
// codebase for similarly small, closed state machines: a flat slice of
// {From, To, Event} rows looked up by (current state, event) rather than
// a switch statement per state.
package lifecycle

import "github.com/ManuGH/sessionforge/internal/domain/model"

// EventKind enumerates the triggers that can move a session between states.
type EventKind int

const (
	EventFinalizeWithCredit EventKind = iota
	EventFinalizeNoCredit
	EventOrchestratorStart
	EventPipelineSuccess
	EventPipelineFatalError
)

func (k EventKind) String() string {
	switch k {
	case EventFinalizeWithCredit:
		return "finalize_with_credit"
	case EventFinalizeNoCredit:
		return "finalize_no_credit"
	case EventOrchestratorStart:
		return "orchestrator_start"
	case EventPipelineSuccess:
		return "pipeline_success"
	case EventPipelineFatalError:
		return "pipeline_fatal_error"
	default:
		return "unknown"
	}
}

// Event is a single instance of an EventKind applied to a session.
type Event struct {
	Kind      EventKind
	SessionID string
	Detail    string // free-form, e.g. the stage name that failed
}

// Phase groups states for coarse reporting (e.g. "is this session still
// mutable by the client").
type Phase string

const (
	PhaseMutable    Phase = "mutable"    // open
	PhaseInFlight   Phase = "in_flight"  // pending_processing, processing
	PhaseTerminal   Phase = "terminal"   // processed, no_credits, failed
)

// PhaseFromState classifies a status into its coarse phase.
func PhaseFromState(s model.SessionStatus) Phase {
	switch s {
	case model.SessionOpen:
		return PhaseMutable
	case model.SessionPendingProcessing, model.SessionProcessing:
		return PhaseInFlight
	default:
		return PhaseTerminal
	}
}
