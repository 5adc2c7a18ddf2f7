// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import "github.com/ManuGH/sessionforge/internal/domain/model"

// Transition is one legal (From, Event) -> To row.
type Transition struct {
	From       model.SessionStatus
	To         model.SessionStatus
	Event      EventKind
	Reason     string // human-readable, used in logs
	DetailCode string // stable machine-readable code
}

// table is the closed set of legal transitions. Anything not listed here
// is rejected by TransitionFor.
var table = []Transition{
	{
		From: model.SessionOpen, To: model.SessionPendingProcessing,
		Event: EventFinalizeWithCredit, Reason: "finalized with an available credit",
		DetailCode: "finalize.credit_debited",
	},
	{
		From: model.SessionOpen, To: model.SessionNoCredits,
		Event: EventFinalizeNoCredit, Reason: "finalized with no credits available",
		DetailCode: "finalize.no_credits",
	},
	{
		From: model.SessionPendingProcessing, To: model.SessionProcessing,
		Event: EventOrchestratorStart, Reason: "orchestrator claimed the pending job",
		DetailCode: "orchestrator.started",
	},
	{
		From: model.SessionProcessing, To: model.SessionProcessed,
		Event: EventPipelineSuccess, Reason: "all pipeline stages completed",
		DetailCode: "pipeline.success",
	},
	{
		From: model.SessionProcessing, To: model.SessionFailed,
		Event: EventPipelineFatalError, Reason: "a pipeline stage failed fatally",
		DetailCode: "pipeline.fatal_error",
	},
}

// TransitionFor looks up the legal transition for (from, event), if any.
func TransitionFor(from model.SessionStatus, ev EventKind) (Transition, bool) {
	for _, t := range table {
		if t.From == from && t.Event == ev {
			return t, true
		}
	}
	return Transition{}, false
}
