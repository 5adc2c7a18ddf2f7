// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"testing"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionFor(t *testing.T) {
	cases := []struct {
		name    string
		from    model.SessionStatus
		event   EventKind
		wantTo  model.SessionStatus
		wantOK  bool
	}{
		{"open finalizes with credit", model.SessionOpen, EventFinalizeWithCredit, model.SessionPendingProcessing, true},
		{"open finalizes without credit", model.SessionOpen, EventFinalizeNoCredit, model.SessionNoCredits, true},
		{"pending claimed by orchestrator", model.SessionPendingProcessing, EventOrchestratorStart, model.SessionProcessing, true},
		{"processing succeeds", model.SessionProcessing, EventPipelineSuccess, model.SessionProcessed, true},
		{"processing fails fatally", model.SessionProcessing, EventPipelineFatalError, model.SessionFailed, true},
		{"double finalize rejected", model.SessionPendingProcessing, EventFinalizeWithCredit, "", false},
		{"finalize from processed rejected", model.SessionProcessed, EventFinalizeWithCredit, "", false},
		{"orchestrator start from open rejected", model.SessionOpen, EventOrchestratorStart, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := TransitionFor(tc.from, tc.event)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantTo, got.To)
			}
		})
	}
}

func TestDispatchAppliesTransition(t *testing.T) {
	s := &model.Session{ID: "sess_1", Status: model.SessionOpen}
	err := ApplyTransition(s, Event{Kind: EventFinalizeWithCredit, SessionID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, model.SessionPendingProcessing, s.Status)
}

func TestDispatchRejectsIllegalTransition(t *testing.T) {
	s := &model.Session{ID: "sess_2", Status: model.SessionProcessed}
	err := ApplyTransition(s, Event{Kind: EventFinalizeWithCredit, SessionID: s.ID})
	require.Error(t, err)
	assert.Equal(t, model.SessionProcessed, s.Status)
}

func TestPhaseFromState(t *testing.T) {
	assert.Equal(t, PhaseMutable, PhaseFromState(model.SessionOpen))
	assert.Equal(t, PhaseInFlight, PhaseFromState(model.SessionPendingProcessing))
	assert.Equal(t, PhaseInFlight, PhaseFromState(model.SessionProcessing))
	assert.Equal(t, PhaseTerminal, PhaseFromState(model.SessionProcessed))
	assert.Equal(t, PhaseTerminal, PhaseFromState(model.SessionNoCredits))
	assert.Equal(t, PhaseTerminal, PhaseFromState(model.SessionFailed))
}
