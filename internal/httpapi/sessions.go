// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"net/http"

	"github.com/ManuGH/sessionforge/internal/domain/credit"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/ManuGH/sessionforge/internal/domain/session"
	"github.com/go-chi/chi/v5"
)

type sessionsHandler struct {
	sessions *session.Service
	ledger   *credit.Ledger
}

type createSessionRequest struct {
	Type            model.SessionType `json:"type"`
	CaptureLanguage *string           `json:"capture_language,omitempty"`
}

type sessionResponse struct {
	ID              string             `json:"id"`
	OwnerID         string             `json:"owner_id"`
	Type            model.SessionType  `json:"type"`
	Status          model.SessionStatus `json:"status"`
	CreatedAt       string             `json:"created_at"`
	FinalizedAt     *string            `json:"finalized_at,omitempty"`
	ProcessedAt     *string            `json:"processed_at,omitempty"`
	Summary         *string            `json:"summary,omitempty"`
	SuggestedTitle  *string            `json:"suggested_title,omitempty"`
	CaptureLanguage *string            `json:"capture_language,omitempty"`
}

func toSessionResponse(s *model.Session) sessionResponse {
	resp := sessionResponse{
		ID: s.ID, OwnerID: s.OwnerID, Type: s.Type, Status: s.Status,
		CreatedAt: s.CreatedAt.Format(timeLayout),
		Summary:   s.Summary, SuggestedTitle: s.SuggestedTitle, CaptureLanguage: s.CaptureLanguage,
	}
	if s.FinalizedAt != nil {
		f := s.FinalizedAt.Format(timeLayout)
		resp.FinalizedAt = &f
	}
	if s.ProcessedAt != nil {
		p := s.ProcessedAt.Format(timeLayout)
		resp.ProcessedAt = &p
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func (h *sessionsHandler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.sessions.Create(r.Context(), ownerID, req.Type, req.CaptureLanguage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *sessionsHandler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	sessionID := chi.URLParam(r, "id")

	sess, err := h.sessions.Get(r.Context(), sessionID, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *sessionsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	sessionID := chi.URLParam(r, "id")

	if err := h.sessions.Delete(r.Context(), sessionID, ownerID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type appendBlockRequest struct {
	Type        model.BlockType `json:"type"`
	TextContent *string         `json:"text_content,omitempty"`
	MediaRef    *string         `json:"media_ref,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

type blockResponse struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Type        model.BlockType `json:"type"`
	TextContent *string         `json:"text_content,omitempty"`
	MediaRef    *string         `json:"media_ref,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

func toBlockResponse(b model.Block) blockResponse {
	return blockResponse{
		ID: b.ID, SessionID: b.SessionID, Type: b.Type,
		TextContent: b.TextContent, MediaRef: b.MediaRef, Metadata: b.Metadata,
		CreatedAt: b.CreatedAt.Format(timeLayout),
	}
}

func (h *sessionsHandler) appendBlock(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	sessionID := chi.URLParam(r, "id")

	var req appendBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	b, err := h.sessions.AppendBlock(r.Context(), sessionID, ownerID, session.BlockSpec{
		Type: req.Type, TextContent: req.TextContent, MediaRef: req.MediaRef, Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockResponse(*b))
}

func (h *sessionsHandler) listBlocks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	sessionID := chi.URLParam(r, "id")

	blocks, err := h.sessions.ListBlocks(r.Context(), sessionID, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]blockResponse, len(blocks))
	for i, b := range blocks {
		resp[i] = toBlockResponse(b)
	}
	writeJSON(w, http.StatusOK, resp)
}

// finalize takes no request body: whether the session gets AI enrichment
// is decided here from the live credit balance, never by the client. The
// advisory read can race a concurrent debit; Finalize's conditional debit
// is what actually settles it, degrading to no_credits on a lost race.
func (h *sessionsHandler) finalize(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	sessionID := chi.URLParam(r, "id")

	withAI, err := h.ledger.HasAtLeast(r.Context(), ownerID, credit.SessionProcessingCost)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.sessions.Finalize(r.Context(), sessionID, ownerID, withAI)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSessionResponse(sess))
}
