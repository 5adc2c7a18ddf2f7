// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"net/http"

	"github.com/ManuGH/sessionforge/internal/domain/pipeline"
	"github.com/ManuGH/sessionforge/internal/log"
	"github.com/ManuGH/sessionforge/internal/queue"
	"github.com/ManuGH/sessionforge/internal/store"
	"github.com/go-chi/chi/v5"
)

// adminHandler serves the operator-only diagnostics surface: pipeline job
// counts by status, the recent audit/request log buffer, and
// operator-triggered session reprocessing, gated behind requireAdminSecret
// rather than the per-user bearer flow.
type adminHandler struct {
	jobs     store.Jobs
	sessions store.Sessions
	queue    queue.Queue
}

func (h *adminHandler) jobStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.jobs.CountByStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs_by_status": counts})
}

func (h *adminHandler) recentLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": log.GetRecentLogs(),
		"metrics": log.GetBufferMetrics(),
	})
}

// reprocess re-enqueues a finished session's pipeline at no credit cost.
// The new AIJob carries credits_used = 0; embeddings and AI-generated
// blocks from the prior run are appended to, not replaced.
func (h *adminHandler) reprocess(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	sess, err := h.sessions.GetForWorker(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	job, err := pipeline.Reprocess(r.Context(), h.sessions, h.jobs, h.queue, sessionID, sess.OwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

type logLevelRequest struct {
	Level string `json:"level"`
}

func (h *adminHandler) setLogLevel(w http.ResponseWriter, r *http.Request) {
	var req logLevelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := log.SetLevel(r.Context(), "admin", []string{"admin"}, req.Level); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
