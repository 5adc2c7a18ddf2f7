// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"net/http"

	"github.com/ManuGH/sessionforge/internal/domain/media"
	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/go-chi/chi/v5"
)

type uploadsHandler struct {
	media *media.Registry
}

type presignRequest struct {
	SessionID   string          `json:"session_id"`
	Kind        model.MediaKind `json:"kind"`
	ContentType string          `json:"content_type"`
}

type presignResponse struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
	MediaID   string `json:"media_id"`
	ExpiresIn int64  `json:"expires_in_seconds"`
}

func (h *uploadsHandler) presign(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	var req presignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.media.Presign(r.Context(), req.SessionID, ownerID, req.Kind, req.ContentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{
		UploadURL: result.UploadURL, ObjectKey: result.ObjectKey, MediaID: result.MediaID,
		ExpiresIn: int64(result.ExpiresIn.Seconds()),
	})
}

type commitRequest struct {
	MediaID   string `json:"media_id"`
	SizeBytes *int64 `json:"size_bytes,omitempty"`
}

func (h *uploadsHandler) commit(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.media.Commit(r.Context(), req.MediaID, ownerID, req.SizeBytes); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// delete backs DELETE /sessions/{id}/media/{media_id}.
func (h *uploadsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	sessionID := chi.URLParam(r, "id")
	mediaID := chi.URLParam(r, "media_id")

	if err := h.media.DeleteOne(r.Context(), mediaID, sessionID, ownerID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
