// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ManuGH/sessionforge/internal/apperrors"
	"github.com/ManuGH/sessionforge/internal/domain/search"
)

type searchHandler struct {
	search *search.Service
}

type semanticSearchRequest struct {
	Query         string  `json:"query"`
	K             int     `json:"k,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

type searchHitResponse struct {
	SessionID  string  `json:"session_id"`
	BlockID    *string `json:"block_id,omitempty"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Provider   string  `json:"provider"`
}

const (
	defaultSearchK             = 10
	defaultSearchMinSimilarity = 0.7
)

// parseSearchRequest reads the query/limit/threshold query parameters,
// falling back to a JSON body for clients that POST one instead.
func parseSearchRequest(r *http.Request) (semanticSearchRequest, error) {
	var req semanticSearchRequest

	q := r.URL.Query()
	if q.Get("query") != "" {
		req.Query = q.Get("query")
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return req, fmt.Errorf("%w: limit must be an integer", apperrors.ErrValidation)
			}
			req.K = n
		}
		if raw := q.Get("threshold"); raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return req, fmt.Errorf("%w: threshold must be a number", apperrors.ErrValidation)
			}
			req.MinSimilarity = f
		}
	} else if err := decodeJSON(r, &req); err != nil {
		return req, err
	}

	if req.Query == "" {
		return req, fmt.Errorf("%w: query must not be empty", apperrors.ErrValidation)
	}
	if req.K <= 0 {
		req.K = defaultSearchK
	}
	if req.MinSimilarity <= 0 {
		req.MinSimilarity = defaultSearchMinSimilarity
	}
	return req, nil
}

func (h *searchHandler) semantic(w http.ResponseWriter, r *http.Request) {
	readerID, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	req, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hits, err := h.search.Search(r.Context(), req.Query, readerID, req.K, req.MinSimilarity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]searchHitResponse, len(hits))
	for i, hit := range hits {
		resp[i] = searchHitResponse{
			SessionID: hit.SessionID, BlockID: hit.BlockID, Text: hit.Text,
			Similarity: hit.Similarity, Provider: hit.Provider,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": resp})
}
