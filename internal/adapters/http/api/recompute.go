package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/internal/domain/types"
)

const maxRecomputeBody = 1 << 10

// recomputeRequest mirrors the OpenAPI schema for POST /v1/recompute.
type recomputeRequest struct {
	Scope string `json:"scope"`
}

// RecomputeHandler queues table rebuilds.
type RecomputeHandler struct {
	deps Dependencies
}

// NewRecomputeHandler creates a new recompute handler.
func NewRecomputeHandler(deps Dependencies) *RecomputeHandler {
	return &RecomputeHandler{deps: deps}
}

// HandleRecompute handles POST /v1/recompute. A new job answers 202, a scope
// already in flight answers 200 and a full queue answers 429.
func (h *RecomputeHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRecomputeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	scope, err := model.ParseScope(req.Scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ticket, err := h.deps.RequestRecompute(r.Context(), scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusAccepted
	if ticket.Status == types.StatusDuplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, ticket)
}
