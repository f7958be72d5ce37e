package api

import (
	"net/http"
	"strings"
)

// ResolveHandler explains how a team name is normalized.
type ResolveHandler struct {
	deps Dependencies
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(deps Dependencies) *ResolveHandler {
	return &ResolveHandler{deps: deps}
}

// HandleResolve handles GET /v1/teams/resolve?name=X.
func (h *ResolveHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingName)
		return
	}
	res, err := h.deps.Resolve(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
