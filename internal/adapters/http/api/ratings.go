package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/vctrank/internal/domain/model"
)

// RatingsHandler serves team and player tables.
type RatingsHandler struct {
	deps   Dependencies
	limits Limits
}

// NewRatingsHandler creates a new ratings handler.
func NewRatingsHandler(deps Dependencies, limits Limits) *RatingsHandler {
	return &RatingsHandler{deps: deps, limits: limits}
}

// HandleTeams handles GET /v1/ratings/teams?scope=S&limit=N.
func (h *RatingsHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	scope, n, ok := h.query(w, r)
	if !ok {
		return
	}
	table, err := h.deps.TeamSnapshot(r.Context(), scope, n)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// HandlePlayers handles GET /v1/ratings/players?scope=S&limit=N.
func (h *RatingsHandler) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	scope, n, ok := h.query(w, r)
	if !ok {
		return
	}
	table, err := h.deps.PlayerSnapshot(r.Context(), scope, n)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (h *RatingsHandler) query(w http.ResponseWriter, r *http.Request) (model.Scope, int, bool) {
	q := r.URL.Query()
	scope, err := model.ParseScope(q.Get("scope"))
	if err != nil {
		writeServiceError(w, err)
		return model.Scope{}, 0, false
	}

	n := h.limits.Default
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return model.Scope{}, 0, false
		}
	}
	if n > h.limits.Max {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: %d > %d", ErrLimitExceeded, n, h.limits.Max))
		return model.Scope{}, 0, false
	}
	return scope, n, true
}
