// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/internal/domain/snapshot"
	"github.com/okian/vctrank/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TeamSnapshot(ctx context.Context, scope model.Scope, topN int) (types.TeamTable, error)
	PlayerSnapshot(ctx context.Context, scope model.Scope, topN int) (types.PlayerTable, error)
	Resolve(ctx context.Context, name string) (types.Resolution, error)
	RequestRecompute(ctx context.Context, scope model.Scope) (types.RecomputeTicket, error)
	StatsProvider
}

// Limits bounds the top-N a client may ask for.
type Limits struct {
	Default int
	Max     int
}

// v1 prefixes the versioned routes. They are registered on the root router
// so a method mismatch answers 405.
const v1 = "/v1"

// DefaultLimits are used when NewServer gets a zero Limits.
var DefaultLimits = Limits{Default: 25, Max: 200}

// Server wires HTTP routes for the business API.
type Server struct {
	opsHandler       *OpsHandler
	ratingsHandler   *RatingsHandler
	resolveHandler   *ResolveHandler
	recomputeHandler *RecomputeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, limits Limits) *Server {
	if limits.Max < 1 {
		limits.Max = DefaultLimits.Max
	}
	if limits.Default < 1 || limits.Default > limits.Max {
		limits.Default = min(DefaultLimits.Default, limits.Max)
	}
	return &Server{
		opsHandler:       NewOpsHandler(deps),
		ratingsHandler:   NewRatingsHandler(deps, limits),
		resolveHandler:   NewResolveHandler(deps),
		recomputeHandler: NewRecomputeHandler(deps),
	}
}

// Register attaches all HTTP routes to r. Every route is named; the name is
// the endpoint label on request metrics.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Use(instrument)

	r.HandleFunc("/healthz", s.opsHandler.HandleHealth).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/stats", s.opsHandler.HandleStats).Methods(http.MethodGet).Name("stats")

	r.HandleFunc(v1+"/ratings/teams", s.ratingsHandler.HandleTeams).Methods(http.MethodGet).Name("ratings_teams")
	r.HandleFunc(v1+"/ratings/players", s.ratingsHandler.HandlePlayers).Methods(http.MethodGet).Name("ratings_players")
	r.HandleFunc(v1+"/teams/resolve", s.resolveHandler.HandleResolve).Methods(http.MethodGet).Name("teams_resolve")
	r.HandleFunc(v1+"/recompute", s.recomputeHandler.HandleRecompute).Methods(http.MethodPost).Name("recompute")
}

// WithCORS wraps h with a CORS policy for origins. An empty list allows all.
func WithCORS(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}).Handler(h)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps domain errors to statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, "invalid_scope", err)
	case errors.Is(err, snapshot.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "invalid_limit", err)
	case errors.Is(err, types.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "queue_full", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
