// Package elo implements the incremental team rating engine.
//
// Each outcome moves the two participants' ratings by equal and opposite
// amounts: K = KBase * importance * margin multiplier, applied against the
// base-400 logistic expected score. Ratings are path dependent, so the engine
// only accepts model.SortedOutcomes.
package elo

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/internal/domain/weighting"
	"github.com/okian/vctrank/pkg/logger"
	"github.com/okian/vctrank/pkg/metrics"
)

const (
	// KBase is the K factor before importance and margin scaling.
	KBase = 32.0

	eloDivisor = 400.0
)

// Skip reasons reported in Stats and metrics.
const (
	SkipMissingTeam = "missing_team"
	SkipSelfMatch   = "self_match"
	SkipExhibition  = "exhibition"
)

// Resolver canonicalizes team names.
type Resolver interface {
	Normalize(raw string) string
	IsExhibition(name string) bool
}

// Update is the audit record of one applied outcome.
type Update struct {
	MatchID    string
	TeamA      string
	TeamB      string
	BeforeA    float64
	BeforeB    float64
	AfterA     float64
	AfterB     float64
	ExpectedA  float64
	ActualA    float64
	Decided    bool
	Margin     int
	Importance float64
	MarginMult float64
	KEff       float64
}

// DeltaA is the change applied to team A. DeltaB is always -DeltaA.
func (u Update) DeltaA() float64 { return u.AfterA - u.BeforeA }

// Stats summarizes a Run.
type Stats struct {
	Processed int
	Draws     int
	Skipped   map[string]int
}

// SkippedTotal returns the number of skipped outcomes across reasons.
func (s Stats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Engine is stateless between runs and safe for concurrent use.
type Engine struct {
	resolver           Resolver
	startRating        float64
	kBase              float64
	excludeExhibitions bool
	logger             logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStartRating sets the rating of unseen teams.
func WithStartRating(r float64) Option {
	return func(e *Engine) {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			e.startRating = r
		}
	}
}

// WithKBase sets the base K factor.
func WithKBase(k float64) Option {
	return func(e *Engine) {
		if k > 0 && !math.IsInf(k, 0) {
			e.kBase = k
		}
	}
}

// WithExcludeExhibitions drops outcomes involving an exhibition squad from
// the rating computation itself.
func WithExcludeExhibitions(exclude bool) Option {
	return func(e *Engine) {
		e.excludeExhibitions = exclude
	}
}

// WithLogger sets the logger used for skip diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine that resolves names with resolver.
func New(resolver Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:    resolver,
		startRating: model.StartRating,
		kBase:       KBase,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartRating returns the configured baseline.
func (e *Engine) StartRating() float64 { return e.startRating }

// NewState returns an empty state at this engine's baseline.
func (e *Engine) NewState() *model.TeamState {
	return model.NewTeamState(e.startRating)
}

// Expected is the base-400 logistic expected score of a against b.
func Expected(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/eloDivisor))
}

// Apply folds one outcome into state. A non-empty reason means the outcome
// was skipped and state is unchanged.
func (e *Engine) Apply(state *model.TeamState, m model.MatchOutcome) (u Update, reason string) {
	a := e.resolver.Normalize(m.TeamA)
	b := e.resolver.Normalize(m.TeamB)
	switch {
	case strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "":
		return Update{}, SkipMissingTeam
	case a == b:
		return Update{}, SkipSelfMatch
	case e.excludeExhibitions && (e.resolver.IsExhibition(a) || e.resolver.IsExhibition(b)):
		return Update{}, SkipExhibition
	}

	ra, rb := state.Touch(a), state.Touch(b)
	u = Update{
		MatchID: m.MatchID,
		TeamA:   a,
		TeamB:   b,
		BeforeA: ra.Rating,
		BeforeB: rb.Rating,
	}

	u.ExpectedA = Expected(u.BeforeA, u.BeforeB)
	expectedB := 1 - u.ExpectedA

	u.ActualA, u.Margin, u.Decided = m.Result()
	actualB := 1 - u.ActualA

	u.Importance = weighting.ImportanceOf(m)
	u.MarginMult = weighting.Margin(u.Margin, u.BeforeA-u.BeforeB)
	u.KEff = e.kBase * u.Importance * u.MarginMult

	u.AfterA = u.BeforeA + u.KEff*(u.ActualA-u.ExpectedA)
	u.AfterB = u.BeforeB + u.KEff*(actualB-expectedB)

	ra.Rating, rb.Rating = u.AfterA, u.AfterB
	ra.GamesPlayed++
	rb.GamesPlayed++
	return u, ""
}

// Run applies every outcome in order to a fresh state.
func (e *Engine) Run(ctx context.Context, outcomes model.SortedOutcomes) (*model.TeamState, Stats) {
	start := time.Now()
	state := e.NewState()
	stats := Stats{Skipped: map[string]int{}}

	for i := 0; i < outcomes.Len(); i++ {
		m := outcomes.At(i)
		u, reason := e.Apply(state, m)
		if reason != "" {
			stats.Skipped[reason]++
			metrics.RecordMatchSkipped(reason)
			e.logger.Debug(ctx, "skipping match",
				logger.String("match_id", m.MatchID),
				logger.String("team_a", m.TeamA),
				logger.String("team_b", m.TeamB),
				logger.String("reason", reason),
			)
			continue
		}
		stats.Processed++
		metrics.RecordMatchProcessed()
		if !u.Decided {
			stats.Draws++
			metrics.RecordMatchDrawn()
		}
	}

	metrics.RecordEngineRun(float64(time.Since(start).Microseconds())/1000, state.Len())
	return state, stats
}
