// Package snapshot serves ranked rating tables per scope, choosing between
// precomputed tables and a live engine run.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vctrank/internal/domain/elo"
	"github.com/okian/vctrank/internal/domain/identity"
	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/pkg/logger"
	"github.com/okian/vctrank/pkg/metrics"
)

// MatchFeed reads completed outcomes whose sort date falls in window.
// An unbounded window returns everything, undated outcomes included.
type MatchFeed interface {
	Outcomes(ctx context.Context, window model.Window) ([]model.MatchOutcome, error)
}

// PrecomputedSource looks up tables written by the batch job. ok is false
// when no table exists for key.
type PrecomputedSource interface {
	TeamRatings(ctx context.Context, key string) (rows []model.TeamRating, ok bool, err error)
	PlayerRatings(ctx context.Context, key string) (rows []model.PlayerRating, ok bool, err error)
}

// SnapshotWriter persists a computed team table under key.
type SnapshotWriter interface {
	SaveTeamRatings(ctx context.Context, key, runID string, rows []model.TeamRating) error
}

// Classifier flags exhibition squads.
type Classifier interface {
	IsExhibition(name string) bool
}

// Provider is safe for concurrent use; every live run gets its own state.
type Provider struct {
	feed        MatchFeed
	source      PrecomputedSource
	engine      *elo.Engine
	classifier  Classifier
	now         func() time.Time
	filterShows bool
	logger      logger.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithEngine sets the rating engine for live runs.
func WithEngine(e *elo.Engine) Option {
	return func(p *Provider) {
		if e != nil {
			p.engine = e
		}
	}
}

// WithClassifier sets the exhibition classifier used on output.
func WithClassifier(c Classifier) Option {
	return func(p *Provider) {
		if c != nil {
			p.classifier = c
		}
	}
}

// WithClock sets the time source that decides the current year.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithExhibitionFilter toggles removal of exhibition squads from team tables.
func WithExhibitionFilter(enabled bool) Option {
	return func(p *Provider) {
		p.filterShows = enabled
	}
}

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider creates a provider over feed and source.
func NewProvider(feed MatchFeed, source PrecomputedSource, opts ...Option) *Provider {
	resolver := identity.New()
	p := &Provider{
		feed:        feed,
		source:      source,
		engine:      elo.New(resolver),
		classifier:  resolver,
		now:         time.Now,
		filterShows: true,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentYear returns the calendar year of the provider clock, in UTC.
func (p *Provider) CurrentYear() int {
	return p.now().UTC().Year()
}

// TeamSnapshot returns the top-N team table for scope.
//
// Past years come from precomputed tables only and are empty when missing.
// The current year (and any later one) is always computed live. All-time
// prefers a precomputed table and falls back to a live run.
func (p *Provider) TeamSnapshot(ctx context.Context, scope model.Scope, topN int) (model.RatingSnapshot, error) {
	if topN < 1 {
		return model.RatingSnapshot{}, fmt.Errorf("%w: %d", ErrInvalidLimit, topN)
	}
	start := time.Now()

	rows, source, err := p.teamRows(ctx, scope)
	if err != nil {
		return model.RatingSnapshot{}, err
	}

	rows = p.filter(rows)
	model.SortTeamRatings(rows)
	snap := model.RatingSnapshot{
		Scope:  scope,
		Source: source,
		Teams:  model.Truncate(rows, topN),
	}

	metrics.RecordSnapshotRequest("team", scope.Kind.String(), string(source))
	metrics.RecordSnapshotLatency(string(source), float64(time.Since(start).Microseconds())/1000)
	return snap, nil
}

func (p *Provider) teamRows(ctx context.Context, scope model.Scope) ([]model.TeamRating, model.Source, error) {
	current := p.CurrentYear()

	switch {
	case scope.Kind == model.ScopeAllTime:
		rows, ok, err := p.source.TeamRatings(ctx, scope.Key())
		if err != nil {
			return nil, "", fmt.Errorf("precomputed %s: %w", scope.Key(), err)
		}
		if ok {
			return copyRows(rows), model.SourcePrecomputed, nil
		}
		rows, _, err = p.ComputeLive(ctx, scope)
		return rows, model.SourceLive, err

	case scope.Kind == model.ScopeYear && scope.Year < current:
		rows, ok, err := p.source.TeamRatings(ctx, scope.Key())
		if err != nil {
			return nil, "", fmt.Errorf("precomputed %s: %w", scope.Key(), err)
		}
		if !ok {
			p.logger.Info(ctx, "no precomputed table for past year", logger.String("scope", scope.Key()))
			return []model.TeamRating{}, model.SourceUnavailable, nil
		}
		return copyRows(rows), model.SourcePrecomputed, nil

	case scope.Kind == model.ScopeCurrent || scope.Kind == model.ScopeYear:
		rows, _, err := p.ComputeLive(ctx, scope)
		return rows, model.SourceLive, err
	}
	return nil, "", fmt.Errorf("%w: kind %d", model.ErrInvalidScope, scope.Kind)
}

// ComputeLive runs the engine over every outcome in scope and returns the full
// ranked table, exhibitions included.
func (p *Provider) ComputeLive(ctx context.Context, scope model.Scope) ([]model.TeamRating, elo.Stats, error) {
	window, err := p.Window(scope)
	if err != nil {
		return nil, elo.Stats{}, err
	}

	outcomes, err := p.feed.Outcomes(ctx, window)
	if err != nil {
		return nil, elo.Stats{}, fmt.Errorf("load outcomes for %s: %w", scope.Key(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, elo.Stats{}, err
	}

	state, stats := p.engine.Run(ctx, model.SortOutcomes(outcomes))
	p.logger.Debug(ctx, "live rating run",
		logger.String("scope", scope.Key()),
		logger.Int("outcomes", len(outcomes)),
		logger.Int("processed", stats.Processed),
		logger.Int("skipped", stats.SkippedTotal()),
		logger.Int("teams", state.Len()),
	)
	return state.Ratings(), stats, nil
}

// Window maps a scope to its date range.
func (p *Provider) Window(scope model.Scope) (model.Window, error) {
	switch scope.Kind {
	case model.ScopeAllTime:
		return model.Window{}, nil
	case model.ScopeYear:
		return model.YearWindow(scope.Year), nil
	case model.ScopeCurrent:
		return model.YearWindow(p.CurrentYear()), nil
	}
	return model.Window{}, fmt.Errorf("%w: kind %d", model.ErrInvalidScope, scope.Kind)
}

// PlayerSnapshot returns the top-N precomputed player table for scope.
// There is no live player computation; a missing table yields an empty result.
func (p *Provider) PlayerSnapshot(ctx context.Context, scope model.Scope, topN int) (model.PlayerSnapshot, error) {
	if topN < 1 {
		return model.PlayerSnapshot{}, fmt.Errorf("%w: %d", ErrInvalidLimit, topN)
	}

	rows, ok, err := p.source.PlayerRatings(ctx, scope.Key())
	if err != nil {
		return model.PlayerSnapshot{}, fmt.Errorf("precomputed players %s: %w", scope.Key(), err)
	}
	source := model.SourcePrecomputed
	if !ok {
		source = model.SourceUnavailable
		rows = nil
	}

	out := make([]model.PlayerRating, len(rows))
	copy(out, rows)
	model.SortPlayerRatings(out)
	metrics.RecordSnapshotRequest("player", scope.Kind.String(), string(source))
	return model.PlayerSnapshot{Scope: scope, Source: source, Players: model.Truncate(out, topN)}, nil
}

func (p *Provider) filter(rows []model.TeamRating) []model.TeamRating {
	if !p.filterShows {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if !p.classifier.IsExhibition(r.Team) {
			out = append(out, r)
		}
	}
	return out
}

func copyRows(rows []model.TeamRating) []model.TeamRating {
	out := make([]model.TeamRating, len(rows))
	copy(out, rows)
	return out
}
