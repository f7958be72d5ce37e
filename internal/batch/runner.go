// Package batch turns live rating runs into precomputed tables.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/vctrank/internal/domain/elo"
	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/pkg/logger"
)

const defaultConcurrency = 4

// Computer produces the full live table for a scope.
type Computer interface {
	ComputeLive(ctx context.Context, scope model.Scope) ([]model.TeamRating, elo.Stats, error)
	CurrentYear() int
}

// Writer persists a precomputed team table.
type Writer interface {
	SaveTeamRatings(ctx context.Context, key, runID string, rows []model.TeamRating) error
}

// Hook runs after a batch has saved its tables.
type Hook func(ctx context.Context, r Report)

// Table summarises one saved table.
type Table struct {
	Key       string `json:"key"`
	Rows      int    `json:"rows"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
}

// Report summarises a batch run. Tables lists what was saved, by key.
type Report struct {
	RunID  string        `json:"run_id"`
	Tables []Table       `json:"tables"`
	Took   time.Duration `json:"took"`
}

// Runner computes and saves tables for a set of scopes in parallel.
type Runner struct {
	computer    Computer
	writer      Writer
	concurrency int
	hooks       []Hook
	newID       func() string
	log         logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency caps how many scopes are computed at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithAfterSave registers a hook that runs once per batch, after saving.
func WithAfterSave(h Hook) Option {
	return func(r *Runner) {
		if h != nil {
			r.hooks = append(r.hooks, h)
		}
	}
}

// WithIDGenerator overrides how run ids are made.
func WithIDGenerator(f func() string) Option {
	return func(r *Runner) {
		if f != nil {
			r.newID = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(c Computer, w Writer, opts ...Option) *Runner {
	r := &Runner{
		computer:    c,
		writer:      w,
		concurrency: defaultConcurrency,
		newID:       func() string { return uuid.New().String() },
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scopes returns all-time plus every year from first to last inclusive.
func Scopes(first, last int) []model.Scope {
	out := []model.Scope{model.AllTime()}
	for y := first; y <= last; y++ {
		out = append(out, model.Year(y))
	}
	return out
}

// Key is the table key a scope is saved under. The current scope is stored
// under its calendar year so it is served once that year is past.
func (r *Runner) Key(scope model.Scope) string {
	if scope.Kind == model.ScopeCurrent {
		return strconv.Itoa(r.computer.CurrentYear())
	}
	return scope.Key()
}

// Run computes and saves every scope under one run id. The first failure
// cancels the rest; tables saved before it stay saved and are reported.
func (r *Runner) Run(ctx context.Context, scopes ...model.Scope) (Report, error) {
	start := time.Now()
	report := Report{RunID: r.newID()}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	seen := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		key := r.Key(scope)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		scope := scope
		g.Go(func() error {
			rows, stats, err := r.computer.ComputeLive(gctx, scope)
			if err != nil {
				return fmt.Errorf("compute %s: %w", key, err)
			}
			if err := r.writer.SaveTeamRatings(gctx, key, report.RunID, rows); err != nil {
				return fmt.Errorf("save %s: %w", key, err)
			}
			mu.Lock()
			report.Tables = append(report.Tables, Table{
				Key:       key,
				Rows:      len(rows),
				Processed: stats.Processed,
				Skipped:   stats.SkippedTotal(),
			})
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	sort.Slice(report.Tables, func(i, j int) bool { return report.Tables[i].Key < report.Tables[j].Key })
	report.Took = time.Since(start)

	if len(report.Tables) > 0 {
		for _, h := range r.hooks {
			h(ctx, report)
		}
	}
	if err != nil {
		r.log.Error(ctx, "batch failed", logger.String("run_id", report.RunID), logger.Error(err))
		return report, err
	}
	r.log.Info(ctx, "batch saved",
		logger.String("run_id", report.RunID),
		logger.Int("tables", len(report.Tables)),
		logger.Duration("took", report.Took),
	)
	return report, nil
}

// Recompute runs a single-scope batch for a queued job.
func (r *Runner) Recompute(ctx context.Context, j model.RecomputeJob) error {
	_, err := r.Run(ctx, j.Scope)
	return err
}
