// Package memory is an in-process repository.Store. Precomputed tables are
// kept as treaps so ranked reads never need a sort.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/vctrank/internal/adapters/repository"
	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/pkg/metrics"
)

const driver = "memory"

type teamTable struct {
	runID string
	rows  *ranked[model.TeamRating]
}

type playerTable struct {
	runID string
	rows  *ranked[model.PlayerRating]
}

// Store implements repository.Store in memory.
type Store struct {
	mu      sync.RWMutex
	matches map[string]model.MatchOutcome
	teams   map[string]*teamTable
	players map[string]*playerTable
}

var _ repository.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		matches: make(map[string]model.MatchOutcome),
		teams:   make(map[string]*teamTable),
		players: make(map[string]*playerTable),
	}
}

// Outcomes implements repository.Store.
func (s *Store) Outcomes(_ context.Context, window model.Window) ([]model.MatchOutcome, error) {
	start := time.Now()
	defer observe("outcomes", start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.MatchOutcome, 0, len(s.matches))
	for _, m := range s.matches {
		if window.Contains(m.SortDate) {
			out = append(out, m)
		}
	}
	// map order is random; hand back a stable order anyway
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

// UpsertOutcomes implements repository.Store.
func (s *Store) UpsertOutcomes(_ context.Context, outcomes []model.MatchOutcome) (int, error) {
	if err := repository.ValidateOutcomes(outcomes); err != nil {
		metrics.RecordStoreError(driver, "upsert_outcomes")
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range outcomes {
		s.matches[m.MatchID] = m
	}
	return len(outcomes), nil
}

// TeamRatings implements repository.Store.
func (s *Store) TeamRatings(_ context.Context, key string) ([]model.TeamRating, bool, error) {
	start := time.Now()
	defer observe("team_ratings", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[key]
	if !ok {
		return nil, false, nil
	}
	return t.rows.all(), true, nil
}

// PlayerRatings implements repository.Store.
func (s *Store) PlayerRatings(_ context.Context, key string) ([]model.PlayerRating, bool, error) {
	start := time.Now()
	defer observe("player_ratings", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.players[key]
	if !ok {
		return nil, false, nil
	}
	return t.rows.all(), true, nil
}

// SaveTeamRatings implements repository.Store. The previous table is replaced.
func (s *Store) SaveTeamRatings(_ context.Context, key, runID string, rows []model.TeamRating) error {
	if err := repository.ValidateTeamRatings(key, rows); err != nil {
		metrics.RecordStoreError(driver, "save_team_ratings")
		return err
	}
	t := &teamTable{runID: runID, rows: &ranked[model.TeamRating]{}}
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.Team]; dup {
			continue
		}
		seen[r.Team] = struct{}{}
		t.rows.put(r.Team, r.Rating, r)
	}

	s.mu.Lock()
	s.teams[key] = t
	s.mu.Unlock()
	return nil
}

// SavePlayerRatings implements repository.Store. The previous table is replaced.
func (s *Store) SavePlayerRatings(_ context.Context, key, runID string, rows []model.PlayerRating) error {
	if err := repository.ValidatePlayerRatings(key, rows); err != nil {
		metrics.RecordStoreError(driver, "save_player_ratings")
		return err
	}
	t := &playerTable{runID: runID, rows: &ranked[model.PlayerRating]{}}
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.Player]; dup {
			continue
		}
		seen[r.Player] = struct{}{}
		t.rows.put(r.Player, r.Rating, r)
	}

	s.mu.Lock()
	s.players[key] = t
	s.mu.Unlock()
	return nil
}

// Runs implements repository.Store.
func (s *Store) Runs(_ context.Context) ([]repository.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]repository.Run, 0, len(s.teams)+len(s.players))
	for k, t := range s.teams {
		runs = append(runs, repository.Run{Key: k, Kind: repository.KindTeam, RunID: t.runID, Rows: t.rows.len()})
	}
	for k, t := range s.players {
		runs = append(runs, repository.Run{Key: k, Kind: repository.KindPlayer, RunID: t.runID, Rows: t.rows.len()})
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Kind != runs[j].Kind {
			return runs[i].Kind > runs[j].Kind
		}
		return runs[i].Key < runs[j].Key
	})
	return runs, nil
}

// Close implements repository.Store.
func (s *Store) Close() error { return nil }

func observe(op string, start time.Time) {
	metrics.RecordStoreQuery(driver, op, float64(time.Since(start).Microseconds())/1000)
}
