package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/okian/vctrank/internal/adapters/repository"
	"github.com/okian/vctrank/internal/domain/model"
)

// SeedMatch is a match as written in a seed file.
type SeedMatch struct {
	MatchID    string  `json:"match_id"`
	Tournament string  `json:"tournament"`
	Stage      string  `json:"stage"`
	MatchType  string  `json:"match_type"`
	TeamA      *string `json:"team_a"`
	TeamB      *string `json:"team_b"`
	TeamAScore *int    `json:"team_a_score"`
	TeamBScore *int    `json:"team_b_score"`
	SortDate   *string `json:"sort_date"`
}

// Seed is a bundle of matches and precomputed player tables, keyed by scope.
type Seed struct {
	Matches []SeedMatch                     `json:"matches"`
	Players map[string][]model.PlayerRating `json:"players"`
}

// SeedStore is what a seed is loaded into.
type SeedStore interface {
	UpsertOutcomes(ctx context.Context, outcomes []model.MatchOutcome) (int, error)
	SavePlayerRatings(ctx context.Context, key, runID string, rows []model.PlayerRating) error
}

// DecodeSeed reads a JSON seed document.
func DecodeSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// Outcomes validates and converts the seed matches.
func (s Seed) Outcomes() ([]model.MatchOutcome, error) {
	out := make([]model.MatchOutcome, 0, len(s.Matches))
	for _, m := range s.Matches {
		o, err := repository.ParseMatchRow(repository.MatchRow{
			MatchID:    m.MatchID,
			Tournament: m.Tournament,
			Stage:      m.Stage,
			MatchType:  m.MatchType,
			TeamA:      m.TeamA,
			TeamB:      m.TeamB,
			TeamAScore: m.TeamAScore,
			TeamBScore: m.TeamBScore,
			SortDate:   m.SortDate,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Load writes the seed into store under runID and returns how many matches
// were stored.
func (s Seed) Load(ctx context.Context, store SeedStore, runID string) (int, error) {
	outcomes, err := s.Outcomes()
	if err != nil {
		return 0, err
	}
	n, err := store.UpsertOutcomes(ctx, outcomes)
	if err != nil {
		return 0, fmt.Errorf("store matches: %w", err)
	}

	keys := make([]string, 0, len(s.Players))
	for k := range s.Players {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := store.SavePlayerRatings(ctx, k, runID, s.Players[k]); err != nil {
			return n, fmt.Errorf("store players %s: %w", k, err)
		}
	}
	return n, nil
}
