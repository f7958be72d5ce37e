// Package repository defines the storage contract shared by the memory,
// sqlite and postgres adapters, plus row validation at the storage boundary.
package repository

import (
	"context"

	"github.com/okian/vctrank/internal/domain/model"
)

// Store is the read/write surface the service needs from persistence.
type Store interface {
	// Outcomes returns completed matches inside window. Order is not
	// guaranteed; callers sort with model.SortOutcomes.
	Outcomes(ctx context.Context, window model.Window) ([]model.MatchOutcome, error)

	// UpsertOutcomes inserts or replaces matches by MatchID.
	UpsertOutcomes(ctx context.Context, outcomes []model.MatchOutcome) (int, error)

	// TeamRatings returns the precomputed team table for key, ok=false when absent.
	TeamRatings(ctx context.Context, key string) ([]model.TeamRating, bool, error)

	// PlayerRatings returns the precomputed player table for key, ok=false when absent.
	PlayerRatings(ctx context.Context, key string) ([]model.PlayerRating, bool, error)

	// SaveTeamRatings replaces the team table for key.
	SaveTeamRatings(ctx context.Context, key, runID string, rows []model.TeamRating) error

	// SavePlayerRatings replaces the player table for key.
	SavePlayerRatings(ctx context.Context, key, runID string, rows []model.PlayerRating) error

	// Runs lists the latest run per stored table.
	Runs(ctx context.Context) ([]Run, error)

	Close() error
}

// Run describes the latest write of a precomputed table.
type Run struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	RunID string `json:"run_id"`
	Rows  int    `json:"rows"`
}

// Table kinds recorded in Run.Kind.
const (
	KindTeam   = "team"
	KindPlayer = "player"
)
