// Package types contains the read shapes shared by the service and the API.
package types

import (
	"errors"
	"time"

	"github.com/okian/vctrank/internal/domain/model"
)

// ErrQueueFull is returned when a recompute cannot be queued.
var ErrQueueFull = errors.New("recompute queue full")

// TeamEntry is one ranked row of a team table.
type TeamEntry struct {
	Rank        int     `json:"rank"`
	Team        string  `json:"team"`
	Rating      float64 `json:"rating"`
	GamesPlayed int     `json:"games_played"`
}

// PlayerEntry is one ranked row of a player table.
type PlayerEntry struct {
	Rank        int     `json:"rank"`
	Player      string  `json:"player"`
	Team        string  `json:"team,omitempty"`
	Rating      float64 `json:"rating"`
	GamesPlayed int     `json:"games_played"`
}

// TeamTable is the response body for a team snapshot.
type TeamTable struct {
	Scope   string      `json:"scope"`
	Source  string      `json:"source"`
	Entries []TeamEntry `json:"entries"`
}

// PlayerTable is the response body for a player snapshot.
type PlayerTable struct {
	Scope   string        `json:"scope"`
	Source  string        `json:"source"`
	Entries []PlayerEntry `json:"entries"`
}

// Resolution explains how a raw team name is read.
type Resolution struct {
	Raw        string `json:"raw"`
	Canonical  string `json:"canonical"`
	Exhibition bool   `json:"exhibition"`
}

// Recompute statuses.
const (
	StatusQueued    = "queued"
	StatusDuplicate = "duplicate"
)

// RecomputeTicket acknowledges a recompute request.
type RecomputeTicket struct {
	JobID  string    `json:"job_id,omitempty"`
	Scope  string    `json:"scope"`
	Status string    `json:"status"`
	Since  time.Time `json:"since"`
}

// FromTeamSnapshot numbers snapshot rows from 1.
func FromTeamSnapshot(s model.RatingSnapshot) TeamTable {
	t := TeamTable{Scope: s.Scope.Key(), Source: string(s.Source), Entries: make([]TeamEntry, len(s.Teams))}
	for i, r := range s.Teams {
		t.Entries[i] = TeamEntry{Rank: i + 1, Team: r.Team, Rating: r.Rating, GamesPlayed: r.GamesPlayed}
	}
	return t
}

// FromPlayerSnapshot numbers snapshot rows from 1.
func FromPlayerSnapshot(s model.PlayerSnapshot) PlayerTable {
	t := PlayerTable{Scope: s.Scope.Key(), Source: string(s.Source), Entries: make([]PlayerEntry, len(s.Players))}
	for i, r := range s.Players {
		t.Entries[i] = PlayerEntry{Rank: i + 1, Player: r.Player, Team: r.Team, Rating: r.Rating, GamesPlayed: r.GamesPlayed}
	}
	return t
}
