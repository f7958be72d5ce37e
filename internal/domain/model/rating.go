package model

import "sort"

// Source tells where a snapshot came from.
type Source string

const (
	SourcePrecomputed Source = "precomputed"
	SourceLive        Source = "live"
	SourceUnavailable Source = "unavailable"
)

// TeamRating is one row of a team snapshot.
type TeamRating struct {
	Team        string  `json:"team" validate:"required"`
	Rating      float64 `json:"rating"`
	GamesPlayed int     `json:"games_played" validate:"gte=0"`
}

// PlayerRating is one row of a precomputed player snapshot.
type PlayerRating struct {
	Player      string  `json:"player" validate:"required"`
	Team        string  `json:"team"`
	Rating      float64 `json:"rating"`
	GamesPlayed int     `json:"games_played" validate:"gte=0"`
}

// RatingSnapshot is a ranked, truncated team table.
type RatingSnapshot struct {
	Scope  Scope
	Source Source
	Teams  []TeamRating
}

// PlayerSnapshot is a ranked, truncated player table.
type PlayerSnapshot struct {
	Scope   Scope
	Source  Source
	Players []PlayerRating
}

// SortTeamRatings orders rows by rating desc, then team name asc.
func SortTeamRatings(rows []TeamRating) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Rating != rows[j].Rating {
			return rows[i].Rating > rows[j].Rating
		}
		return rows[i].Team < rows[j].Team
	})
}

// SortPlayerRatings orders rows by rating desc, then player name asc.
func SortPlayerRatings(rows []PlayerRating) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Rating != rows[j].Rating {
			return rows[i].Rating > rows[j].Rating
		}
		return rows[i].Player < rows[j].Player
	})
}

// Truncate returns at most n leading rows.
func Truncate[T any](rows []T, n int) []T {
	if n < len(rows) {
		return rows[:n]
	}
	return rows
}
