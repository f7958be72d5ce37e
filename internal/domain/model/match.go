// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"strconv"
	"time"
)

// MatchOutcome is one completed series as read from storage.
// Team names are raw; identity resolution happens in the engine.
type MatchOutcome struct {
	MatchID    string
	Tournament string
	Stage      string
	MatchType  string
	TeamA      string
	TeamB      string
	TeamAScore *int
	TeamBScore *int
	SortDate   *time.Time
}

// Result reports the actual score for team A (1, 0 or 0.5) and the absolute
// map margin. Missing, negative or equal scores are a draw with margin 0.
func (m MatchOutcome) Result() (scoreA float64, margin int, decided bool) {
	if m.TeamAScore == nil || m.TeamBScore == nil {
		return 0.5, 0, false
	}
	a, b := *m.TeamAScore, *m.TeamBScore
	if a < 0 || b < 0 || a == b {
		return 0.5, 0, false
	}
	if a > b {
		return 1, a - b, true
	}
	return 0, b - a, true
}

// Score returns a pointer to v, for building outcomes.
func Score(v int) *int { return &v }

// Date returns a pointer to a UTC midnight date.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// SortedOutcomes is a chronologically ordered match history. The only way to
// obtain one is SortOutcomes, so consumers never see an unordered feed.
type SortedOutcomes struct {
	items []MatchOutcome
}

// SortOutcomes copies outcomes and orders them by (SortDate, MatchID).
// Undated outcomes come first. Integer match ids compare numerically and sort
// before non-integer ids, which compare lexically.
func SortOutcomes(outcomes []MatchOutcome) SortedOutcomes {
	items := make([]MatchOutcome, len(outcomes))
	copy(items, outcomes)
	sort.SliceStable(items, func(i, j int) bool {
		return outcomeLess(items[i], items[j])
	})
	return SortedOutcomes{items: items}
}

// Len returns the number of outcomes.
func (s SortedOutcomes) Len() int { return len(s.items) }

// At returns the i-th outcome in order.
func (s SortedOutcomes) At(i int) MatchOutcome { return s.items[i] }

// Filter keeps outcomes for which keep returns true. Order is preserved.
func (s SortedOutcomes) Filter(keep func(MatchOutcome) bool) SortedOutcomes {
	out := make([]MatchOutcome, 0, len(s.items))
	for _, m := range s.items {
		if keep(m) {
			out = append(out, m)
		}
	}
	return SortedOutcomes{items: out}
}

func outcomeLess(a, b MatchOutcome) bool {
	switch {
	case a.SortDate == nil && b.SortDate != nil:
		return true
	case a.SortDate != nil && b.SortDate == nil:
		return false
	case a.SortDate != nil && b.SortDate != nil && !a.SortDate.Equal(*b.SortDate):
		return a.SortDate.Before(*b.SortDate)
	}
	return matchIDLess(a.MatchID, b.MatchID)
}

func matchIDLess(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return a < b
}
