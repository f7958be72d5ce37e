package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScopeKind selects the time range a snapshot covers.
type ScopeKind int

const (
	// ScopeAllTime covers every outcome.
	ScopeAllTime ScopeKind = iota
	// ScopeYear covers one calendar year.
	ScopeYear
	// ScopeCurrent is the calendar year of the provider's clock.
	ScopeCurrent
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeAllTime:
		return "all"
	case ScopeYear:
		return "year"
	case ScopeCurrent:
		return "current"
	}
	return "unknown"
}

// Scope identifies a snapshot. Year is set only for ScopeYear.
type Scope struct {
	Kind ScopeKind
	Year int
}

// AllTime is the all-time scope.
func AllTime() Scope { return Scope{Kind: ScopeAllTime} }

// Current is the current-year scope.
func Current() Scope { return Scope{Kind: ScopeCurrent} }

// Year is the scope for a calendar year.
func Year(y int) Scope { return Scope{Kind: ScopeYear, Year: y} }

// Key is the storage key for precomputed tables: "all", "current" or the year.
func (s Scope) Key() string {
	if s.Kind == ScopeYear {
		return strconv.Itoa(s.Year)
	}
	return s.Kind.String()
}

func (s Scope) String() string { return s.Key() }

const (
	minYear = 1970
	maxYear = 9999
)

// ParseScope accepts "all" (or empty), "current" and a four digit year.
func ParseScope(raw string) (Scope, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "all", "all-time", "alltime":
		return AllTime(), nil
	case "current":
		return Current(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < minYear || y > maxYear {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, raw)
	}
	return Year(y), nil
}

// Window is a half-open [From, To) range of match dates. A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// YearWindow covers Jan 1 of year up to Jan 1 of the next year, UTC.
func YearWindow(year int) Window {
	return Window{
		From: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Unbounded reports whether the window has no bounds.
func (w Window) Unbounded() bool { return w.From.IsZero() && w.To.IsZero() }

// Contains reports whether an outcome dated d falls inside w. Undated outcomes
// only belong to unbounded windows.
func (w Window) Contains(d *time.Time) bool {
	if w.Unbounded() {
		return true
	}
	if d == nil {
		return false
	}
	if !w.From.IsZero() && d.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !d.Before(w.To) {
		return false
	}
	return true
}
