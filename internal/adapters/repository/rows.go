package repository

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/vctrank/internal/domain/model"
)

// DateLayout is how sort dates are stored as text.
const DateLayout = "2006-01-02"

// MatchRow is a match record exactly as scanned from a database.
type MatchRow struct {
	MatchID    string  `validate:"required"`
	Tournament string  `validate:"max=256"`
	Stage      string  `validate:"max=256"`
	MatchType  string  `validate:"max=256"`
	TeamA      *string `validate:"omitempty,max=128"`
	TeamB      *string `validate:"omitempty,max=128"`
	TeamAScore *int    `validate:"omitempty,gte=0"`
	TeamBScore *int    `validate:"omitempty,gte=0"`
	SortDate   *string `validate:"omitempty,datetime=2006-01-02"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ParseMatchRow validates a scanned row and converts it to an outcome.
// Team names are trimmed; a missing team becomes "" and is skipped later by
// the engine.
func ParseMatchRow(r MatchRow) (model.MatchOutcome, error) {
	r.MatchID = strings.TrimSpace(r.MatchID)
	if err := Validator().Struct(r); err != nil {
		return model.MatchOutcome{}, fmt.Errorf("%w: match %q: %v", ErrMalformedRow, r.MatchID, err)
	}

	m := model.MatchOutcome{
		MatchID:    r.MatchID,
		Tournament: r.Tournament,
		Stage:      r.Stage,
		MatchType:  r.MatchType,
		TeamA:      trimmed(r.TeamA),
		TeamB:      trimmed(r.TeamB),
		TeamAScore: r.TeamAScore,
		TeamBScore: r.TeamBScore,
	}
	if r.SortDate != nil {
		d, err := time.Parse(DateLayout, *r.SortDate)
		if err != nil {
			return model.MatchOutcome{}, fmt.Errorf("%w: match %q: %v", ErrMalformedRow, r.MatchID, err)
		}
		m.SortDate = &d
	}
	return m, nil
}

// MatchRowOf is the inverse of ParseMatchRow, used by writers.
func MatchRowOf(m model.MatchOutcome) MatchRow {
	r := MatchRow{
		MatchID:    strings.TrimSpace(m.MatchID),
		Tournament: m.Tournament,
		Stage:      m.Stage,
		MatchType:  m.MatchType,
		TeamAScore: m.TeamAScore,
		TeamBScore: m.TeamBScore,
	}
	if m.TeamA != "" {
		a := m.TeamA
		r.TeamA = &a
	}
	if m.TeamB != "" {
		b := m.TeamB
		r.TeamB = &b
	}
	if m.SortDate != nil {
		d := m.SortDate.UTC().Format(DateLayout)
		r.SortDate = &d
	}
	return r
}

// ValidateOutcomes checks outcomes before a write.
func ValidateOutcomes(outcomes []model.MatchOutcome) error {
	for _, m := range outcomes {
		if err := Validator().Struct(MatchRowOf(m)); err != nil {
			return fmt.Errorf("%w: match %q: %v", ErrMalformedRow, m.MatchID, err)
		}
	}
	return nil
}

// ValidateTeamRatings checks rows before they are saved.
func ValidateTeamRatings(key string, rows []model.TeamRating) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	for i := range rows {
		if err := Validator().Struct(rows[i]); err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrInvalidRatings, i, err)
		}
	}
	return nil
}

// ValidatePlayerRatings checks rows before they are saved.
func ValidatePlayerRatings(key string, rows []model.PlayerRating) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	for i := range rows {
		if err := Validator().Struct(rows[i]); err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrInvalidRatings, i, err)
		}
	}
	return nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
