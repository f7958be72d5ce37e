package model

// StartRating is the rating a team holds before its first match.
const StartRating = 1500.0

// TeamRecord is the mutable per-team state during a run.
type TeamRecord struct {
	Rating      float64
	GamesPlayed int
}

// TeamState maps canonical team names to their records. Entries are created
// lazily and never removed; a state lives for exactly one run.
type TeamState struct {
	start   float64
	records map[string]*TeamRecord
}

// NewTeamState creates an empty state whose new teams start at start.
func NewTeamState(start float64) *TeamState {
	return &TeamState{start: start, records: make(map[string]*TeamRecord)}
}

// Touch returns the record for team, creating it at the start rating.
func (s *TeamState) Touch(team string) *TeamRecord {
	r, ok := s.records[team]
	if !ok {
		r = &TeamRecord{Rating: s.start}
		s.records[team] = r
	}
	return r
}

// Lookup returns a copy of the record for team.
func (s *TeamState) Lookup(team string) (TeamRecord, bool) {
	r, ok := s.records[team]
	if !ok {
		return TeamRecord{}, false
	}
	return *r, true
}

// Len returns the number of teams seen.
func (s *TeamState) Len() int { return len(s.records) }

// Ratings returns every team ranked by rating desc, name asc.
func (s *TeamState) Ratings() []TeamRating {
	rows := make([]TeamRating, 0, len(s.records))
	for team, r := range s.records {
		rows = append(rows, TeamRating{Team: team, Rating: r.Rating, GamesPlayed: r.GamesPlayed})
	}
	SortTeamRatings(rows)
	return rows
}
