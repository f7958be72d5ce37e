// Package weighting derives the per-match scalars that scale the Elo K factor:
// match importance and margin of victory.
package weighting

import (
	"math"
	"strings"

	"github.com/okian/vctrank/internal/domain/model"
)

const (
	// DefaultWeight is used when no label matches.
	DefaultWeight = 1.0

	marginScale  = 2.2
	gapDampening = 0.001
)

type rule struct {
	needles []string
	weight  float64
}

// Ordered: the first matching rule wins.
var tournamentRules = []rule{
	{needles: []string{"champions"}, weight: 2.0},
	{needles: []string{"masters"}, weight: 1.8},
	{needles: []string{"kickoff", "stage 1", "stage 2"}, weight: 1.0},
}

var matchTypeRules = []rule{
	{needles: []string{"grand final"}, weight: 1.45},
	{needles: []string{"lower final", "upper final"}, weight: 1.35},
	{needles: []string{"semifinal", "semi-final"}, weight: 1.30},
	{needles: []string{"quarterfinal", "quarter-final"}, weight: 1.25},
	{needles: []string{"playoffs"}, weight: 1.15},
}

func lookup(rules []rule, label string) float64 {
	l := strings.ToLower(label)
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(l, n) {
				return r.weight
			}
		}
	}
	return DefaultWeight
}

// TournamentWeight returns the weight of a tournament label.
func TournamentWeight(tournament string) float64 {
	return lookup(tournamentRules, tournament)
}

// MatchTypeWeight returns the weight of a match type label.
func MatchTypeWeight(matchType string) float64 {
	return lookup(matchTypeRules, matchType)
}

// Importance is TournamentWeight * MatchTypeWeight. Always > 0.
func Importance(tournament, matchType string) float64 {
	return TournamentWeight(tournament) * MatchTypeWeight(matchType)
}

// ImportanceOf weighs an outcome. The stage label is reserved and does not
// change the weight.
func ImportanceOf(m model.MatchOutcome) float64 {
	return Importance(m.Tournament, m.MatchType)
}

// Margin scales the K factor by margin of victory, damped by the pre-match
// rating gap. margin is floored at 1 so draws still produce a positive value.
func Margin(margin int, ratingGap float64) float64 {
	m := margin
	if m < 1 {
		m = 1
	}
	return math.Log(1+float64(m)) * marginScale / (math.Abs(ratingGap)*gapDampening + marginScale)
}
