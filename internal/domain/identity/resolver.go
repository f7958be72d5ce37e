// Package identity maps raw team-name spellings to canonical names and
// classifies exhibition squads.
package identity

import (
	"strings"
)

// Resolver is immutable after New and safe for concurrent use.
type Resolver struct {
	aliases     map[string]string
	exhibitions map[string]struct{}
	indicators  []string
	events      []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAliasTable replaces the whole alias table. Keys are variant spellings,
// values canonical names. Keys are matched lower-cased and trimmed.
func WithAliasTable(table map[string]string) Option {
	return func(r *Resolver) {
		r.aliases = make(map[string]string, len(table))
		for variant, canonical := range table {
			r.addAlias(variant, canonical)
		}
	}
}

// WithAliasGroups adds groups on top of the current table. The canonical
// spelling of each group is registered as a variant of itself.
func WithAliasGroups(groups []AliasGroup) Option {
	return func(r *Resolver) {
		for _, g := range groups {
			if strings.TrimSpace(g.Canonical) == "" {
				continue
			}
			r.addAlias(g.Canonical, g.Canonical)
			for _, v := range g.Variants {
				r.addAlias(v, g.Canonical)
			}
		}
	}
}

// WithExhibitionRules replaces the exhibition classification.
func WithExhibitionRules(rules ExhibitionRules) Option {
	return func(r *Resolver) {
		r.setExhibitions(rules)
	}
}

// New builds a Resolver with the default tables, then applies opts.
func New(opts ...Option) *Resolver {
	r := &Resolver{aliases: make(map[string]string)}
	WithAliasGroups(DefaultAliasGroups())(r)
	r.setExhibitions(DefaultExhibitionRules())
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) addAlias(variant, canonical string) {
	key := lookupKey(variant)
	if key == "" {
		return
	}
	r.aliases[key] = canonical
}

func (r *Resolver) setExhibitions(rules ExhibitionRules) {
	r.exhibitions = make(map[string]struct{}, len(rules.Names))
	for _, n := range rules.Names {
		r.exhibitions[n] = struct{}{}
	}
	r.indicators = lowerAll(rules.Indicators)
	r.events = lowerAll(rules.Events)
}

// Normalize returns the canonical name for raw. Lookup ignores case and
// surrounding whitespace; a miss returns raw exactly as given.
func (r *Resolver) Normalize(raw string) string {
	if canonical, ok := r.aliases[lookupKey(raw)]; ok {
		return canonical
	}
	return raw
}

// IsExhibition reports whether name is a showcase squad.
func (r *Resolver) IsExhibition(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := r.exhibitions[name]; ok {
		return true
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "team ") {
		for _, ind := range r.indicators {
			if strings.Contains(lower, ind) {
				return true
			}
		}
	}
	for _, ev := range r.events {
		if strings.Contains(lower, ev) {
			return true
		}
	}
	return false
}

// Len returns the number of alias keys.
func (r *Resolver) Len() int { return len(r.aliases) }

func lookupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
