package services

import (
	"github.com/nexuscrm/formengine/pkg/models"
)

// Option is one choice offered by a select control
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// selectorState is the resolution state of one lookup-backed field within a form session:
// the candidate set, the dependency value it was fetched for and any in-flight or failed fetch.
type selectorState struct {
	spec DependencySpec

	candidates []models.Entity
	// scope is the dependency value the current candidates belong to
	scope   string
	fetched bool

	loading bool
	// pending is the dependency value of the most recent fetch that has not completed
	pending   string
	lookupErr error
}

func newSelectorState(spec DependencySpec) *selectorState {
	return &selectorState{spec: spec}
}

// begin marks a fetch for scope as in flight
func (s *selectorState) begin(scope string) {
	s.loading = true
	s.pending = scope
}

// isCurrent reports whether a response fetched for scope may still be applied
func (s *selectorState) isCurrent(scope, currentScope string) bool {
	return s.loading && s.pending == scope && scope == currentScope
}

// apply installs a fetch result
func (s *selectorState) apply(scope string, entities []models.Entity) {
	s.loading = false
	s.pending = ""
	s.lookupErr = nil
	s.candidates = entities
	s.scope = scope
	s.fetched = true
}

// fail records a fetch error. Prior candidates are kept so the stored value stays displayable.
func (s *selectorState) fail(err error) {
	s.loading = false
	s.pending = ""
	s.lookupErr = err
}

// reset empties the candidate list, used when the dependency becomes empty
func (s *selectorState) reset() {
	s.candidates = nil
	s.scope = ""
	s.fetched = false
	s.loading = false
	s.pending = ""
	s.lookupErr = nil
}

// options projects candidates to value/label pairs in lookup order
func (s *selectorState) options() []Option {
	out := make([]Option, 0, len(s.candidates))
	for _, e := range s.candidates {
		out = append(out, Option{Value: e.ID(), Label: s.spec.DisplayOf(e)})
	}
	return out
}

// resolve maps user input back to a candidate: exact display-name match first, then exact id.
// With duplicate display names the first candidate wins.
func (s *selectorState) resolve(input string) (models.Entity, bool) {
	for _, e := range s.candidates {
		if s.spec.DisplayOf(e) == input {
			return e, true
		}
	}
	for _, e := range s.candidates {
		if e.ID() == input {
			return e, true
		}
	}
	return nil, false
}

// byID finds the candidate with the given identifier
func (s *selectorState) byID(id string) (models.Entity, bool) {
	for _, e := range s.candidates {
		if e.ID() == id {
			return e, true
		}
	}
	return nil, false
}

// displayFor returns the display name of a stored identifier, or "" when unknown
func (s *selectorState) displayFor(id string) string {
	if e, ok := s.byID(id); ok {
		return s.spec.DisplayOf(e)
	}
	return ""
}

// populate evaluates the auto-population map against a selected entity.
// Only targets accepted by allowed are written; the written values are returned by target.
func populate(rules []PopulateRule, selected models.Entity, allowed func(string) bool) map[string]string {
	out := make(map[string]string)
	for _, r := range rules {
		if !allowed(r.Target) {
			continue
		}
		if v := selected.FirstNonEmpty(r.Sources...); v != "" {
			out[r.Target] = v
		}
	}
	return out
}
