package services

import (
	"fmt"
	"strings"

	"github.com/nexuscrm/formengine/pkg/models"
)

// PopulateRule copies the first non-empty source attribute of a selected entity
// into the Target draft field.
type PopulateRule struct {
	Target  string
	Sources []string
}

// DependencySpec describes how one select_dependent field resolves
type DependencySpec struct {
	// Field is the draft field this selector writes
	Field string
	// LookupType is the candidate collection fetched from the LookupSource
	LookupType string
	// DependsOn names the field whose value scopes the lookup ("" for independent selectors)
	DependsOn string
	// ScopeKey is the filter key sent with the dependency value
	ScopeKey string
	// DisplayOf projects an entity to its display name
	DisplayOf func(models.Entity) string
	// AutoPopulate is evaluated once per selection event
	AutoPopulate []PopulateRule
}

// Dependent reports whether the selector is scoped by another field
func (d DependencySpec) Dependent() bool {
	return d.DependsOn != ""
}

// Filter builds the lookup filter for the given dependency value
func (d DependencySpec) Filter(scope string) map[string]string {
	if !d.Dependent() {
		return nil
	}
	return map[string]string{d.ScopeKey: scope}
}

// DependencyTable maps field name to its resolution rule for one entity type
type DependencyTable map[string]DependencySpec

// Children returns the selectors that depend directly on field, in stable name order
func (t DependencyTable) Children(field string) []DependencySpec {
	var out []DependencySpec
	for _, name := range t.sortedNames() {
		spec := t[name]
		if spec.DependsOn == field {
			out = append(out, spec)
		}
	}
	return out
}

// Validate checks that every entry is complete and that there are no dependency cycles
func (t DependencyTable) Validate() error {
	for name, spec := range t {
		if spec.Field != name {
			return fmt.Errorf("dependency %q declares field %q", name, spec.Field)
		}
		if spec.LookupType == "" {
			return fmt.Errorf("dependency %q has no lookup type", name)
		}
		if spec.DisplayOf == nil {
			return fmt.Errorf("dependency %q has no display projection", name)
		}
		if spec.Dependent() && spec.ScopeKey == "" {
			return fmt.Errorf("dependency %q depends on %q without a scope key", name, spec.DependsOn)
		}
	}

	for name := range t {
		seen := map[string]bool{name: true}
		cur := t[name].DependsOn
		for cur != "" {
			if seen[cur] {
				return fmt.Errorf("dependency cycle through %q", cur)
			}
			seen[cur] = true
			next, ok := t[cur]
			if !ok {
				break
			}
			cur = next.DependsOn
		}
	}
	return nil
}

func (t DependencyTable) sortedNames() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sortStrings(names)
	return names
}

// DisplayPart extracts one candidate display string from an entity
type DisplayPart func(models.Entity) string

// Attr reads a single attribute
func Attr(key string) DisplayPart {
	return func(e models.Entity) string {
		return e.String(key)
	}
}

// Joined space-joins the non-empty attributes, e.g. first and last name
func Joined(keys ...string) DisplayPart {
	return func(e models.Entity) string {
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := e.String(k); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
}

// DisplayChain returns the first non-empty part, falling back to "<prefix> <id>"
func DisplayChain(prefix string, parts ...DisplayPart) func(models.Entity) string {
	return func(e models.Entity) string {
		for _, p := range parts {
			if s := p(e); s != "" {
				return s
			}
		}
		return fmt.Sprintf("%s %s", prefix, e.ID())
	}
}
