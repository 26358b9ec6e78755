package fieldtypes

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nexuscrm/formengine/pkg/constants"
)

//go:embed fieldTypes.json
var fieldTypesFS embed.FS

// FieldTypeDefinition describes how a field type is presented to the client
type FieldTypeDefinition struct {
	Label          string  `json:"label"`
	InputType      string  `json:"inputType"`
	Description    string  `json:"description"`
	Pattern        *string `json:"pattern,omitempty"`
	PatternMessage *string `json:"patternMessage,omitempty"`
	Rows           int     `json:"rows,omitempty"`
	HasOptions     bool    `json:"hasOptions,omitempty"`
	Resolves       bool    `json:"resolves,omitempty"`
}

// Registry holds field type definitions
type Registry struct {
	types map[constants.FieldType]FieldTypeDefinition
	mu    sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// GetRegistry returns the singleton field types registry.
// It panics if the embedded catalogue does not cover every constants.FieldType.
func GetRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = &Registry{
			types: make(map[constants.FieldType]FieldTypeDefinition),
		}
		if err := defaultRegistry.loadFromEmbedded(); err != nil {
			panic(err)
		}
	})
	return defaultRegistry
}

// loadFromEmbedded loads field types from the embedded JSON file
func (r *Registry) loadFromEmbedded() error {
	data, err := fieldTypesFS.ReadFile("fieldTypes.json")
	if err != nil {
		return err
	}

	var types map[constants.FieldType]FieldTypeDefinition
	if err := json.Unmarshal(data, &types); err != nil {
		return err
	}

	for _, t := range constants.AllFieldTypes() {
		if _, ok := types[t]; !ok {
			return fmt.Errorf("fieldTypes.json is missing field type %q", t)
		}
	}
	for t := range types {
		if !t.IsValid() {
			return fmt.Errorf("fieldTypes.json declares unknown field type %q", t)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = types
	return nil
}

// Get returns a field type definition by type
func (r *Registry) Get(t constants.FieldType) (FieldTypeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[t]
	return def, ok
}

// InputType returns the client input type, falling back to "text"
func (r *Registry) InputType(t constants.FieldType) string {
	def, ok := r.Get(t)
	if !ok || def.InputType == "" {
		return string(constants.FieldTypeText)
	}
	return def.InputType
}

// GetPattern returns the client-side hint pattern and message for a field type
func (r *Registry) GetPattern(t constants.FieldType) (pattern string, message string) {
	def, ok := r.Get(t)
	if !ok {
		return "", ""
	}
	if def.Pattern != nil {
		pattern = *def.Pattern
	}
	if def.PatternMessage != nil {
		message = *def.PatternMessage
	}
	return pattern, message
}

// HasOptions returns whether the field type renders an option list
func (r *Registry) HasOptions(t constants.FieldType) bool {
	def, ok := r.Get(t)
	return ok && def.HasOptions
}

// Resolves returns whether values of this type are resolved against a lookup set
func (r *Registry) Resolves(t constants.FieldType) bool {
	def, ok := r.Get(t)
	return ok && def.Resolves
}

// All returns a copy of every definition keyed by type
func (r *Registry) All() map[constants.FieldType]FieldTypeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[constants.FieldType]FieldTypeDefinition, len(r.types))
	for k, v := range r.types {
		out[k] = v
	}
	return out
}

// Convenience functions using the default registry

// GetPattern returns the hint pattern using the default registry
func GetPattern(t constants.FieldType) (string, string) {
	return GetRegistry().GetPattern(t)
}

// InputType returns the client input type using the default registry
func InputType(t constants.FieldType) string {
	return GetRegistry().InputType(t)
}
