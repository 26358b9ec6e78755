package models

import (
	"github.com/nexuscrm/formengine/pkg/constants"
)

// FieldType is defined in pkg/constants
type FieldType = constants.FieldType

// FieldDefinition is one configurable field for a (tenant, entity type) pair
type FieldDefinition struct {
	ID           string    `json:"id,omitempty"`
	Name         string    `json:"field_name"`
	Label        string    `json:"field_label"`
	Type         FieldType `json:"field_type"`
	IsMandatory  bool      `json:"is_mandatory"`
	IsEnabled    bool      `json:"is_enabled"`
	Section      string    `json:"field_section"`
	DisplayOrder int       `json:"display_order"`
	Options      []string  `json:"field_options,omitempty"`
	Placeholder  *string   `json:"placeholder,omitempty"`
	HelpText     *string   `json:"help_text,omitempty"`
}

// Active reports whether the field takes part in rendering and validation.
// Mandatory fields are always active regardless of the stored flag.
func (f FieldDefinition) Active() bool {
	return f.IsMandatory || f.IsEnabled
}

// Clone returns a deep copy so callers can mutate without aliasing the registry view
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	if f.Options != nil {
		out.Options = append([]string(nil), f.Options...)
	}
	if f.Placeholder != nil {
		p := *f.Placeholder
		out.Placeholder = &p
	}
	if f.HelpText != nil {
		h := *f.HelpText
		out.HelpText = &h
	}
	return out
}

// FieldConfigUpdate is the editable subset of a FieldDefinition submitted on save
type FieldConfigUpdate struct {
	Name         string  `json:"field_name"`
	Label        string  `json:"field_label"`
	IsEnabled    bool    `json:"is_enabled"`
	Section      string  `json:"field_section"`
	DisplayOrder int     `json:"display_order"`
	Placeholder  *string `json:"placeholder,omitempty"`
	HelpText     *string `json:"help_text,omitempty"`
}

// ToUpdate projects the editable part of the definition
func (f FieldDefinition) ToUpdate() FieldConfigUpdate {
	return FieldConfigUpdate{
		Name:         f.Name,
		Label:        f.Label,
		IsEnabled:    f.Active(),
		Section:      f.Section,
		DisplayOrder: f.DisplayOrder,
		Placeholder:  f.Placeholder,
		HelpText:     f.HelpText,
	}
}

// StringPtr is a small helper for optional display hints
func StringPtr(s string) *string {
	return &s
}
