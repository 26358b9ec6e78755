package services

import (
	"fmt"
	"strings"

	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
	"github.com/nexuscrm/formengine/pkg/fieldtypes"
	"github.com/nexuscrm/formengine/pkg/models"
	"github.com/nexuscrm/formengine/pkg/validator"
)

// Control is the rendered, editable representation of one enabled field
type Control struct {
	Name           string              `json:"name"`
	Label          string              `json:"label"`
	Type           constants.FieldType `json:"type"`
	InputType      string              `json:"input_type"`
	Required       bool                `json:"required"`
	Value          interface{}         `json:"value"`
	DisplayValue   string              `json:"display_value,omitempty"`
	Options        []Option            `json:"options,omitempty"`
	Placeholder    *string             `json:"placeholder,omitempty"`
	HelpText       *string             `json:"help_text,omitempty"`
	Pattern        string              `json:"pattern,omitempty"`
	PatternMessage string              `json:"pattern_message,omitempty"`
	Rows           int                 `json:"rows,omitempty"`
	DependsOn      string              `json:"depends_on,omitempty"`
	Disabled       bool                `json:"disabled"`
	Loading        bool                `json:"loading"`
	Error          string              `json:"error,omitempty"`
	LookupError    string              `json:"lookup_error,omitempty"`
}

// renderInput is the draft-side state a renderer needs for one field
type renderInput struct {
	value    interface{}
	err      string
	selector *selectorState
	// dependencyValue is the current draft value of the selector's dependency
	dependencyValue string
}

// fieldRenderer is implemented once per field type variant
type fieldRenderer interface {
	render(def models.FieldDefinition, in renderInput) Control
	// accept normalizes a value written through onChange for non-lookup fields
	accept(def models.FieldDefinition, raw interface{}) (interface{}, error)
}

var renderers = map[constants.FieldType]fieldRenderer{
	constants.FieldTypeText:            plainRenderer{},
	constants.FieldTypeEmail:           plainRenderer{},
	constants.FieldTypeTel:             plainRenderer{},
	constants.FieldTypeURL:             plainRenderer{},
	constants.FieldTypeNumber:          plainRenderer{},
	constants.FieldTypeDate:            plainRenderer{},
	constants.FieldTypeTextArea:        textAreaRenderer{},
	constants.FieldTypeSelect:          staticSelectRenderer{},
	constants.FieldTypeSelectDependent: dependentSelectRenderer{},
}

func init() {
	reg := fieldtypes.GetRegistry()
	for _, t := range constants.AllFieldTypes() {
		if _, ok := renderers[t]; !ok {
			panic(fmt.Sprintf("no renderer for field type %q", t))
		}
		if _, ok := reg.Get(t); !ok {
			panic(fmt.Sprintf("no catalogue entry for field type %q", t))
		}
	}
}

func rendererFor(t constants.FieldType) fieldRenderer {
	if r, ok := renderers[t]; ok {
		return r
	}
	return plainRenderer{}
}

// renderField produces the control for one field
func renderField(def models.FieldDefinition, in renderInput) Control {
	return rendererFor(def.Type).render(def, in)
}

func baseControl(def models.FieldDefinition, in renderInput) Control {
	reg := fieldtypes.GetRegistry()
	pattern, message := reg.GetPattern(def.Type)
	return Control{
		Name:           def.Name,
		Label:          def.Label,
		Type:           def.Type,
		InputType:      reg.InputType(def.Type),
		Required:       def.IsMandatory,
		Value:          in.value,
		Placeholder:    def.Placeholder,
		HelpText:       def.HelpText,
		Pattern:        pattern,
		PatternMessage: message,
		Error:          in.err,
	}
}

type plainRenderer struct{}

func (plainRenderer) render(def models.FieldDefinition, in renderInput) Control {
	return baseControl(def, in)
}

func (plainRenderer) accept(def models.FieldDefinition, raw interface{}) (interface{}, error) {
	return acceptFormatted(def, raw)
}

// acceptFormatted trims string input and checks it against the field type's format
func acceptFormatted(def models.FieldDefinition, raw interface{}) (interface{}, error) {
	if str, ok := raw.(string); ok {
		raw = strings.TrimSpace(str)
	}
	if err := validator.GetRegistry().ValidateFieldType(def.Type, raw); err != nil {
		return nil, errors.NewValidationError(def.Name, err.Error())
	}
	return raw, nil
}

type textAreaRenderer struct{}

func (textAreaRenderer) render(def models.FieldDefinition, in renderInput) Control {
	c := baseControl(def, in)
	if typ, ok := fieldtypes.GetRegistry().Get(def.Type); ok {
		c.Rows = typ.Rows
	}
	return c
}

func (textAreaRenderer) accept(def models.FieldDefinition, raw interface{}) (interface{}, error) {
	return acceptFormatted(def, raw)
}

type staticSelectRenderer struct{}

func (staticSelectRenderer) render(def models.FieldDefinition, in renderInput) Control {
	c := baseControl(def, in)
	c.Options = make([]Option, 0, len(def.Options))
	for _, o := range def.Options {
		c.Options = append(c.Options, Option{Value: o, Label: o})
	}
	return c
}

func (staticSelectRenderer) accept(def models.FieldDefinition, raw interface{}) (interface{}, error) {
	s := strings.TrimSpace(fmt.Sprint(raw))
	if raw == nil || s == "" {
		return "", nil
	}
	for _, o := range def.Options {
		if o == s {
			return o, nil
		}
	}
	return nil, errors.NewValidationError(def.Name, fmt.Sprintf("%q is not an allowed option", s))
}

type dependentSelectRenderer struct{}

func (dependentSelectRenderer) render(def models.FieldDefinition, in renderInput) Control {
	c := baseControl(def, in)
	st := in.selector
	if st == nil {
		// select_dependent without a dependency table entry has nothing to resolve against
		c.Disabled = true
		return c
	}

	c.DependsOn = st.spec.DependsOn
	c.Options = st.options()
	c.Loading = st.loading
	if id, ok := in.value.(string); ok && id != "" {
		c.DisplayValue = st.displayFor(id)
	}
	if st.lookupErr != nil {
		c.LookupError = st.lookupErr.Error()
	}
	c.Disabled = st.loading || st.lookupErr != nil || (st.spec.Dependent() && in.dependencyValue == "")
	return c
}

// accept is only reached for select_dependent fields without a lookup, which render disabled
func (dependentSelectRenderer) accept(def models.FieldDefinition, _ interface{}) (interface{}, error) {
	return nil, errors.NewConflictError("Field "+def.Name, "has no lookup configured")
}
