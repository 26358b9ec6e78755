package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscrm/formengine/pkg/constants"
)

func TestValidateFieldType(t *testing.T) {
	r := GetRegistry()

	tests := []struct {
		name    string
		typ     constants.FieldType
		value   interface{}
		wantErr bool
	}{
		{"valid email", constants.FieldTypeEmail, "jane@acme.test", false},
		{"email without domain", constants.FieldTypeEmail, "abc", true},
		{"email with display name", constants.FieldTypeEmail, "Jane <jane@acme.test>", true},
		{"valid url", constants.FieldTypeURL, "https://acme.test", false},
		{"url without scheme", constants.FieldTypeURL, "acme.test", true},
		{"valid phone", constants.FieldTypeTel, "+1 (555) 010-0100", false},
		{"short phone", constants.FieldTypeTel, "555", true},
		{"phone with letters", constants.FieldTypeTel, "555-CALL-NOW", true},
		{"numeric string", constants.FieldTypeNumber, " 12.5 ", false},
		{"float", constants.FieldTypeNumber, 8.0, false},
		{"int", constants.FieldTypeNumber, 8, false},
		{"not a number", constants.FieldTypeNumber, "abc", true},
		{"bool is not a number", constants.FieldTypeNumber, true, true},
		{"valid date", constants.FieldTypeDate, "2026-01-31", false},
		{"bad date", constants.FieldTypeDate, "31/01/2026", true},
		{"free text", constants.FieldTypeText, "anything at all", false},
		{"textarea", constants.FieldTypeTextArea, "line one\nline two", false},
		{"blank passes", constants.FieldTypeEmail, "  ", false},
		{"nil passes", constants.FieldTypeNumber, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateFieldType(tt.typ, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFieldType_CatalogueMessage(t *testing.T) {
	err := GetRegistry().ValidateFieldType(constants.FieldTypeTel, "555-0100 ext")
	if assert.Error(t, err) {
		assert.Equal(t, "must be a valid phone number", err.Error())
	}
}

func TestRegistry_RegisterAndValidate(t *testing.T) {
	r := NewRegistry()
	r.Register("never", func(value interface{}, config map[string]interface{}) error {
		return errors.New("rejected")
	})

	assert.EqualError(t, r.Validate("never", "x", nil), "rejected")
	assert.Error(t, r.Validate("missing", "x", nil))
	assert.EqualError(t, r.Validate("regex", "abc", map[string]interface{}{"pattern": `^\d+$`, "message": "digits only"}), "digits only")
	assert.Error(t, r.Validate("regex", "abc", map[string]interface{}{"pattern": `(`}))
}
