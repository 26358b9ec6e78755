package services

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
	"github.com/nexuscrm/formengine/pkg/models"
)

func names(fields []models.FieldDefinition) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func TestFieldConfigModel_Load(t *testing.T) {
	reg := newMemRegistry()
	reg.put(testTenant, constants.EntityLead, []models.FieldDefinition{
		field("b", "s1", constants.FieldTypeText, 2, false, true),
		field("a", "s1", constants.FieldTypeText, 1, true, false),
		field("a", "s2", constants.FieldTypeText, 9, false, true),
		field("odd", "s2", constants.FieldType("colour"), 1, false, true),
	})

	m := NewFieldConfigModel(reg, nil, testTenant, constants.EntityLead)
	assert.False(t, m.Loaded())

	fields, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, m.Loaded())
	assert.Equal(t, []string{"b", "a", "odd"}, names(fields), "duplicates are dropped, first wins")

	a, ok := m.Field("a")
	require.True(t, ok)
	assert.True(t, a.IsEnabled, "mandatory fields are always enabled")

	odd, _ := m.Field("odd")
	assert.Equal(t, constants.FieldTypeText, odd.Type)
}

func TestFieldConfigModel_DerivedViews(t *testing.T) {
	reg := newMemRegistry()
	reg.put(testTenant, constants.EntityLead, leadFields())
	m := NewFieldConfigModel(reg, nil, testTenant, constants.EntityLead)
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"lead_id", "account", "contact"}, names(m.MandatoryFields()))
	assert.Len(t, m.OptionalFields(), 6)
	assert.Equal(t, 7, m.EnabledFieldCount())
	assert.Equal(t, []string{"website", "notes"}, names(m.FieldsInSection(constants.SectionAdditionalInfo)))
	assert.Empty(t, m.FieldsInSection("nope"))
}

func TestFieldConfigModel_FieldsInSectionTieBreak(t *testing.T) {
	reg := newMemRegistry()
	reg.put(testTenant, constants.EntityLead, []models.FieldDefinition{
		field("late", "s", constants.FieldTypeText, 5, false, true),
		field("tie1", "s", constants.FieldTypeText, 1, false, true),
		field("tie2", "s", constants.FieldTypeText, 1, false, true),
		field("neg", "s", constants.FieldTypeText, -3, false, true),
	})
	m := NewFieldConfigModel(reg, nil, testTenant, constants.EntityLead)
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"neg", "tie1", "tie2", "late"}, names(m.FieldsInSection("s")))
}

func TestFieldConfigModel_LoadFailureIsNotEmpty(t *testing.T) {
	reg := newMemRegistry()
	reg.put(testTenant, constants.EntityLead, leadFields())
	m := NewFieldConfigModel(reg, nil, testTenant, constants.EntityLead)
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	reg.loadErr = stderrors.New("connection refused")
	fields, err := m.Load(context.Background())
	require.Error(t, err)
	assert.Nil(t, fields)
	assert.True(t, errors.IsRegistryUnavailable(err))

	var unavailable *errors.RegistryUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.True(t, unavailable.Retryable())
	assert.Equal(t, 9, len(m.Fields()), "previous view is kept")
}

func TestFieldConfigModel_OrderedSections(t *testing.T) {
	reg := newMemRegistry()
	reg.put(testTenant, constants.EntityLead, []models.FieldDefinition{
		field("x", "custom_b", constants.FieldTypeText, 1, false, true),
		field("y", constants.SectionContactInfo, constants.FieldTypeText, 1, false, true),
		field("z", "custom_a", constants.FieldTypeText, 1, false, true),
		field("w", constants.SectionBasicInfo, constants.FieldTypeText, 1, false, true),
	})
	m := NewFieldConfigModel(reg, nil, testTenant, constants.EntityLead)
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	lead, _ := DefaultEntityCatalog().Get(constants.EntityLead)
	assert.Equal(t,
		[]string{constants.SectionBasicInfo, constants.SectionContactInfo, "custom_b", "custom_a"},
		m.OrderedSections(lead))
	assert.Equal(t, []string{"custom_b", constants.SectionContactInfo, "custom_a", constants.SectionBasicInfo}, m.Sections())
}
