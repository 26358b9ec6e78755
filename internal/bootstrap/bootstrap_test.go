package bootstrap

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/application/services"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/models"
)

func TestDefaultFields_MatchCatalog(t *testing.T) {
	defaults, err := DefaultFields()
	require.NoError(t, err)
	catalog := services.DefaultEntityCatalog()

	for _, name := range catalog.Names() {
		t.Run(name, func(t *testing.T) {
			def, _ := catalog.Get(name)
			fields, ok := defaults[name]
			require.True(t, ok, "no default catalogue")
			require.NotEmpty(t, fields)

			seen := map[string]bool{}
			mandatory := 0
			for _, f := range fields {
				assert.False(t, seen[f.Name], "duplicate field %s", f.Name)
				seen[f.Name] = true
				assert.True(t, f.Type.IsValid(), "field %s has type %q", f.Name, f.Type)
				assert.GreaterOrEqual(t, def.SectionRank(f.Section), 0, "field %s in unlisted section %s", f.Name, f.Section)
				if f.Type == constants.FieldTypeSelectDependent {
					_, ok := def.Dependencies[f.Name]
					assert.True(t, ok, "selector %s has no dependency entry", f.Name)
				}
				if f.Type == constants.FieldTypeSelect {
					assert.NotEmpty(t, f.Options, "select %s has no options", f.Name)
				}
				if f.IsMandatory && !def.IsSystemField(f.Name) {
					mandatory++
				}
			}
			assert.Greater(t, mandatory, 0, "at least one mandatory visible field")
			for _, sys := range def.SystemFields {
				assert.True(t, seen[sys], "system field %s missing", sys)
			}
		})
	}
}

func TestInitializeSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS form_field_config")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, InitializeSchema(context.Background(), db, zap.NewNop()))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("access denied"))
	assert.Error(t, InitializeSchema(context.Background(), db, zap.NewNop()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeSeeder struct {
	seeded map[string]int
	failOn string
}

func (f *fakeSeeder) SeedFieldConfig(_ context.Context, tenantID, entityType string, fields []models.FieldDefinition) (bool, error) {
	key := tenantID + "/" + entityType
	if key == f.failOn {
		return false, errors.New("write failed")
	}
	if _, exists := f.seeded[key]; exists {
		return false, nil
	}
	f.seeded[key] = len(fields)
	return true, nil
}

func TestSeedDefaults(t *testing.T) {
	seeder := &fakeSeeder{seeded: map[string]int{"t1/lead": 99}, failOn: "t2/product"}

	err := SeedDefaults(context.Background(), seeder,
		[]string{"t1", "t2"}, []string{constants.EntityLead, constants.EntityProduct, "spaceship"}, zap.NewNop())
	require.Error(t, err)

	assert.Equal(t, 99, seeder.seeded["t1/lead"], "existing pair untouched")
	assert.Contains(t, seeder.seeded, "t1/product")
	assert.Contains(t, seeder.seeded, "t2/lead", "a failure does not stop later pairs")
	assert.NotContains(t, seeder.seeded, "t2/product")
	assert.NotContains(t, seeder.seeded, "t1/spaceship")
}
