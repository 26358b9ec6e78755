package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/models"
)

const testTenant = "tenant-1"

// memRegistry is an in-memory RegistryStore
type memRegistry struct {
	mu      sync.Mutex
	fields  map[string][]models.FieldDefinition
	loadErr error
	saveErr error
	saves   int
}

func newMemRegistry() *memRegistry {
	return &memRegistry{fields: make(map[string][]models.FieldDefinition)}
}

func (r *memRegistry) put(tenantID, entityType string, fields []models.FieldDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[tenantID+"/"+entityType] = fields
}

func (r *memRegistry) LoadFieldConfig(_ context.Context, tenantID, entityType string) ([]models.FieldDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	src := r.fields[tenantID+"/"+entityType]
	out := make([]models.FieldDefinition, len(src))
	for i, f := range src {
		out[i] = f.Clone()
	}
	return out, nil
}

func (r *memRegistry) SaveFieldConfig(_ context.Context, tenantID, entityType string, fields []models.FieldDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	out := make([]models.FieldDefinition, len(fields))
	for i, f := range fields {
		out[i] = f.Clone()
	}
	r.fields[tenantID+"/"+entityType] = out
	return nil
}

// fakeLookups serves candidates from memory, filtering on exact attribute match
type fakeLookups struct {
	mu    sync.Mutex
	data  map[string][]models.Entity
	errs  map[string]error
	calls []string
	// gate runs before the lookup returns, outside the mutex
	gate func(lookupType string, filter map[string]string)
}

func (l *fakeLookups) FetchEntities(_ context.Context, tenantID, lookupType string, filter map[string]string) ([]models.Entity, error) {
	l.mu.Lock()
	l.calls = append(l.calls, fmt.Sprintf("%s%v", lookupType, filter))
	gate := l.gate
	l.mu.Unlock()

	if gate != nil {
		gate(lookupType, filter)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.errs[lookupType]; err != nil {
		return nil, err
	}
	var out []models.Entity
	for _, e := range l.data[lookupType] {
		match := true
		for k, v := range filter {
			if e.String(k) != v {
				match = false
			}
		}
		if match {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeLookups) setErr(lookupType string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.errs == nil {
		l.errs = make(map[string]error)
	}
	l.errs[lookupType] = err
}

// mockRecords is a testify mock RecordStore
type mockRecords struct {
	mock.Mock
}

func (m *mockRecords) CreateRecord(ctx context.Context, tenantID, entityType string, payload map[string]interface{}) (string, error) {
	args := m.Called(ctx, tenantID, entityType, payload)
	return args.String(0), args.Error(1)
}

func (m *mockRecords) UpdateRecord(ctx context.Context, tenantID, entityType, recordID string, payload map[string]interface{}) error {
	args := m.Called(ctx, tenantID, entityType, recordID, payload)
	return args.Error(0)
}

// countingMetrics records every observation
type countingMetrics struct {
	mu          sync.Mutex
	lookups     map[string]int
	saves       map[string]int
	submissions map[string]int
	stale       int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		lookups:     make(map[string]int),
		saves:       make(map[string]int),
		submissions: make(map[string]int),
	}
}

func (m *countingMetrics) LookupCompleted(lookupType, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[lookupType+"/"+result]++
}

func (m *countingMetrics) RegistrySaveCompleted(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[result]++
}

func (m *countingMetrics) SubmissionCompleted(entityType, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[entityType+"/"+result]++
}

func (m *countingMetrics) StaleResponseDiscarded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale++
}

func (m *countingMetrics) staleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}

func field(name, section string, typ constants.FieldType, order int, mandatory, enabled bool) models.FieldDefinition {
	return models.FieldDefinition{
		Name:         name,
		Label:        name,
		Type:         typ,
		IsMandatory:  mandatory,
		IsEnabled:    enabled,
		Section:      section,
		DisplayOrder: order,
	}
}

func leadFields() []models.FieldDefinition {
	source := field("lead_source", constants.SectionLeadDetails, constants.FieldTypeSelect, 1, false, true)
	source.Options = []string{"Web", "Referral"}
	return []models.FieldDefinition{
		field("lead_id", constants.SectionBasicInfo, constants.FieldTypeText, 0, true, true),
		field(constants.FieldAccount, constants.SectionBasicInfo, constants.FieldTypeSelectDependent, 1, true, true),
		field(constants.FieldContact, constants.SectionBasicInfo, constants.FieldTypeSelectDependent, 2, true, true),
		source,
		field(constants.FieldFirstName, constants.SectionContactInfo, constants.FieldTypeText, 1, false, true),
		field(constants.FieldPhoneNumber, constants.SectionContactInfo, constants.FieldTypeTel, 2, false, true),
		field(constants.FieldEmailAddress, constants.SectionContactInfo, constants.FieldTypeEmail, 3, false, false),
		field("website", constants.SectionAdditionalInfo, constants.FieldTypeURL, 1, false, true),
		field("notes", constants.SectionAdditionalInfo, constants.FieldTypeTextArea, 2, false, false),
	}
}

func testLookups() *fakeLookups {
	return &fakeLookups{data: map[string][]models.Entity{
		constants.LookupAccounts: {
			{"id": "a1", "account_name": "Acme"},
			{"id": "a2", "name": "Globex"},
			{"id": "a3"},
		},
		constants.LookupContacts: {
			{"id": "c1", "account_id": "a1", "first_name": "Jane", "last_name": "Doe", "phone_work": "555-0100", "email": "jane@acme.test"},
			{"id": "c2", "account_id": "a1", "contact_name": "Max Power"},
			{"id": "c3", "account_id": "a2", "full_name": "Bob Smith"},
		},
		constants.LookupUsers: {
			{"id": "u1", "full_name": "Ann Admin"},
		},
		constants.LookupProducts: {
			{"id": "p1", "product_name": "Widget", "price": 10.0},
			{"id": "p2", "name": "Gadget", "base_price": "2.5"},
			{"id": "p3", "product_name": "Free Sample"},
		},
	}}
}

type testEnv struct {
	registry *memRegistry
	lookups  *fakeLookups
	records  *mockRecords
	metrics  *countingMetrics
	bus      *EventBus
	forms    *FormService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		registry: newMemRegistry(),
		lookups:  testLookups(),
		records:  &mockRecords{},
		metrics:  newCountingMetrics(),
		bus:      NewEventBus(),
	}
	env.registry.put(testTenant, constants.EntityLead, leadFields())
	env.forms = NewFormService(DefaultEntityCatalog(), env.registry, SessionDeps{
		Lookups: env.lookups,
		Records: env.records,
		Events:  env.bus,
		Metrics: env.metrics,
	}, 0)
	return env
}

func (env *testEnv) openLead(t *testing.T) *FormSession {
	t.Helper()
	s, err := env.forms.Open(context.Background(), testTenant, constants.EntityLead, "", nil)
	require.NoError(t, err)
	return s
}

func controlNames(view FormView) []string {
	var names []string
	for _, sec := range view.Sections {
		for _, c := range sec.Controls {
			names = append(names, c.Name)
		}
	}
	return names
}

func findControl(t *testing.T, view FormView, name string) Control {
	t.Helper()
	for _, sec := range view.Sections {
		for _, c := range sec.Controls {
			if c.Name == name {
				return c
			}
		}
	}
	t.Fatalf("control %q not rendered", name)
	return Control{}
}
