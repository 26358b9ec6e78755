package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/formengine/internal/application/services"
	"github.com/nexuscrm/formengine/internal/interfaces/middleware"
	"github.com/nexuscrm/formengine/internal/interfaces/rest"
	"github.com/nexuscrm/formengine/pkg/auth"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/models"
)

type memRegistry struct {
	mu     sync.Mutex
	fields map[string][]models.FieldDefinition
	saves  int
}

func (r *memRegistry) LoadFieldConfig(_ context.Context, tenantID, entityType string) ([]models.FieldDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.FieldDefinition, 0)
	for _, f := range r.fields[tenantID+"/"+entityType] {
		out = append(out, f.Clone())
	}
	return out, nil
}

func (r *memRegistry) SaveFieldConfig(_ context.Context, tenantID, entityType string, fields []models.FieldDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.fields[tenantID+"/"+entityType] = fields
	return nil
}

type staticLookups map[string][]models.Entity

func (l staticLookups) FetchEntities(_ context.Context, _, lookupType string, filter map[string]string) ([]models.Entity, error) {
	var out []models.Entity
	for _, e := range l[lookupType] {
		ok := true
		for k, v := range filter {
			if e.String(k) != v {
				ok = false
			}
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

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

type testServer struct {
	router   *gin.Engine
	registry *memRegistry
	records  *mockRecords
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	registry := &memRegistry{fields: map[string][]models.FieldDefinition{
		"acme/lead": {
			{Name: "account", Label: "Account", Type: constants.FieldTypeSelectDependent, IsMandatory: true, IsEnabled: true, Section: constants.SectionBasicInfo, DisplayOrder: 1},
			{Name: "first_name", Label: "First Name", Type: constants.FieldTypeText, IsMandatory: true, IsEnabled: true, Section: constants.SectionContactInfo, DisplayOrder: 1},
			{Name: "website", Label: "Website", Type: constants.FieldTypeURL, IsEnabled: true, Section: constants.SectionAdditionalInfo, DisplayOrder: 1},
		},
	}}
	lookups := staticLookups{
		constants.LookupAccounts: {{"id": "a1", "account_name": "Acme Corp"}},
		constants.LookupProducts: {{"id": "p1", "product_name": "Widget", "price": 10.0}},
	}
	records := &mockRecords{}

	svcMgr, err := services.NewServiceManager(services.Stores{Registry: registry, Lookups: lookups, Records: records}, nil, nil, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	api := router.Group("/api", middleware.RequireTenant(auth.NewVerifier("")))
	rest.NewFieldConfigHandler(svcMgr).RegisterRoutes(api)
	rest.NewFormHandler(svcMgr).RegisterRoutes(api)

	return &testServer{router: router, registry: registry, records: records}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	req.Header.Set(constants.HeaderTenantID, "acme")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestFormHandler_LeadLifecycle(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/forms/lead", nil)
	require.Equal(t, http.StatusCreated, code, body)
	form := body[constants.ResponseForm].(map[string]interface{})
	id := form["id"].(string)
	assert.Equal(t, "editing", form["phase"])

	code, body = s.do(t, http.MethodPost, "/api/forms/"+id+"/validate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	details := body[constants.ResponseErrors].(map[string]interface{})
	assert.Contains(t, details, "account")
	assert.Contains(t, details, "first_name")
	assert.Contains(t, details, constants.PseudoFieldProducts)
	assert.Equal(t, "account", body["field"])

	code, body = s.do(t, http.MethodPut, "/api/forms/"+id+"/fields/account", gin.H{"value": "Nope Inc"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "account", body["field"])

	code, _ = s.do(t, http.MethodPut, "/api/forms/"+id+"/fields/account", gin.H{"value": "Acme Corp"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPut, "/api/forms/"+id+"/fields/first_name", gin.H{"value": "Ann"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/forms/"+id+"/products/p1/toggle", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPatch, "/api/forms/"+id+"/products/p1", gin.H{"quantity": 3})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, "/api/forms/"+id+"/submit", nil)
	assert.Equal(t, http.StatusConflict, code, "submit requires review")

	code, body = s.do(t, http.MethodPost, "/api/forms/"+id+"/review", nil)
	require.Equal(t, http.StatusOK, code, body)
	review := body[constants.ResponseReview].(map[string]interface{})
	assert.Equal(t, 30.0, review["grand_total"])

	s.records.On("CreateRecord", mock.Anything, "acme", "lead", mock.MatchedBy(func(p map[string]interface{}) bool {
		return p["account"] == "a1" && p["account_name"] == "Acme Corp" && p["first_name"] == "Ann"
	})).Return("L-1", nil).Once()

	code, body = s.do(t, http.MethodPost, "/api/forms/"+id+"/submit", gin.H{"save_and_new": true})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "L-1", body[constants.ResponseRecordID])
	form = body[constants.ResponseForm].(map[string]interface{})
	assert.Equal(t, "editing", form["phase"])
	s.records.AssertExpectations(t)

	code, _ = s.do(t, http.MethodDelete, "/api/forms/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/forms/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFormHandler_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{"unknown entity type", http.MethodPost, "/api/forms/spaceship", http.StatusNotFound},
		{"unknown session", http.MethodGet, "/api/forms/nope", http.StatusNotFound},
		{"unknown section session", http.MethodGet, "/api/forms/nope/sections/basic_info", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, "NOT_FOUND", body["code"])
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/forms/lead", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFormHandler_RenderSection(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(t, http.MethodPost, "/api/forms/lead", nil)
	id := body[constants.ResponseForm].(map[string]interface{})["id"].(string)

	code, body := s.do(t, http.MethodGet, "/api/forms/"+id+"/sections/contact_info", nil)
	require.Equal(t, http.StatusOK, code)
	section := body[constants.ResponseSection].(map[string]interface{})
	controls := section["controls"].([]interface{})
	require.Len(t, controls, 1)
	assert.Equal(t, "first_name", controls[0].(map[string]interface{})["name"])
}

func TestFieldConfigHandler(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/admin/fields/lead", nil)
	require.Equal(t, http.StatusOK, code, body)
	editor := body[constants.ResponseEditor].(map[string]interface{})
	assert.Equal(t, 3.0, editor["enabled_count"])
	assert.Equal(t, false, editor["has_changes"])

	code, body = s.do(t, http.MethodPost, "/api/admin/fields/lead/toggle", gin.H{"field_name": "first_name"})
	assert.Equal(t, http.StatusOK, code, "mandatory toggle is a no-op")
	assert.Equal(t, false, body[constants.ResponseEditor].(map[string]interface{})["has_changes"])

	code, body = s.do(t, http.MethodPost, "/api/admin/fields/lead/toggle", gin.H{"field_name": "website"})
	require.Equal(t, http.StatusOK, code)
	editor = body[constants.ResponseEditor].(map[string]interface{})
	assert.Equal(t, 2.0, editor["enabled_count"])
	assert.Equal(t, true, editor["has_changes"])

	code, _ = s.do(t, http.MethodPost, "/api/admin/fields/lead/reorder", gin.H{"field_name": "website", "direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPatch, "/api/admin/fields/lead/fields/website", gin.H{"field_label": "Web Site"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/admin/fields/lead/move", gin.H{"field_name": "website", "field_section": "social"})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, "/api/admin/fields/lead/save", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body[constants.ResponseEditor].(map[string]interface{})["has_changes"])
	assert.Equal(t, 1, s.registry.saves)

	saved, err := s.registry.LoadFieldConfig(context.Background(), "acme", "lead")
	require.NoError(t, err)
	for _, f := range saved {
		if f.Name == "website" {
			assert.False(t, f.IsEnabled)
			assert.Equal(t, "Web Site", f.Label)
			assert.Equal(t, "social", f.Section)
		}
	}

	code, body = s.do(t, http.MethodGet, "/api/admin/fields/deal", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body[constants.ResponseEditor].(map[string]interface{})["total_count"])

	code, _ = s.do(t, http.MethodGet, "/api/admin/fields/spaceship", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
