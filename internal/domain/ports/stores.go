package ports

import (
	"context"

	"github.com/nexuscrm/formengine/pkg/models"
)

// RegistryStore reads and writes the per-tenant, per-entity field registry.
// A load failure must be returned as an error, never as an empty slice.
type RegistryStore interface {
	LoadFieldConfig(ctx context.Context, tenantID, entityType string) ([]models.FieldDefinition, error)

	// SaveFieldConfig persists the whole field list as one batch (last writer wins).
	SaveFieldConfig(ctx context.Context, tenantID, entityType string, fields []models.FieldDefinition) error
}

// LookupSource fetches candidate related entities, scoped by tenant and an optional filter
type LookupSource interface {
	FetchEntities(ctx context.Context, tenantID, lookupType string, filter map[string]string) ([]models.Entity, error)
}

// RecordStore persists a flattened record payload
type RecordStore interface {
	CreateRecord(ctx context.Context, tenantID, entityType string, payload map[string]interface{}) (string, error)
	UpdateRecord(ctx context.Context, tenantID, entityType, recordID string, payload map[string]interface{}) error
}
