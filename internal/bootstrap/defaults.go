package bootstrap

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/pkg/models"
)

//go:embed default_fields.json
var defaultFieldsJSON []byte

// FieldSeeder inserts a field catalogue for a (tenant, entity type) pair that has none yet
type FieldSeeder interface {
	SeedFieldConfig(ctx context.Context, tenantID, entityType string, fields []models.FieldDefinition) (bool, error)
}

// DefaultFields returns the built-in field catalogue of every entity type
func DefaultFields() (map[string][]models.FieldDefinition, error) {
	var defaults map[string][]models.FieldDefinition
	if err := json.Unmarshal(defaultFieldsJSON, &defaults); err != nil {
		return nil, fmt.Errorf("parse default field catalogue: %w", err)
	}
	return defaults, nil
}

// SeedDefaults gives each tenant the built-in catalogue for every entity type in entityTypes.
// Pairs that already have rows are left untouched. Failures are logged and the first is returned
// after all pairs were attempted.
func SeedDefaults(ctx context.Context, seeder FieldSeeder, tenants, entityTypes []string, logger *zap.Logger) error {
	defaults, err := DefaultFields()
	if err != nil {
		return err
	}

	var firstErr error
	for _, tenantID := range tenants {
		for _, entityType := range entityTypes {
			fields, ok := defaults[entityType]
			if !ok {
				continue
			}
			seeded, err := seeder.SeedFieldConfig(ctx, tenantID, entityType, fields)
			if err != nil {
				logger.Warn("Failed to seed field catalogue",
					zap.String("tenant_id", tenantID),
					zap.String("entity_type", entityType),
					zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if seeded {
				logger.Info("Seeded default field catalogue",
					zap.String("tenant_id", tenantID),
					zap.String("entity_type", entityType),
					zap.Int("fields", len(fields)))
			}
		}
	}
	return firstErr
}
