package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/errors"
	"github.com/nexuscrm/formengine/pkg/utils"
)

// FieldConfigService hands out one SectionEditor per (tenant, entity type)
type FieldConfigService struct {
	catalog  *EntityCatalog
	registry ports.RegistryStore
	events   ports.EventPublisher
	metrics  ports.MetricsRecorder
	logger   *zap.Logger

	editors map[string]*SectionEditor
	mu      sync.Mutex
}

// NewFieldConfigService creates a FieldConfigService
func NewFieldConfigService(catalog *EntityCatalog, registry ports.RegistryStore, publisher ports.EventPublisher,
	metrics ports.MetricsRecorder, logger *zap.Logger) *FieldConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldConfigService{
		catalog:  catalog,
		registry: registry,
		events:   publisher,
		metrics:  metrics,
		logger:   logger,
		editors:  make(map[string]*SectionEditor),
	}
}

// Editor returns the tenant's editor for entityType, loading it on first use.
// An editor whose first load fails is not kept, so the next call retries.
func (s *FieldConfigService) Editor(ctx context.Context, tenantID, entityType string) (*SectionEditor, error) {
	if tenantID == "" {
		return nil, errors.NewUnauthorizedError("tenant scope is required")
	}
	entity, ok := s.catalog.Get(entityType)
	if !ok {
		return nil, errors.NewNotFoundError("Entity type", entityType)
	}

	key := tenantID + "/" + entityType
	s.mu.Lock()
	if ed, ok := s.editors[key]; ok {
		s.mu.Unlock()
		return ed, nil
	}
	s.mu.Unlock()

	ed := NewSectionEditor(utils.GenerateID(), s.registry, entity, tenantID, s.events, s.metrics, s.logger)
	if err := ed.Load(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.editors[key]; ok {
		return existing, nil
	}
	s.editors[key] = ed
	return ed, nil
}
