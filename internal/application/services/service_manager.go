package services

import (
	"time"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/expression"
)

// Stores groups the external collaborators the engine is wired to
type Stores struct {
	Registry ports.RegistryStore
	Lookups  ports.LookupSource
	Records  ports.RecordStore
}

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	Catalog     *EntityCatalog
	EventBus    *EventBus
	Rules       *RuleEvaluator
	FieldConfig *FieldConfigService
	Forms       *FormService
}

// NewServiceManager wires the services over the given stores.
// It fails if a built-in composite rule does not compile.
func NewServiceManager(stores Stores, metrics ports.MetricsRecorder, logger *zap.Logger, sessionTTL time.Duration) (*ServiceManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	sm := &ServiceManager{
		Catalog:  DefaultEntityCatalog(),
		EventBus: NewEventBus(),
	}
	sm.Rules = NewRuleEvaluator(expression.NewEngine(), logger)
	if err := sm.Rules.Check(sm.Catalog); err != nil {
		return nil, err
	}

	sm.FieldConfig = NewFieldConfigService(sm.Catalog, stores.Registry, sm.EventBus, metrics, logger)
	sm.Forms = NewFormService(sm.Catalog, stores.Registry, SessionDeps{
		Lookups: stores.Lookups,
		Records: stores.Records,
		Events:  sm.EventBus,
		Rules:   sm.Rules,
		Metrics: metrics,
		Logger:  logger,
	}, sessionTTL)

	return sm, nil
}
