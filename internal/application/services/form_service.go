package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/errors"
	"github.com/nexuscrm/formengine/pkg/utils"
)

// DefaultSessionTTL is how long an idle form session survives
const DefaultSessionTTL = 30 * time.Minute

// FormService opens form sessions and keeps them until they are discarded or expire
type FormService struct {
	catalog  *EntityCatalog
	registry ports.RegistryStore
	deps     SessionDeps
	logger   *zap.Logger
	ttl      time.Duration
	now      func() time.Time

	sessions map[string]*FormSession
	mu       sync.RWMutex
}

// NewFormService creates a FormService. A zero ttl uses DefaultSessionTTL.
func NewFormService(catalog *EntityCatalog, registry ports.RegistryStore, deps SessionDeps, ttl time.Duration) *FormService {
	deps = deps.withDefaults()
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &FormService{
		catalog:  catalog,
		registry: registry,
		deps:     deps,
		logger:   deps.Logger,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*FormSession),
	}
}

// Open starts a session for entityType. recordID and seed pre-fill the draft in edit mode.
// A registry failure is returned as-is and no session is kept.
func (fs *FormService) Open(ctx context.Context, tenantID, entityType, recordID string, seed map[string]interface{}) (*FormSession, error) {
	if tenantID == "" {
		return nil, errors.NewUnauthorizedError("tenant scope is required")
	}
	entity, ok := fs.catalog.Get(entityType)
	if !ok {
		return nil, errors.NewNotFoundError("Entity type", entityType)
	}

	session := newFormSession(utils.GenerateID(), tenantID, entity, fs.registry, fs.deps)
	if err := session.open(ctx, recordID, seed); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	fs.sweepLocked()
	fs.sessions[session.ID()] = session
	fs.mu.Unlock()

	fs.logger.Info("form session opened",
		zap.String("session_id", session.ID()),
		zap.String("tenant_id", tenantID),
		zap.String("entity_type", entityType),
		zap.Bool("edit", recordID != ""))
	return session, nil
}

// Get returns an open session owned by tenantID
func (fs *FormService) Get(tenantID, id string) (*FormSession, error) {
	fs.mu.RLock()
	session, ok := fs.sessions[id]
	fs.mu.RUnlock()

	if !ok || session.TenantID() != tenantID {
		return nil, errors.NewNotFoundError("Form", id)
	}
	if fs.now().Sub(session.LastSeen()) > fs.ttl {
		fs.Discard(tenantID, id)
		return nil, errors.NewNotFoundError("Form", id)
	}
	return session, nil
}

// Discard drops a session and its draft (cancel)
func (fs *FormService) Discard(tenantID, id string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	session, ok := fs.sessions[id]
	if !ok || session.TenantID() != tenantID {
		return false
	}
	delete(fs.sessions, id)
	return true
}

// Count returns the number of open sessions
func (fs *FormService) Count() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.sessions)
}

func (fs *FormService) sweepLocked() {
	cutoff := fs.now().Add(-fs.ttl)
	for id, s := range fs.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(fs.sessions, id)
			fs.logger.Debug("expired form session", zap.String("session_id", id))
		}
	}
}
