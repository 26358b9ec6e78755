package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
	"github.com/nexuscrm/formengine/pkg/models"
)

// fieldEntry pairs a definition with its registry insertion sequence, the displayOrder tie-breaker
type fieldEntry struct {
	def models.FieldDefinition
	seq int
}

// FieldConfigModel is the in-memory view of one (tenant, entity type) field registry.
// It is not safe for concurrent use; owners serialize access.
type FieldConfigModel struct {
	store      ports.RegistryStore
	logger     *zap.Logger
	tenantID   string
	entityType string

	entries []fieldEntry
	nextSeq int
	loaded  bool
}

// NewFieldConfigModel creates an unloaded model bound to a tenant and entity type
func NewFieldConfigModel(store ports.RegistryStore, logger *zap.Logger, tenantID, entityType string) *FieldConfigModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldConfigModel{
		store:      store,
		logger:     logger,
		tenantID:   tenantID,
		entityType: entityType,
	}
}

// TenantID returns the tenant scope
func (m *FieldConfigModel) TenantID() string { return m.tenantID }

// EntityType returns the entity type
func (m *FieldConfigModel) EntityType() string { return m.entityType }

// Loaded reports whether a load has succeeded at least once
func (m *FieldConfigModel) Loaded() bool { return m.loaded }

// Load replaces the in-memory view with the registry contents.
// On failure the previous view is kept and a RegistryUnavailableError is returned.
func (m *FieldConfigModel) Load(ctx context.Context) ([]models.FieldDefinition, error) {
	defs, err := m.store.LoadFieldConfig(ctx, m.tenantID, m.entityType)
	if err != nil {
		m.logger.Warn("field registry load failed",
			zap.String("tenant_id", m.tenantID),
			zap.String("entity_type", m.entityType),
			zap.Error(err))
		return nil, errors.NewRegistryUnavailableError(m.tenantID, m.entityType, err)
	}

	m.replace(defs)
	m.loaded = true
	m.logger.Debug("field registry loaded",
		zap.String("tenant_id", m.tenantID),
		zap.String("entity_type", m.entityType),
		zap.Int("fields", len(m.entries)))
	return m.Fields(), nil
}

func (m *FieldConfigModel) replace(defs []models.FieldDefinition) {
	seen := make(map[string]bool, len(defs))
	entries := make([]fieldEntry, 0, len(defs))
	for _, d := range defs {
		if d.Name == "" || seen[d.Name] {
			m.logger.Warn("skipping duplicate or unnamed field",
				zap.String("entity_type", m.entityType),
				zap.String("field", d.Name))
			continue
		}
		seen[d.Name] = true

		def := d.Clone()
		if def.IsMandatory {
			def.IsEnabled = true
		}
		if !def.Type.IsValid() {
			m.logger.Warn("unknown field type, rendering as text",
				zap.String("field", def.Name),
				zap.String("type", string(def.Type)))
			def.Type = constants.FieldTypeText
		}
		entries = append(entries, fieldEntry{def: def, seq: len(entries)})
	}
	m.entries = entries
	m.nextSeq = len(entries)
}

// Fields returns a copy of every definition in insertion-sequence order.
// Stores persist this order so displayOrder ties survive a save.
func (m *FieldConfigModel) Fields() []models.FieldDefinition {
	entries := make([]fieldEntry, len(m.entries))
	copy(entries, m.entries)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]models.FieldDefinition, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.def.Clone())
	}
	return out
}

// Field returns one definition by name
func (m *FieldConfigModel) Field(name string) (models.FieldDefinition, bool) {
	if i := m.indexOf(name); i >= 0 {
		return m.entries[i].def.Clone(), true
	}
	return models.FieldDefinition{}, false
}

// MandatoryFields returns the system-mandatory fields in registry order
func (m *FieldConfigModel) MandatoryFields() []models.FieldDefinition {
	return m.filter(func(d models.FieldDefinition) bool { return d.IsMandatory })
}

// OptionalFields returns the admin-toggleable fields in registry order
func (m *FieldConfigModel) OptionalFields() []models.FieldDefinition {
	return m.filter(func(d models.FieldDefinition) bool { return !d.IsMandatory })
}

// EnabledFieldCount counts active fields. Mandatory fields always count.
func (m *FieldConfigModel) EnabledFieldCount() int {
	n := 0
	for _, e := range m.entries {
		if e.def.Active() {
			n++
		}
	}
	return n
}

// FieldsInSection returns the section's fields ordered by displayOrder, ties by insertion
func (m *FieldConfigModel) FieldsInSection(section string) []models.FieldDefinition {
	entries := m.sectionEntries(section)
	out := make([]models.FieldDefinition, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.def.Clone())
	}
	return out
}

// Sections returns distinct section names in first-appearance order
func (m *FieldConfigModel) Sections() []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range m.entries {
		if !seen[e.def.Section] {
			seen[e.def.Section] = true
			out = append(out, e.def.Section)
		}
	}
	return out
}

// OrderedSections applies the entity's priority list; unlisted sections follow in first-appearance order
func (m *FieldConfigModel) OrderedSections(def *EntityDefinition) []string {
	present := m.Sections()
	out := make([]string, 0, len(present))
	if def != nil {
		has := make(map[string]bool, len(present))
		for _, s := range present {
			has[s] = true
		}
		for _, s := range def.Sections {
			if has[s.Name] {
				out = append(out, s.Name)
			}
		}
	}
	for _, s := range present {
		if def == nil || def.SectionRank(s) < 0 {
			out = append(out, s)
		}
	}
	return out
}

func (m *FieldConfigModel) filter(keep func(models.FieldDefinition) bool) []models.FieldDefinition {
	var out []models.FieldDefinition
	for _, e := range m.entries {
		if keep(e.def) {
			out = append(out, e.def.Clone())
		}
	}
	return out
}

func (m *FieldConfigModel) sectionEntries(section string) []*fieldEntry {
	var out []*fieldEntry
	for i := range m.entries {
		if m.entries[i].def.Section == section {
			out = append(out, &m.entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].def.DisplayOrder != out[j].def.DisplayOrder {
			return out[i].def.DisplayOrder < out[j].def.DisplayOrder
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (m *FieldConfigModel) indexOf(name string) int {
	for i, e := range m.entries {
		if e.def.Name == name {
			return i
		}
	}
	return -1
}
