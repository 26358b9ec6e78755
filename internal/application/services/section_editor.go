package services

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/domain/events"
	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
	"github.com/nexuscrm/formengine/pkg/models"
)

// EditorSection is one section of the admin field configuration view
type EditorSection struct {
	Name         string                   `json:"name"`
	Label        string                   `json:"label"`
	Expanded     bool                     `json:"expanded"`
	EnabledCount int                      `json:"enabled_count"`
	TotalCount   int                      `json:"total_count"`
	Fields       []models.FieldDefinition `json:"fields"`
}

// EditorView is the admin projection of the in-memory configuration, disabled fields included
type EditorView struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	EntityType     string          `json:"entity_type"`
	Sections       []EditorSection `json:"sections"`
	MandatoryCount int             `json:"mandatory_count"`
	OptionalCount  int             `json:"optional_count"`
	EnabledCount   int             `json:"enabled_count"`
	TotalCount     int             `json:"total_count"`
	HasChanges     bool            `json:"has_changes"`
}

// SectionEditor mutates one FieldConfigModel on behalf of an administrator.
// Changes stay in memory until Save; Reset discards them.
type SectionEditor struct {
	id      string
	model   *FieldConfigModel
	entity  *EntityDefinition
	store   ports.RegistryStore
	events  ports.EventPublisher
	metrics ports.MetricsRecorder
	logger  *zap.Logger

	mu        sync.Mutex
	collapsed map[string]bool
	dirty     bool
}

// NewSectionEditor creates an editor over an unloaded model.
// publisher and metrics may be nil interfaces but must not wrap a nil pointer.
func NewSectionEditor(id string, store ports.RegistryStore, entity *EntityDefinition, tenantID string,
	publisher ports.EventPublisher, metrics ports.MetricsRecorder, logger *zap.Logger) *SectionEditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &SectionEditor{
		id:        id,
		model:     NewFieldConfigModel(store, logger, tenantID, entity.Name),
		entity:    entity,
		store:     store,
		events:    publisher,
		metrics:   metrics,
		logger:    logger.With(zap.String("editor_id", id), zap.String("entity_type", entity.Name)),
		collapsed: make(map[string]bool),
	}
}

// ID returns the editor identifier
func (e *SectionEditor) ID() string { return e.id }

// Model exposes the underlying configuration model (read-only use)
func (e *SectionEditor) Model() *FieldConfigModel { return e.model }

// Load fetches the registry into memory and clears the unsaved flag
func (e *SectionEditor) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.model.Load(ctx); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// ToggleEnabled flips isEnabled on an optional field. Mandatory fields are left alone.
// Returns whether anything changed.
func (e *SectionEditor) ToggleEnabled(name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entry(name)
	if err != nil {
		return false, err
	}
	if entry.def.IsMandatory {
		return false, nil
	}
	entry.def.IsEnabled = !entry.def.IsEnabled
	e.dirty = true
	return true, nil
}

// Reorder swaps the field with its neighbour in the given direction within its section.
// The full sort key (displayOrder and insertion sequence) is exchanged so tied fields still move.
// First-up and last-down are no-ops.
func (e *SectionEditor) Reorder(name string, dir constants.Direction) (bool, error) {
	if !dir.IsValid() {
		return false, errors.NewValidationError("direction", "must be 'up' or 'down'")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entry(name)
	if err != nil {
		return false, err
	}

	ordered := e.model.sectionEntries(entry.def.Section)
	pos := -1
	for i, o := range ordered {
		if o == entry {
			pos = i
			break
		}
	}

	target := pos - 1
	if dir == constants.DirectionDown {
		target = pos + 1
	}
	if target < 0 || target >= len(ordered) {
		return false, nil
	}

	neighbor := ordered[target]
	entry.def.DisplayOrder, neighbor.def.DisplayOrder = neighbor.def.DisplayOrder, entry.def.DisplayOrder
	entry.seq, neighbor.seq = neighbor.seq, entry.seq
	e.dirty = true
	return true, nil
}

// MoveToSection appends the field at the end of another section
func (e *SectionEditor) MoveToSection(name, section string) error {
	section = strings.TrimSpace(section)
	if section == "" {
		return errors.NewValidationError("section", "section is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entry(name)
	if err != nil {
		return err
	}
	if entry.def.Section == section {
		return nil
	}

	order := 0
	if existing := e.model.sectionEntries(section); len(existing) > 0 {
		order = existing[len(existing)-1].def.DisplayOrder + 1
	}
	entry.def.Section = section
	entry.def.DisplayOrder = order
	entry.seq = e.model.nextSeq
	e.model.nextSeq++
	e.dirty = true
	return nil
}

// DisplayUpdate carries the editable display metadata. Nil members are left unchanged.
type DisplayUpdate struct {
	Label       *string `json:"field_label,omitempty"`
	Placeholder *string `json:"placeholder,omitempty"`
	HelpText    *string `json:"help_text,omitempty"`
}

// UpdateDisplay edits label, placeholder and help text
func (e *SectionEditor) UpdateDisplay(name string, upd DisplayUpdate) error {
	if upd.Label != nil && strings.TrimSpace(*upd.Label) == "" {
		return errors.NewValidationError("field_label", "label must not be blank")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entry(name)
	if err != nil {
		return err
	}
	if upd.Label != nil {
		entry.def.Label = strings.TrimSpace(*upd.Label)
	}
	if upd.Placeholder != nil {
		entry.def.Placeholder = optionalText(*upd.Placeholder)
	}
	if upd.HelpText != nil {
		entry.def.HelpText = optionalText(*upd.HelpText)
	}
	e.dirty = true
	return nil
}

func optionalText(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return models.StringPtr(s)
}

// ToggleSection flips a section between expanded and collapsed and returns the new expanded state.
// Presentation only: it never marks the configuration dirty.
func (e *SectionEditor) ToggleSection(section string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.collapsed[section] = !e.collapsed[section]
	return !e.collapsed[section]
}

// ExpandAll expands every section
func (e *SectionEditor) ExpandAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collapsed = make(map[string]bool)
}

// CollapseAll collapses every section currently present
func (e *SectionEditor) CollapseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.model.Sections() {
		e.collapsed[s] = true
	}
}

// HasChanges reports unsaved edits
func (e *SectionEditor) HasChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Save submits the whole field list as one batch and reloads on success.
// On failure nothing is reloaded and the unsaved flag stays set.
func (e *SectionEditor) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fields := e.model.Fields()
	if err := e.store.SaveFieldConfig(ctx, e.model.TenantID(), e.entity.Name, fields); err != nil {
		e.metrics.RegistrySaveCompleted(ports.ResultError)
		e.logger.Error("field registry save failed", zap.Error(err))
		return errors.NewSaveError(errors.SaveScopeRegistry, err)
	}
	e.metrics.RegistrySaveCompleted(ports.ResultOK)
	e.dirty = false
	e.logger.Info("field registry saved", zap.Int("fields", len(fields)))

	if e.events != nil {
		payload := FieldConfigSavedPayload{
			TenantID:   e.model.TenantID(),
			EntityType: e.entity.Name,
			FieldCount: len(fields),
		}
		if err := e.events.Publish(ctx, events.FieldConfigSaved, payload); err != nil {
			e.logger.Warn("field config saved handler failed", zap.Error(err))
		}
	}

	if _, err := e.model.Load(ctx); err != nil {
		return err
	}
	return nil
}

// Reset discards in-memory edits by reloading from the store.
// If the store is unreachable the current state is kept.
func (e *SectionEditor) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.model.Load(ctx); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// View projects the configuration for the admin screen. A non-empty sectionFilter limits the sections listed.
func (e *SectionEditor) View(sectionFilter string) EditorView {
	e.mu.Lock()
	defer e.mu.Unlock()

	view := EditorView{
		ID:         e.id,
		TenantID:   e.model.TenantID(),
		EntityType: e.entity.Name,
		HasChanges: e.dirty,
	}

	for _, name := range e.model.OrderedSections(e.entity) {
		section := EditorSection{
			Name:     name,
			Label:    e.entity.SectionLabel(name),
			Expanded: !e.collapsed[name],
		}
		for _, f := range e.model.FieldsInSection(name) {
			if e.entity.IsSystemField(f.Name) {
				continue
			}
			section.TotalCount++
			if f.Active() {
				section.EnabledCount++
			}
			if f.IsMandatory {
				view.MandatoryCount++
			} else {
				view.OptionalCount++
			}
			section.Fields = append(section.Fields, f)
		}
		view.TotalCount += section.TotalCount
		view.EnabledCount += section.EnabledCount

		if sectionFilter != "" && sectionFilter != name {
			continue
		}
		view.Sections = append(view.Sections, section)
	}
	return view
}

func (e *SectionEditor) entry(name string) (*fieldEntry, error) {
	i := e.model.indexOf(name)
	if i < 0 {
		return nil, errors.NewNotFoundError("Field", name)
	}
	return &e.model.entries[i], nil
}
