package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/domain/events"
	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
	"github.com/nexuscrm/formengine/pkg/models"
)

// SessionDeps are the collaborators shared by every form session.
// Unset interfaces get no-op defaults; a nil pointer wrapped in an interface does not.
type SessionDeps struct {
	Lookups ports.LookupSource
	Records ports.RecordStore
	Events  ports.EventPublisher
	Rules   *RuleEvaluator
	Metrics ports.MetricsRecorder
	Logger  *zap.Logger
}

func (d SessionDeps) withDefaults() SessionDeps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = ports.NopMetrics{}
	}
	if d.Rules == nil {
		d.Rules = NewRuleEvaluator(nil, d.Logger)
	}
	return d
}

// SectionView is one assembled section of an open form
type SectionView struct {
	Name      string         `json:"name"`
	Label     string         `json:"label"`
	Controls  []Control      `json:"controls,omitempty"`
	LineItems *LineItemsView `json:"line_items,omitempty"`
}

// Progress is the share of rendered fields holding a non-blank value
type Progress struct {
	Filled  int `json:"filled"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// FormView is the full projection of a form session
type FormView struct {
	ID         string              `json:"id"`
	EntityType string              `json:"entity_type"`
	Phase      constants.FormPhase `json:"phase"`
	RecordID   string              `json:"record_id,omitempty"`
	Sections   []SectionView       `json:"sections"`
	Errors     map[string]string   `json:"errors"`
	Progress   Progress            `json:"progress"`
}

// ReviewEntry is one filled field in the read-only review
type ReviewEntry struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReviewSection lists the filled fields of one section
type ReviewSection struct {
	Name    string        `json:"name"`
	Label   string        `json:"label"`
	Entries []ReviewEntry `json:"entries"`
}

// ReviewView is the read-only presentation shown between validate and submit
type ReviewView struct {
	ID         string                `json:"id"`
	EntityType string                `json:"entity_type"`
	Sections   []ReviewSection       `json:"sections"`
	LineItems  []models.LineItemView `json:"line_items,omitempty"`
	GrandTotal float64               `json:"grand_total,omitempty"`
}

// FormSession owns one record draft for one create or edit operation.
// Lookups run outside the session lock; results are applied only if the dependency value that
// triggered them is still current.
type FormSession struct {
	id       string
	tenantID string
	entity   *EntityDefinition
	model    *FieldConfigModel
	deps     SessionDeps
	logger   *zap.Logger

	mu           sync.Mutex
	phase        constants.FormPhase
	recordID     string
	draft        map[string]interface{}
	displayNames map[string]string
	errors       map[string]string
	selectors    map[string]*selectorState
	products     *selectorState
	lineItems    *LineItemList
	lastSeen     time.Time
	// submitting is set while a record write runs outside the lock
	submitting bool
}

func newFormSession(id, tenantID string, entity *EntityDefinition, store ports.RegistryStore, deps SessionDeps) *FormSession {
	deps = deps.withDefaults()
	logger := deps.Logger.With(zap.String("session_id", id), zap.String("entity_type", entity.Name))
	return &FormSession{
		id:           id,
		tenantID:     tenantID,
		entity:       entity,
		model:        NewFieldConfigModel(store, logger, tenantID, entity.Name),
		deps:         deps,
		logger:       logger,
		phase:        constants.PhaseEditing,
		draft:        make(map[string]interface{}),
		displayNames: make(map[string]string),
		errors:       make(map[string]string),
		selectors:    make(map[string]*selectorState),
		lineItems:    NewLineItemList(nil),
		lastSeen:     time.Now(),
	}
}

// ID returns the session identifier
func (s *FormSession) ID() string { return s.id }

// TenantID returns the tenant scope
func (s *FormSession) TenantID() string { return s.tenantID }

// EntityType returns the entity type
func (s *FormSession) EntityType() string { return s.entity.Name }

// LastSeen returns the time of the last interaction
func (s *FormSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// open loads the registry, seeds the draft from an existing record and resolves every selector
func (s *FormSession) open(ctx context.Context, recordID string, seed map[string]interface{}) error {
	if _, err := s.model.Load(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.recordID = recordID
	for _, f := range s.assembledFieldsLocked() {
		if f.Type != constants.FieldTypeSelectDependent {
			continue
		}
		spec, ok := s.entity.Dependencies[f.Name]
		if !ok {
			s.logger.Warn("select_dependent field has no dependency entry", zap.String("field", f.Name))
			continue
		}
		s.selectors[f.Name] = newSelectorState(spec)
	}
	if s.entity.HasLineItems() {
		s.products = newSelectorState(DependencySpec{
			Field:      s.entity.LineItems.Key,
			LookupType: s.entity.LineItems.LookupType,
			DisplayOf:  DisplayChain("Product", Attr(constants.AttrProductName), Attr(constants.AttrName)),
		})
	}
	s.seedLocked(seed)
	order := s.selectorOrderLocked()
	s.mu.Unlock()

	for _, field := range order {
		// Failures are recorded on the selector and surface in the view
		_ = s.refreshSelector(ctx, field, false)
	}
	if s.products != nil {
		_, _ = s.fetchCandidates(ctx, s.entity.LineItems.Key, s.products, "")
	}
	return nil
}

func (s *FormSession) seedLocked(seed map[string]interface{}) {
	if len(seed) == 0 {
		return
	}
	for _, f := range s.assembledFieldsLocked() {
		if v, ok := seed[f.Name]; ok && v != nil {
			if str, isStr := v.(string); isStr {
				v = strings.TrimSpace(str)
			}
			s.draft[f.Name] = v
		}
	}
	if s.entity.HasLineItems() {
		if raw, ok := seed[constants.PayloadSelectedProducts]; ok {
			var items []models.SelectedLineItem
			data, err := json.Marshal(raw)
			if err == nil {
				err = json.Unmarshal(data, &items)
			}
			if err != nil {
				s.logger.Warn("ignoring malformed seeded line items", zap.Error(err))
			} else {
				s.lineItems = NewLineItemList(items)
			}
		}
	}
}

// selectorOrderLocked lists selectors so every dependency precedes its dependents
func (s *FormSession) selectorOrderLocked() []string {
	depth := func(name string) int {
		d := 0
		for cur := s.selectors[name]; cur != nil && cur.spec.Dependent(); cur = s.selectors[cur.spec.DependsOn] {
			d++
			if d > len(s.selectors) {
				break
			}
		}
		return d
	}
	names := make([]string, 0, len(s.selectors))
	for n := range s.selectors {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		di, dj := depth(names[i]), depth(names[j])
		if di != dj {
			return di < dj
		}
		return names[i] < names[j]
	})
	return names
}

// fetchCandidates runs one lookup for st outside the lock and applies it if still current.
// Returns whether the result was applied. A fetch whose scope is no longer current is skipped.
func (s *FormSession) fetchCandidates(ctx context.Context, name string, st *selectorState, scope string) (bool, error) {
	s.mu.Lock()
	if s.scopeLocked(st) != scope {
		s.mu.Unlock()
		s.logger.Debug("skipping lookup for superseded scope",
			zap.String("field", name),
			zap.String("scope", scope))
		return false, nil
	}
	st.begin(scope)
	s.mu.Unlock()

	entities, err := s.deps.Lookups.FetchEntities(ctx, s.tenantID, st.spec.LookupType, st.spec.Filter(scope))

	s.mu.Lock()
	defer s.mu.Unlock()

	if !st.isCurrent(scope, s.scopeLocked(st)) {
		s.deps.Metrics.StaleResponseDiscarded()
		s.logger.Debug("discarding stale lookup response",
			zap.String("field", name),
			zap.String("scope", scope))
		return false, nil
	}
	if err != nil {
		st.fail(err)
		s.deps.Metrics.LookupCompleted(st.spec.LookupType, ports.ResultError)
		s.logger.Warn("candidate lookup failed", zap.String("field", name), zap.Error(err))
		return false, errors.NewLookupError(name, err)
	}
	st.apply(scope, entities)
	s.deps.Metrics.LookupCompleted(st.spec.LookupType, ports.ResultOK)
	return true, nil
}

// refreshSelector re-resolves one selector against its dependency's current value.
// With cascade set, selectors depending on it are refreshed when its stored value changes.
func (s *FormSession) refreshSelector(ctx context.Context, field string, cascade bool) error {
	s.mu.Lock()
	st, ok := s.selectors[field]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	scope := s.scopeLocked(st)
	if st.spec.Dependent() && scope == "" {
		st.reset()
		changed := s.clearValueLocked(field)
		s.mu.Unlock()
		if cascade && changed {
			return s.refreshChildren(ctx, field)
		}
		return nil
	}
	s.mu.Unlock()

	applied, err := s.fetchCandidates(ctx, field, st, scope)
	if err != nil || !applied {
		return err
	}

	s.mu.Lock()
	changed := s.reconcileLocked(field, st)
	s.mu.Unlock()
	if cascade && changed {
		return s.refreshChildren(ctx, field)
	}
	return nil
}

func (s *FormSession) refreshChildren(ctx context.Context, field string) error {
	var firstErr error
	for _, child := range s.entity.Dependencies.Children(field) {
		if err := s.refreshSelector(ctx, child.Field, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// reconcileLocked keeps the stored value consistent with fresh candidates: a seeded display
// name becomes its identifier and a value no longer offered is cleared. Returns whether it changed.
func (s *FormSession) reconcileLocked(field string, st *selectorState) bool {
	v := s.draftStringLocked(field)
	if v == "" {
		return false
	}
	if e, ok := st.byID(v); ok {
		s.displayNames[field] = st.spec.DisplayOf(e)
		return false
	}
	if e, ok := st.resolve(v); ok {
		s.draft[field] = e.ID()
		s.displayNames[field] = st.spec.DisplayOf(e)
		return true
	}
	s.logger.Debug("clearing selection no longer offered", zap.String("field", field), zap.String("value", v))
	return s.clearValueLocked(field)
}

func (s *FormSession) clearValueLocked(field string) bool {
	had := s.draftStringLocked(field) != ""
	delete(s.draft, field)
	delete(s.displayNames, field)
	return had
}

func (s *FormSession) scopeLocked(st *selectorState) string {
	if !st.spec.Dependent() {
		return ""
	}
	return s.draftStringLocked(st.spec.DependsOn)
}

func (s *FormSession) draftStringLocked(field string) string {
	v, ok := s.draft[field]
	if !ok || v == nil {
		return ""
	}
	if str, isStr := v.(string); isStr {
		return strings.TrimSpace(str)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// SetValue writes one field of the draft (onFieldChange). Lookup-backed fields resolve the input
// to an identifier, auto-populate siblings and refresh the selectors that depend on them.
func (s *FormSession) SetValue(ctx context.Context, field string, raw interface{}) error {
	s.mu.Lock()
	s.lastSeen = time.Now()
	if s.phase != constants.PhaseEditing {
		s.mu.Unlock()
		return errors.NewConflictError("Form", fmt.Sprintf("cannot edit a form in %s phase", s.phase))
	}
	def, ok := s.renderableLocked(field)
	if !ok {
		s.mu.Unlock()
		return errors.NewNotFoundError("Field", field)
	}

	previous := s.draftStringLocked(field)
	var selected *EntitySelectedPayload

	if st, isSelector := s.selectors[field]; isSelector {
		input := strings.TrimSpace(toText(raw))
		if input == "" {
			s.clearValueLocked(field)
		} else {
			if st.lookupErr != nil {
				s.mu.Unlock()
				return errors.NewLookupError(field, st.lookupErr)
			}
			if st.loading || (st.spec.Dependent() && s.scopeLocked(st) == "") {
				s.mu.Unlock()
				return errors.NewConflictError("Field "+field, "not available for selection yet")
			}
			entity, found := st.resolve(input)
			if !found {
				s.mu.Unlock()
				return errors.NewValidationError(field, fmt.Sprintf("%q is not a valid selection", input))
			}
			s.draft[field] = entity.ID()
			s.displayNames[field] = st.spec.DisplayOf(entity)

			populated := populate(st.spec.AutoPopulate, entity, func(target string) bool {
				_, ok := s.renderableLocked(target)
				return ok && target != field
			})
			names := make([]string, 0, len(populated))
			for target, v := range populated {
				s.draft[target] = v
				delete(s.errors, target)
				names = append(names, target)
			}
			sort.Strings(names)
			selected = &EntitySelectedPayload{SessionID: s.id, Field: field, Entity: entity, Populated: names}
		}
	} else {
		v, err := rendererFor(def.Type).accept(def, raw)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.draft[field] = v
	}
	delete(s.errors, field)
	value := s.draft[field]
	current := s.draftStringLocked(field)
	s.mu.Unlock()

	s.publish(ctx, events.FieldChanged, FieldChangedPayload{SessionID: s.id, Field: field, Value: value})
	if selected != nil {
		s.publish(ctx, events.EntitySelected, *selected)
	}

	if current != previous {
		if err := s.refreshChildren(ctx, field); err != nil {
			s.logger.Warn("dependent refresh failed", zap.String("field", field), zap.Error(err))
		}
	}
	return nil
}

func toText(raw interface{}) string {
	if raw == nil {
		return ""
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprint(raw)
}

// RetryLookup refetches a selector's candidates, e.g. after a lookup failure
func (s *FormSession) RetryLookup(ctx context.Context, field string) error {
	s.touch()
	if s.products != nil && field == s.entity.LineItems.Key {
		_, err := s.fetchCandidates(ctx, field, s.products, "")
		return err
	}
	s.mu.Lock()
	_, ok := s.selectors[field]
	s.mu.Unlock()
	if !ok {
		return errors.NewNotFoundError("Selector", field)
	}
	return s.refreshSelector(ctx, field, true)
}

// OnEntitySelected registers cb for selections made in this session. Returns an unsubscribe func.
func (s *FormSession) OnEntitySelected(cb func(EntitySelectedPayload)) func() {
	if s.deps.Events == nil {
		return func() {}
	}
	return s.deps.Events.Subscribe(events.EntitySelected, func(_ context.Context, payload interface{}) error {
		if p, ok := payload.(EntitySelectedPayload); ok && p.SessionID == s.id {
			cb(p)
		}
		return nil
	})
}

// ToggleProduct adds or removes a candidate product from the line items
func (s *FormSession) ToggleProduct(productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	if err := s.lineItemsEditableLocked(); err != nil {
		return false, err
	}
	if s.products.lookupErr != nil {
		return false, errors.NewLookupError(s.entity.LineItems.Key, s.products.lookupErr)
	}
	product, ok := s.products.byID(productID)
	if !ok {
		if !s.lineItems.Contains(productID) {
			return false, errors.NewNotFoundError("Product", productID)
		}
		// a seeded item whose product is no longer offered can still be removed
		product = models.Entity{constants.AttrID: productID}
	}
	added := s.lineItems.Toggle(product, s.products.spec.DisplayOf(product))
	delete(s.errors, s.entity.LineItems.Key)
	return added, nil
}

// UpdateLineItem edits quantity, unit price or notes of a selected product
func (s *FormSession) UpdateLineItem(productID string, upd LineItemUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	if err := s.lineItemsEditableLocked(); err != nil {
		return err
	}
	return s.lineItems.Update(productID, upd)
}

func (s *FormSession) lineItemsEditableLocked() error {
	if !s.entity.HasLineItems() {
		return errors.NewNotFoundError("Line items", s.entity.Name)
	}
	if s.phase != constants.PhaseEditing {
		return errors.NewConflictError("Form", fmt.Sprintf("cannot edit a form in %s phase", s.phase))
	}
	return nil
}

// Validate checks mandatory fields and composite requirements and records the errors on the session.
// Returns a *errors.ValidationErrors naming the first offending field, or nil.
func (s *FormSession) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return s.validateLocked()
}

func (s *FormSession) validateLocked() error {
	found := make(map[string]string)
	var order []string
	add := func(key, msg string) {
		if _, dup := found[key]; dup {
			return
		}
		found[key] = msg
		order = append(order, key)
	}

	for _, f := range s.assembledFieldsLocked() {
		if f.IsMandatory && s.draftStringLocked(f.Name) == "" {
			add(f.Name, fmt.Sprintf("%s is required", f.Label))
		}
	}
	if s.entity.HasLineItems() {
		if msg := s.lineItems.Problem(s.entity.LineItems.Mandatory); msg != "" {
			add(s.entity.LineItems.Key, msg)
		}
	}
	if len(s.entity.Rules) > 0 {
		for _, v := range s.deps.Rules.Evaluate(s.entity.Rules, s.ruleEnvLocked()) {
			add(v.Key, v.Message)
		}
	}

	s.errors = found
	if len(order) == 0 {
		return nil
	}
	copied := make(map[string]string, len(found))
	for k, v := range found {
		copied[k] = v
	}
	return errors.NewValidationErrors(copied, order[0])
}

func (s *FormSession) ruleEnvLocked() map[string]interface{} {
	env := make(map[string]interface{}, len(s.draft)+1)
	for k, v := range s.draft {
		env[k] = v
	}
	if s.entity.HasLineItems() {
		env[s.entity.LineItems.Key] = s.lineItems.Items()
	}
	return env
}

// Review validates and, on success, enters the read-only review phase
func (s *FormSession) Review() (ReviewView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	if s.phase == constants.PhaseSubmitted {
		return ReviewView{}, errors.NewConflictError("Form", "already submitted")
	}
	if err := s.validateLocked(); err != nil {
		return ReviewView{}, err
	}
	s.phase = constants.PhaseReview
	return s.reviewLocked(), nil
}

// Edit returns from review to editing
func (s *FormSession) Edit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	if s.phase == constants.PhaseSubmitted {
		return errors.NewConflictError("Form", "already submitted")
	}
	if s.submitting {
		return errors.NewConflictError("Form", "submission in progress")
	}
	s.phase = constants.PhaseEditing
	return nil
}

func (s *FormSession) reviewLocked() ReviewView {
	view := ReviewView{ID: s.id, EntityType: s.entity.Name}
	for _, section := range s.model.OrderedSections(s.entity) {
		rs := ReviewSection{Name: section, Label: s.entity.SectionLabel(section)}
		for _, f := range s.sectionFieldsLocked(section) {
			value := s.draftStringLocked(f.Name)
			if value == "" {
				continue
			}
			if name, ok := s.displayNames[f.Name]; ok && name != "" {
				value = name
			}
			rs.Entries = append(rs.Entries, ReviewEntry{Name: f.Name, Label: f.Label, Value: value})
		}
		if len(rs.Entries) > 0 {
			view.Sections = append(view.Sections, rs)
		}
	}
	if s.entity.HasLineItems() {
		view.LineItems = s.lineItems.Views()
		view.GrandTotal = s.lineItems.GrandTotal()
	}
	return view
}

// Submit persists the draft. Only allowed from the review phase.
// A failed write keeps the draft and phase unchanged so the caller can retry.
// The record write runs outside the lock; Edit and Submit are refused until it completes.
func (s *FormSession) Submit(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.lastSeen = time.Now()

	if s.submitting {
		s.mu.Unlock()
		return "", errors.NewConflictError("Form", "submission already in progress")
	}
	if s.phase != constants.PhaseReview {
		s.mu.Unlock()
		return "", errors.NewConflictError("Form", "must be reviewed before submission")
	}
	if err := s.validateLocked(); err != nil {
		s.phase = constants.PhaseEditing
		s.mu.Unlock()
		s.deps.Metrics.SubmissionCompleted(s.entity.Name, ports.ResultInvalid)
		return "", err
	}

	payload := s.payloadLocked()
	recordID := s.recordID
	s.submitting = true
	s.mu.Unlock()

	var err error
	if recordID != "" {
		err = s.deps.Records.UpdateRecord(ctx, s.tenantID, s.entity.Name, recordID, payload)
	} else {
		recordID, err = s.deps.Records.CreateRecord(ctx, s.tenantID, s.entity.Name, payload)
	}

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		s.deps.Metrics.SubmissionCompleted(s.entity.Name, ports.ResultError)
		s.logger.Error("record submission failed", zap.Error(err))
		return "", errors.NewSaveError(errors.SaveScopeRecord, err)
	}
	s.recordID = recordID
	s.phase = constants.PhaseSubmitted
	s.mu.Unlock()

	s.deps.Metrics.SubmissionCompleted(s.entity.Name, ports.ResultOK)
	s.logger.Info("record submitted", zap.String("record_id", recordID))
	s.publish(ctx, events.RecordSubmitted, RecordSubmittedPayload{
		SessionID:  s.id,
		TenantID:   s.tenantID,
		EntityType: s.entity.Name,
		RecordID:   recordID,
	})
	return recordID, nil
}

// SaveAndNew submits and then starts an empty draft in the same session
func (s *FormSession) SaveAndNew(ctx context.Context) (string, error) {
	recordID, err := s.Submit(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.phase = constants.PhaseEditing
	s.recordID = ""
	s.draft = make(map[string]interface{})
	s.displayNames = make(map[string]string)
	s.errors = make(map[string]string)
	s.lineItems.Clear()
	for _, st := range s.selectors {
		if st.spec.Dependent() {
			st.reset()
		}
	}
	s.mu.Unlock()
	return recordID, nil
}

// Payload flattens the draft for persistence
func (s *FormSession) Payload() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloadLocked()
}

func (s *FormSession) payloadLocked() map[string]interface{} {
	payload := make(map[string]interface{})
	for _, f := range s.assembledFieldsLocked() {
		v, ok := s.draft[f.Name]
		if !ok || v == nil {
			continue
		}
		payload[f.Name] = v
		if _, isSelector := s.selectors[f.Name]; isSelector {
			if name := s.displayNames[f.Name]; name != "" {
				payload[f.Name+constants.PayloadDisplaySuffix] = name
			}
		}
	}
	if s.entity.HasLineItems() {
		payload[constants.PayloadSelectedProducts] = s.lineItems.Items()
	}
	payload[constants.PayloadCompanyID] = s.tenantID
	if s.recordID != "" {
		payload[constants.PayloadRecordID] = s.recordID
	}
	return payload
}

// Draft returns a copy of the current draft values (getDraft)
func (s *FormSession) Draft() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.draft))
	for k, v := range s.draft {
		out[k] = v
	}
	return out
}

// Errors returns a copy of the current validation errors
func (s *FormSession) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorsCopyLocked()
}

func (s *FormSession) errorsCopyLocked() map[string]string {
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// Phase returns the current lifecycle phase
func (s *FormSession) Phase() constants.FormPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Progress reports how many rendered fields are filled
func (s *FormSession) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *FormSession) progressLocked() Progress {
	var p Progress
	for _, f := range s.assembledFieldsLocked() {
		p.Total++
		if s.draftStringLocked(f.Name) != "" {
			p.Filled++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Filled) * 100 / float64(p.Total)))
	}
	return p
}

// View renders every section in assembled order, line items last
func (s *FormSession) View() FormView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	view := FormView{
		ID:         s.id,
		EntityType: s.entity.Name,
		Phase:      s.phase,
		RecordID:   s.recordID,
		Errors:     s.errorsCopyLocked(),
		Progress:   s.progressLocked(),
	}
	for _, section := range s.model.OrderedSections(s.entity) {
		if sv, ok := s.renderSectionLocked(section); ok {
			view.Sections = append(view.Sections, sv)
		}
	}
	if s.entity.HasLineItems() {
		view.Sections = append(view.Sections, s.lineItemSectionLocked())
	}
	return view
}

// RenderSection renders one section by name; the line-item key renders the product sub-form
func (s *FormSession) RenderSection(section string) (SectionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	if s.entity.HasLineItems() && section == s.entity.LineItems.Key {
		return s.lineItemSectionLocked(), nil
	}
	sv, ok := s.renderSectionLocked(section)
	if !ok {
		return SectionView{}, errors.NewNotFoundError("Section", section)
	}
	return sv, nil
}

func (s *FormSession) renderSectionLocked(section string) (SectionView, bool) {
	fields := s.sectionFieldsLocked(section)
	if len(fields) == 0 {
		return SectionView{}, false
	}
	sv := SectionView{Name: section, Label: s.entity.SectionLabel(section)}
	for _, f := range fields {
		in := renderInput{value: s.draft[f.Name], err: s.errors[f.Name]}
		if st, ok := s.selectors[f.Name]; ok {
			in.selector = st
			in.dependencyValue = s.scopeLocked(st)
		}
		c := renderField(f, in)
		if s.phase != constants.PhaseEditing {
			c.Disabled = true
		}
		sv.Controls = append(sv.Controls, c)
	}
	return sv, true
}

func (s *FormSession) lineItemSectionLocked() SectionView {
	spec := s.entity.LineItems
	li := &LineItemsView{
		Key:        spec.Key,
		Label:      spec.Label,
		Required:   spec.Mandatory,
		Items:      s.lineItems.Views(),
		GrandTotal: s.lineItems.GrandTotal(),
		Error:      s.errors[spec.Key],
	}
	if s.products != nil {
		li.Candidates = s.products.options()
		li.Loading = s.products.loading
		if s.products.lookupErr != nil {
			li.LookupError = s.products.lookupErr.Error()
		}
	}
	return SectionView{Name: spec.Key, Label: spec.Label, LineItems: li}
}

// assembledFieldsLocked lists rendered fields: active, non-system, sections in priority order
func (s *FormSession) assembledFieldsLocked() []models.FieldDefinition {
	var out []models.FieldDefinition
	for _, section := range s.model.OrderedSections(s.entity) {
		out = append(out, s.sectionFieldsLocked(section)...)
	}
	return out
}

func (s *FormSession) sectionFieldsLocked(section string) []models.FieldDefinition {
	var out []models.FieldDefinition
	for _, f := range s.model.FieldsInSection(section) {
		if f.Active() && !s.entity.IsSystemField(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

func (s *FormSession) renderableLocked(name string) (models.FieldDefinition, bool) {
	f, ok := s.model.Field(name)
	if !ok || !f.Active() || s.entity.IsSystemField(name) {
		return models.FieldDefinition{}, false
	}
	return f, true
}

func (s *FormSession) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *FormSession) publish(ctx context.Context, eventType events.EventType, payload interface{}) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", eventType.String()), zap.Error(err))
	}
}
