package events

// EventType defines the type of event raised by the form engine
type EventType string

const (
	// Form session events
	EntitySelected  EventType = "form.entity_selected"
	FieldChanged    EventType = "form.field_changed"
	RecordSubmitted EventType = "form.record_submitted"

	// Registry events
	FieldConfigSaved EventType = "registry.field_config_saved"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}
