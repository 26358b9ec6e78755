package constants

// FieldType is the closed set of input kinds a configured field can take
type FieldType string

const (
	FieldTypeText            FieldType = "text"
	FieldTypeEmail           FieldType = "email"
	FieldTypeTel             FieldType = "tel"
	FieldTypeURL             FieldType = "url"
	FieldTypeNumber          FieldType = "number"
	FieldTypeTextArea        FieldType = "textarea"
	FieldTypeDate            FieldType = "date"
	FieldTypeSelect          FieldType = "select"
	FieldTypeSelectDependent FieldType = "select_dependent"
)

// AllFieldTypes returns every valid field type in declaration order
func AllFieldTypes() []FieldType {
	return []FieldType{
		FieldTypeText,
		FieldTypeEmail,
		FieldTypeTel,
		FieldTypeURL,
		FieldTypeNumber,
		FieldTypeTextArea,
		FieldTypeDate,
		FieldTypeSelect,
		FieldTypeSelectDependent,
	}
}

// IsValid reports whether t is one of the known field types
func (t FieldType) IsValid() bool {
	for _, known := range AllFieldTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Direction is the reorder direction within a section
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// IsValid reports whether d is up or down
func (d Direction) IsValid() bool {
	return d == DirectionUp || d == DirectionDown
}

// FormPhase is the lifecycle step of an open form session
type FormPhase string

const (
	PhaseEditing   FormPhase = "editing"
	PhaseReview    FormPhase = "review"
	PhaseSubmitted FormPhase = "submitted"
)

// RegistryBackend selects the Field Registry Store implementation
type RegistryBackend string

const (
	RegistryBackendSQL    RegistryBackend = "sql"
	RegistryBackendRemote RegistryBackend = "remote"
)
