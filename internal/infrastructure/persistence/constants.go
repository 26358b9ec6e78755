package persistence

// Registry table and columns
const (
	TableFieldConfig = "form_field_config"

	ColID           = "id"
	ColTenantID     = "tenant_id"
	ColEntityType   = "entity_type"
	ColFieldName    = "field_name"
	ColFieldLabel   = "field_label"
	ColFieldType    = "field_type"
	ColIsMandatory  = "is_mandatory"
	ColIsEnabled    = "is_enabled"
	ColFieldSection = "field_section"
	ColDisplayOrder = "display_order"
	ColFieldOptions = "field_options"
	ColPlaceholder  = "placeholder"
	ColHelpText     = "help_text"
)

// fieldColumns is the insert/select column order shared by the repository and the seeder
var fieldColumns = []string{
	ColFieldName, ColFieldLabel, ColFieldType, ColIsMandatory, ColIsEnabled,
	ColFieldSection, ColDisplayOrder, ColFieldOptions, ColPlaceholder, ColHelpText,
}
