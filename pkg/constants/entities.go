package constants

// Entity types with a configurable field registry
const (
	EntityAccount = "account"
	EntityContact = "contact"
	EntityLead    = "lead"
	EntityProduct = "product"
	EntityDeal    = "deal"
)

// Lookup types served by the candidate lookup endpoint
const (
	LookupAccounts = "accounts"
	LookupContacts = "contacts"
	LookupUsers    = "users"
	LookupProducts = "products"
)

// Section names shared across entity types
const (
	SectionBasicInfo       = "basic_info"
	SectionLeadDetails     = "lead_details"
	SectionContactInfo     = "contact_info"
	SectionAdditionalInfo  = "additional_info"
	SectionContact         = "contact"
	SectionProfessional    = "professional"
	SectionAddress         = "address"
	SectionAddresses       = "addresses"
	SectionSocial          = "social"
	SectionBusinessDetails = "business_details"
	SectionFinancial       = "financial"
	SectionAdvanced        = "advanced"
	SectionPricing         = "pricing"
	SectionInventory       = "inventory"
	SectionTechnical       = "technical"
	SectionMedia           = "media"
	SectionDates           = "dates"
	SectionAnalytics       = "analytics"
	SectionDealDetails     = "deal_details"
)

// Well-known field names referenced by the dependency tables
const (
	FieldAccount      = "account"
	FieldContact      = "contact"
	FieldAssignedTo   = "assigned_to"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldPhoneNumber  = "phone_number"
	FieldEmailAddress = "email_address"
	FieldDepartment   = "department"
	FieldCompanyName  = "company_name"
)

// Entity attribute keys read from lookup results
const (
	AttrID           = "id"
	AttrName         = "name"
	AttrAccountID    = "account_id"
	AttrAccountName  = "account_name"
	AttrContactName  = "contact_name"
	AttrFullName     = "full_name"
	AttrFirstName    = "first_name"
	AttrLastName     = "last_name"
	AttrPhoneMobile  = "phone_mobile"
	AttrPhoneNumber  = "phone_number"
	AttrPhoneWork    = "phone_work"
	AttrPhone        = "phone"
	AttrEmailPrimary = "email_primary"
	AttrEmail        = "email"
	AttrEmailAddress = "email_address"
	AttrDepartment   = "department"
	AttrProductName  = "product_name"
	AttrPrice        = "price"
	AttrBasePrice    = "base_price"
	AttrCostPrice    = "cost_price"
)

// Pseudo-field keys used for composite validation errors
const (
	PseudoFieldProducts = "products"
	PseudoFieldPricing  = "pricing"
)

// Payload keys added when a draft is flattened for persistence
const (
	PayloadSelectedProducts = "selected_products"
	PayloadCompanyID        = "company_id"
	PayloadRecordID         = "id"
	PayloadDisplaySuffix    = "_name"
)
