package constants

// HTTP and API constants
const (
	ContentTypeJSON = "application/json"

	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderTenantID      = "X-Tenant-ID"

	BearerPrefix = "Bearer "

	// Response Keys
	ResponseError    = "error"
	ResponseMessage  = "message"
	ResponseFields   = "fields"
	ResponseEditor   = "editor"
	ResponseForm     = "form"
	ResponseSection  = "section"
	ResponseErrors   = "errors"
	ResponseReview   = "review"
	ResponseRecordID = "record_id"
)

// Context Keys
const (
	ContextKeyTenant = "tenant_id"
	ContextKeyToken  = "token"
)

// Remote backend paths
const (
	PathFieldConfig     = "/api/admin/%s-fields"
	PathRelatedEntities = "/api/%s"
	PathRecords         = "/api/%ss"
	PathRecord          = "/api/%ss/%s"
)
