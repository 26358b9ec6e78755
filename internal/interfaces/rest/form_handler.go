package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/formengine/internal/application/services"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
)

// FormHandler serves record-entry form sessions
type FormHandler struct {
	forms *services.FormService
}

func NewFormHandler(svcMgr *services.ServiceManager) *FormHandler {
	return &FormHandler{forms: svcMgr.Forms}
}

// RegisterRoutes mounts the form routes under /api/forms
func (h *FormHandler) RegisterRoutes(group *gin.RouterGroup) {
	g := group.Group("/forms")
	g.POST("/:id", h.Open)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Discard)
	g.GET("/:id/sections/:section", h.RenderSection)
	g.PUT("/:id/fields/:field", h.SetValue)
	g.POST("/:id/fields/:field/retry", h.RetryLookup)
	g.POST("/:id/products/:productId/toggle", h.ToggleProduct)
	g.PATCH("/:id/products/:productId", h.UpdateLineItem)
	g.POST("/:id/validate", h.Validate)
	g.POST("/:id/review", h.Review)
	g.POST("/:id/edit", h.Edit)
	g.POST("/:id/submit", h.Submit)
}

// session resolves the tenant's open session from the :id parameter, replying 404 if absent
func (h *FormHandler) session(c *gin.Context) (*services.FormSession, bool) {
	s, err := h.forms.Get(tenant(c), c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return nil, false
	}
	return s, true
}

// mutate runs action on the session and replies with the refreshed form view
func (h *FormHandler) mutate(c *gin.Context, action func(s *services.FormSession) error) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := action(s); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.ResponseForm: s.View()})
}

type openFormRequest struct {
	RecordID string                 `json:"record_id"`
	Record   map[string]interface{} `json:"record"`
}

// Open handles POST /api/forms/:entityType. The route shares its wildcard with the session routes.
func (h *FormHandler) Open(c *gin.Context) {
	var req openFormRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.RecordID == "" && req.Record != nil {
		if id, ok := req.Record[constants.AttrID].(string); ok {
			req.RecordID = id
		}
	}
	s, err := h.forms.Open(c.Request.Context(), tenant(c), c.Param("id"), req.RecordID, req.Record)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{constants.ResponseForm: s.View()})
}

// Get handles GET /api/forms/:id
func (h *FormHandler) Get(c *gin.Context) {
	h.mutate(c, func(*services.FormSession) error { return nil })
}

// Discard handles DELETE /api/forms/:id (cancel)
func (h *FormHandler) Discard(c *gin.Context) {
	if !h.forms.Discard(tenant(c), c.Param("id")) {
		RespondAppError(c, errors.NewNotFoundError("Form", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.ResponseMessage: "Form discarded"})
}

// RenderSection handles GET /api/forms/:id/sections/:section
func (h *FormHandler) RenderSection(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	HandleGetEnvelope(c, constants.ResponseSection, func() (interface{}, error) {
		return s.RenderSection(c.Param("section"))
	})
}

type setValueRequest struct {
	Value interface{} `json:"value"`
}

// SetValue handles PUT /api/forms/:id/fields/:field
func (h *FormHandler) SetValue(c *gin.Context) {
	var req setValueRequest
	if !BindJSON(c, &req) {
		return
	}
	h.mutate(c, func(s *services.FormSession) error {
		return s.SetValue(c.Request.Context(), c.Param("field"), req.Value)
	})
}

// RetryLookup handles POST /api/forms/:id/fields/:field/retry
func (h *FormHandler) RetryLookup(c *gin.Context) {
	h.mutate(c, func(s *services.FormSession) error {
		return s.RetryLookup(c.Request.Context(), c.Param("field"))
	})
}

// ToggleProduct handles POST /api/forms/:id/products/:productId/toggle
func (h *FormHandler) ToggleProduct(c *gin.Context) {
	h.mutate(c, func(s *services.FormSession) error {
		_, err := s.ToggleProduct(c.Param("productId"))
		return err
	})
}

// UpdateLineItem handles PATCH /api/forms/:id/products/:productId
func (h *FormHandler) UpdateLineItem(c *gin.Context) {
	var req services.LineItemUpdate
	if !BindJSON(c, &req) {
		return
	}
	h.mutate(c, func(s *services.FormSession) error {
		return s.UpdateLineItem(c.Param("productId"), req)
	})
}

// Validate handles POST /api/forms/:id/validate
func (h *FormHandler) Validate(c *gin.Context) {
	h.mutate(c, func(s *services.FormSession) error {
		return s.Validate()
	})
}

// Review handles POST /api/forms/:id/review
func (h *FormHandler) Review(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	HandleGetEnvelope(c, constants.ResponseReview, func() (interface{}, error) {
		return s.Review()
	})
}

// Edit handles POST /api/forms/:id/edit (back from review)
func (h *FormHandler) Edit(c *gin.Context) {
	h.mutate(c, func(s *services.FormSession) error {
		return s.Edit()
	})
}

type submitRequest struct {
	SaveAndNew bool `json:"save_and_new"`
}

// Submit handles POST /api/forms/:id/submit
func (h *FormHandler) Submit(c *gin.Context) {
	var req submitRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	submit := s.Submit
	if req.SaveAndNew {
		submit = s.SaveAndNew
	}
	recordID, err := submit(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.ResponseMessage:  "Record saved",
		constants.ResponseRecordID: recordID,
		constants.ResponseForm:     s.View(),
	})
}
