package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/formengine/internal/application/services"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
)

// FieldConfigHandler serves the admin field configuration editor
type FieldConfigHandler struct {
	svc *services.FieldConfigService
}

func NewFieldConfigHandler(svcMgr *services.ServiceManager) *FieldConfigHandler {
	return &FieldConfigHandler{svc: svcMgr.FieldConfig}
}

// RegisterRoutes mounts the admin routes under /api/admin/fields/:entityType
func (h *FieldConfigHandler) RegisterRoutes(group *gin.RouterGroup) {
	g := group.Group("/admin/fields/:entityType")
	g.GET("", h.GetConfig)
	g.POST("/toggle", h.ToggleField)
	g.POST("/reorder", h.Reorder)
	g.POST("/move", h.Move)
	g.PATCH("/fields/:field", h.UpdateDisplay)
	g.POST("/sections/:section/toggle", h.ToggleSection)
	g.POST("/expand-all", h.ExpandAll)
	g.POST("/collapse-all", h.CollapseAll)
	g.POST("/save", h.Save)
	g.POST("/reset", h.Reset)
}

// withEditor resolves the tenant's editor and runs action against it, replying with the editor view
func (h *FieldConfigHandler) withEditor(c *gin.Context, action func(ed *services.SectionEditor) error) {
	HandleGetEnvelope(c, constants.ResponseEditor, func() (interface{}, error) {
		ed, err := h.svc.Editor(c.Request.Context(), tenant(c), c.Param("entityType"))
		if err != nil {
			return nil, err
		}
		if action != nil {
			if err := action(ed); err != nil {
				return nil, err
			}
		}
		return ed.View(c.Query(constants.ResponseSection)), nil
	})
}

// GetConfig handles GET /api/admin/fields/:entityType?section=
func (h *FieldConfigHandler) GetConfig(c *gin.Context) {
	h.withEditor(c, nil)
}

type toggleFieldRequest struct {
	Field string `json:"field_name" binding:"required"`
}

// ToggleField handles POST /api/admin/fields/:entityType/toggle
func (h *FieldConfigHandler) ToggleField(c *gin.Context) {
	var req toggleFieldRequest
	if !BindJSON(c, &req) {
		return
	}
	h.withEditor(c, func(ed *services.SectionEditor) error {
		_, err := ed.ToggleEnabled(req.Field)
		return err
	})
}

type reorderRequest struct {
	Field     string              `json:"field_name" binding:"required"`
	Direction constants.Direction `json:"direction" binding:"required"`
}

// Reorder handles POST /api/admin/fields/:entityType/reorder
func (h *FieldConfigHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if !BindJSON(c, &req) {
		return
	}
	if !req.Direction.IsValid() {
		RespondAppError(c, errors.NewValidationError("direction", "must be up or down"))
		return
	}
	h.withEditor(c, func(ed *services.SectionEditor) error {
		_, err := ed.Reorder(req.Field, req.Direction)
		return err
	})
}

type moveRequest struct {
	Field   string `json:"field_name" binding:"required"`
	Section string `json:"field_section" binding:"required"`
}

// Move handles POST /api/admin/fields/:entityType/move
func (h *FieldConfigHandler) Move(c *gin.Context) {
	var req moveRequest
	if !BindJSON(c, &req) {
		return
	}
	h.withEditor(c, func(ed *services.SectionEditor) error {
		return ed.MoveToSection(req.Field, req.Section)
	})
}

// UpdateDisplay handles PATCH /api/admin/fields/:entityType/fields/:field
func (h *FieldConfigHandler) UpdateDisplay(c *gin.Context) {
	var req services.DisplayUpdate
	if !BindJSON(c, &req) {
		return
	}
	h.withEditor(c, func(ed *services.SectionEditor) error {
		return ed.UpdateDisplay(c.Param("field"), req)
	})
}

// ToggleSection handles POST /api/admin/fields/:entityType/sections/:section/toggle
func (h *FieldConfigHandler) ToggleSection(c *gin.Context) {
	h.withEditor(c, func(ed *services.SectionEditor) error {
		ed.ToggleSection(c.Param("section"))
		return nil
	})
}

func (h *FieldConfigHandler) ExpandAll(c *gin.Context) {
	h.withEditor(c, func(ed *services.SectionEditor) error {
		ed.ExpandAll()
		return nil
	})
}

func (h *FieldConfigHandler) CollapseAll(c *gin.Context) {
	h.withEditor(c, func(ed *services.SectionEditor) error {
		ed.CollapseAll()
		return nil
	})
}

// Save handles POST /api/admin/fields/:entityType/save
func (h *FieldConfigHandler) Save(c *gin.Context) {
	h.withEditor(c, func(ed *services.SectionEditor) error {
		return ed.Save(c.Request.Context())
	})
}

// Reset handles POST /api/admin/fields/:entityType/reset
func (h *FieldConfigHandler) Reset(c *gin.Context) {
	h.withEditor(c, func(ed *services.SectionEditor) error {
		return ed.Reset(c.Request.Context())
	})
}
