package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/interfaces/middleware"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
)

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	status := errors.GetHTTPStatus(err)
	resp := errors.ToResponse(err)

	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("code", resp.Code),
			zap.Error(err))
	}

	body := gin.H{
		constants.ResponseError:   resp.Message,
		constants.ResponseMessage: resp.Message,
		"code":                    resp.Code,
	}
	if resp.Retryable {
		body["retryable"] = true
	}
	if resp.Field != "" {
		body["field"] = resp.Field
	}
	if len(resp.Details) > 0 {
		body[constants.ResponseErrors] = resp.Details
	}
	c.JSON(status, body)
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// bindOptionalJSON binds a body that may be absent
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return BindJSON(c, obj)
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// tenant returns the request's tenant scope set by middleware.RequireTenant
func tenant(c *gin.Context) string {
	return middleware.TenantFromContext(c)
}
