package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/formengine/pkg/auth"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/errors"
)

func abortUnauthorized(c *gin.Context, reason string) {
	resp := errors.ToResponse(errors.NewUnauthorizedError(reason))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		constants.ResponseError:   resp.Message,
		constants.ResponseMessage: resp.Message,
		"code":                    resp.Code,
	})
}

// RequireTenant resolves the tenant scope of the request.
// With a signing secret configured the tenant is the company_id claim of the bearer token;
// otherwise the X-Tenant-ID header is trusted (deployments behind an authenticating gateway).
func RequireTenant(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.Enabled() {
			tenant := strings.TrimSpace(c.GetHeader(constants.HeaderTenantID))
			if tenant == "" {
				abortUnauthorized(c, "No tenant provided")
				return
			}
			c.Set(constants.ContextKeyTenant, tenant)
			c.Next()
			return
		}

		header := c.GetHeader(constants.HeaderAuthorization)
		if header == "" {
			abortUnauthorized(c, "No authorization token provided")
			return
		}
		if !strings.HasPrefix(header, constants.BearerPrefix) {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}
		token := strings.TrimPrefix(header, constants.BearerPrefix)

		claims, err := verifier.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		c.Set(constants.ContextKeyTenant, claims.CompanyID)
		c.Set(constants.ContextKeyToken, token)
		c.Next()
	}
}

// TenantFromContext returns the tenant set by RequireTenant
func TenantFromContext(c *gin.Context) string {
	return c.GetString(constants.ContextKeyTenant)
}
