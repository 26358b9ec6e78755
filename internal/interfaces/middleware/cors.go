package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/nexuscrm/formengine/pkg/constants"
)

// Cors lets browser front-ends on the listed origins call the API. An empty list allows any origin.
func Cors(allowedOrigins []string) gin.HandlerFunc {
	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{constants.HeaderAuthorization, constants.HeaderContentType, constants.HeaderTenantID},
		AllowCredentials: true,
	}
	if len(allowedOrigins) == 0 {
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	c := cors.New(opts)

	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}
