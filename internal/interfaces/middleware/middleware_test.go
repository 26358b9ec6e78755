package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/formengine/pkg/auth"
	"github.com/nexuscrm/formengine/pkg/constants"
)

func tenantRouter(verifier *auth.Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Cors(nil))
	r.GET("/whoami", RequireTenant(verifier), func(c *gin.Context) {
		c.String(http.StatusOK, TenantFromContext(c))
	})
	return r
}

func TestRequireTenant_Header(t *testing.T) {
	r := tenantRouter(auth.NewVerifier(""))

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"header present", "acme", http.StatusOK, "acme"},
		{"header missing", "", http.StatusUnauthorized, ""},
		{"header blank", "   ", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(constants.HeaderTenantID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestRequireTenant_Token(t *testing.T) {
	verifier := auth.NewVerifier("s3cret")
	r := tenantRouter(verifier)

	good, err := verifier.GenerateToken("u1", "acme", time.Hour)
	require.NoError(t, err)
	forged, err := auth.NewVerifier("other").GenerateToken("u1", "evil", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		auth  string
		code  int
		other string
	}{
		{"valid token", constants.BearerPrefix + good, http.StatusOK, ""},
		{"token wins over header", constants.BearerPrefix + good, http.StatusOK, "evil"},
		{"missing token", "", http.StatusUnauthorized, "acme"},
		{"wrong scheme", "Basic " + good, http.StatusUnauthorized, ""},
		{"bad signature", constants.BearerPrefix + forged, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.auth != "" {
				req.Header.Set(constants.HeaderAuthorization, tt.auth)
			}
			if tt.other != "" {
				req.Header.Set(constants.HeaderTenantID, tt.other)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "acme", w.Body.String())
			}
		})
	}
}

func TestCors_Preflight(t *testing.T) {
	r := tenantRouter(auth.NewVerifier(""))

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
