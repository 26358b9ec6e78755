package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/formengine/internal/application/services"
	"github.com/nexuscrm/formengine/internal/infrastructure/metrics"
	"github.com/nexuscrm/formengine/internal/interfaces/middleware"
	"github.com/nexuscrm/formengine/internal/interfaces/rest"
	"github.com/nexuscrm/formengine/pkg/auth"
)

func newRouter(svcMgr *services.ServiceManager, verifier *auth.Verifier, recorder *metrics.Recorder, origins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Cors(origins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": svcMgr.Forms.Count(),
		})
	})
	router.GET("/metrics", gin.WrapH(recorder.Handler()))

	api := router.Group("/api", middleware.RequireTenant(verifier))
	rest.NewFieldConfigHandler(svcMgr).RegisterRoutes(api)
	rest.NewFormHandler(svcMgr).RegisterRoutes(api)

	return router
}
