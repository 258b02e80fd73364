package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes sets up the API routes.
// reg receives the request counters and is served at /metrics.
func SetupRoutes(handler *Handler, reg *prometheus.Registry) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger(handler.logger))
	router.Use(Metrics(reg))

	// Health check
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/environments/:env/status", handler.GetEnvironmentStatus)
		v1.POST("/qualifications/compile", handler.CompileQualifications)
		v1.POST("/cost", handler.EstimateCost)
	}

	return router
}
