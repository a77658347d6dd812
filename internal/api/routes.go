package api

import (
	"github.com/gin-gonic/gin"

	"github.com/macsteckler/lightspeeed-scraper/internal/httpserver"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

// RoutesConfig carries the cross-cutting pieces the route table needs.
type RoutesConfig struct {
	Service      string
	Version      string
	JWTSecret    string
	Telemetry    *telemetry.Provider
	HealthChecks map[string]httpserver.HealthChecker
}

// SetupRoutes mounts the open health and metrics endpoints and the
// JWT-protected job API under /api/v1.
func SetupRoutes(router *gin.Engine, handler *Handler, cfg RoutesConfig) {
	httpserver.RegisterHealthRoutes(router, cfg.Service, cfg.Version, cfg.HealthChecks)
	if cfg.Telemetry != nil {
		router.GET("/metrics", gin.WrapH(cfg.Telemetry.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.Use(httpserver.AuthMiddleware(cfg.JWTSecret))
	{
		v1.POST("/scrape-article", handler.ScrapeArticle)
		v1.POST("/scrape-source", handler.ScrapeSource)
		v1.POST("/process-sources", handler.ProcessSources)
		v1.POST("/scrape-multiple-sources", handler.ScrapeMultipleSources)
		v1.GET("/jobs/:id", handler.GetJob)
	}
}
