package http

import (
	"github.com/EternisAI/netmeasure/internal/api/http/handler"
	"github.com/EternisAI/netmeasure/internal/api/http/middleware"
	"github.com/EternisAI/netmeasure/internal/auth"
	"github.com/EternisAI/netmeasure/internal/gateway"
	"github.com/EternisAI/netmeasure/internal/netmeasure"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Gateway  *gateway.Handler
	Registry *gateway.Registry
	Measure  *netmeasure.Service
	Tokens   *auth.Service
	// History is nil when no database is configured.
	History handler.HistoryLister
}

func SetupRoute(engine *gin.Engine, cfg Config, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler(srvs.Registry, srvs.History != nil)
	engine.GET("/health", healthHandler.Check)

	if srvs.Gateway != nil {
		engine.GET("/netmeasure", srvs.Gateway.Serve)
	}

	api := engine.Group("/api/v1")
	adminHandler := handler.NewAdminHandler(srvs.Tokens, srvs.Registry)

	operator := api.Group("", middleware.JWTAuth(cfg.JWTSecret))
	{
		probeHandler := handler.NewProbeHandler(srvs.Measure)
		operator.GET("/nodes", probeHandler.ListNodes)
		operator.POST("/probes/:kind", middleware.NewCooldown(cfg.Cooldown).Handler(), probeHandler.Run)

		historyHandler := handler.NewHistoryHandler(srvs.History)
		operator.GET("/history", historyHandler.List)

		operator.DELETE("/nodes/:name", middleware.RequireRole(auth.RoleAdmin), adminHandler.DisconnectNode)
	}

	admin := api.Group("/admin", middleware.APIKeyAuth(cfg.AdminAPIKey))
	{
		admin.POST("/tokens", adminHandler.IssueToken)
		admin.DELETE("/nodes/:name", adminHandler.DisconnectNode)
	}
}
