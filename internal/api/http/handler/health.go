package handler

import (
	"net/http"

	"github.com/EternisAI/netmeasure/internal/api/http/dto"
	"github.com/EternisAI/netmeasure/internal/gateway"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	registry       *gateway.Registry
	historyEnabled bool
}

func NewHealthHandler(registry *gateway.Registry, historyEnabled bool) *HealthHandler {
	return &HealthHandler{
		registry:       registry,
		historyEnabled: historyEnabled,
	}
}

func (h *HealthHandler) Check(ctx *gin.Context) {
	resp := dto.HealthResponse{Status: "ok", History: h.historyEnabled}
	if h.registry != nil {
		resp.ConnectedNodes = h.registry.Count()
	}
	ctx.JSON(http.StatusOK, resp)
}
