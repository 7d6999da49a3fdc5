package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/EternisAI/netmeasure/internal/api/http/dto"
	"github.com/EternisAI/netmeasure/internal/auth"
	"github.com/EternisAI/netmeasure/internal/gateway"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	tokens   *auth.Service
	registry *gateway.Registry
}

func NewAdminHandler(tokens *auth.Service, registry *gateway.Registry) *AdminHandler {
	return &AdminHandler{
		tokens:   tokens,
		registry: registry,
	}
}

func (h *AdminHandler) IssueToken(ctx *gin.Context) {
	var req dto.IssueTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.tokens.Issue(req.Operator, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidOperator), errors.Is(err, auth.ErrInvalidRole):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, auth.ErrNotConfigured):
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			slog.Error("Failed to issue operator token", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		}
		return
	}

	slog.Info("Issued operator token", "operator", res.Operator, "role", res.Role, "expires_at", res.ExpiresAt)
	ctx.JSON(http.StatusCreated, dto.IssueTokenResponse{
		Token:     res.Token,
		Operator:  res.Operator,
		Role:      res.Role,
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *AdminHandler) DisconnectNode(ctx *gin.Context) {
	name := strings.ToUpper(ctx.Param("name"))
	if !h.registry.Disconnect(name) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "node is not connected"})
		return
	}

	slog.Info("Disconnected node", "node", name)
	ctx.JSON(http.StatusOK, dto.DisconnectNodeResponse{Name: name, Disconnected: true})
}
