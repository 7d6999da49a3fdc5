package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/netmeasure/internal/api/http/dto"
	"github.com/EternisAI/netmeasure/internal/netmeasure"
	"github.com/EternisAI/netmeasure/internal/probe"
	"github.com/gin-gonic/gin"
)

type ProbeHandler struct {
	service *netmeasure.Service
}

func NewProbeHandler(service *netmeasure.Service) *ProbeHandler {
	return &ProbeHandler{service: service}
}

func (h *ProbeHandler) ListNodes(ctx *gin.Context) {
	infos := h.service.Nodes()

	nodes := make([]dto.NodeInfo, 0, len(infos))
	for _, n := range infos {
		nodes = append(nodes, dto.NodeInfo{
			Name:        n.Name,
			Transport:   string(n.Transport),
			Description: n.Description,
			ConnectedAt: n.ConnectedAt,
			LastSeen:    n.LastSeen,
		})
	}

	ctx.JSON(http.StatusOK, dto.NodesResponse{
		Nodes:       nodes,
		Count:       len(nodes),
		DefaultNode: h.service.DefaultNode(),
	})
}

// Run dispatches POST /probes/:kind to the matching operation.
func (h *ProbeHandler) Run(ctx *gin.Context) {
	kind, err := probe.ParseKind(ctx.Param("kind"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown probe kind"})
		return
	}

	var result interface{ NodeName() string }
	switch kind {
	case probe.KindResolve:
		var req netmeasure.ResolveOptions
		if !bind(ctx, &req) {
			return
		}
		result, err = h.service.Resolve(ctx.Request.Context(), req)
	case probe.KindPing:
		var req netmeasure.PingOptions
		if !bind(ctx, &req) {
			return
		}
		result, err = h.service.Ping(ctx.Request.Context(), req)
	case probe.KindTCPing:
		var req netmeasure.TCPingOptions
		if !bind(ctx, &req) {
			return
		}
		result, err = h.service.TCPing(ctx.Request.Context(), req)
	case probe.KindMTR:
		var req netmeasure.MTROptions
		if !bind(ctx, &req) {
			return
		}
		result, err = h.service.MTR(ctx.Request.Context(), req)
	case probe.KindSpeed:
		var req netmeasure.SpeedOptions
		if !bind(ctx, &req) {
			return
		}
		result, err = h.service.Speed(ctx.Request.Context(), req)
	}

	if err != nil {
		writeProbeError(ctx, kind, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.ProbeResponse{
		Kind:   kind.String(),
		Node:   result.NodeName(),
		Result: result,
	})
}

func bind(ctx *gin.Context, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func writeProbeError(ctx *gin.Context, kind probe.Kind, err error) {
	var pe *netmeasure.ProbeError
	switch {
	case errors.Is(err, netmeasure.ErrInvalidArgument):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, netmeasure.ErrNodeNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
	case errors.As(err, &pe):
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "probe failed", Info: pe.Info})
	default:
		slog.Warn("Probe request failed", "kind", kind, "error", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": netmeasure.ErrRequestFailed.Error()})
	}
}
