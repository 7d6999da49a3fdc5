package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/EternisAI/netmeasure/internal/api/http/dto"
	"github.com/EternisAI/netmeasure/internal/history"
	"github.com/EternisAI/netmeasure/internal/probe"
	"github.com/gin-gonic/gin"
)

type HistoryLister interface {
	List(ctx context.Context, f history.Filter) ([]history.Entry, error)
}

type HistoryHandler struct {
	store HistoryLister
}

// NewHistoryHandler accepts a nil store; the endpoint then reports that no
// database is configured.
func NewHistoryHandler(store HistoryLister) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) List(ctx *gin.Context) {
	if h.store == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not enabled"})
		return
	}

	var q dto.HistoryQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := history.Filter{
		Node:  strings.ToUpper(strings.TrimSpace(q.Node)),
		Limit: q.Limit,
	}
	if q.Kind != "" {
		kind, err := probe.ParseKind(q.Kind)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown probe kind"})
			return
		}
		filter.Kind = kind.String()
	}

	entries, err := h.store.List(ctx.Request.Context(), filter)
	if err != nil {
		slog.Error("Failed to list probe history", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list history"})
		return
	}

	ctx.JSON(http.StatusOK, dto.HistoryResponse{
		Results: entries,
		Count:   len(entries),
	})
}
