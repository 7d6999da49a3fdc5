package dto

import "github.com/EternisAI/netmeasure/internal/history"

type HistoryQuery struct {
	Node  string `form:"node"`
	Kind  string `form:"kind"`
	Limit int    `form:"limit" binding:"omitempty,min=1"`
}

type HistoryResponse struct {
	Results []history.Entry `json:"results"`
	Count   int             `json:"count"`
}
