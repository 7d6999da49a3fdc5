package dto

type HealthResponse struct {
	Status         string `json:"status"`
	ConnectedNodes int    `json:"connected_nodes"`
	History        bool   `json:"history"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Info  string `json:"info,omitempty"`
}
