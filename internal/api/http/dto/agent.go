package dto

import "time"

type NodeInfo struct {
	Name        string     `json:"name"`
	Transport   string     `json:"transport"`
	Description string     `json:"description"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

type NodesResponse struct {
	Nodes       []NodeInfo `json:"nodes"`
	Count       int        `json:"count"`
	DefaultNode string     `json:"default_node"`
}

type DisconnectNodeResponse struct {
	Name         string `json:"name"`
	Disconnected bool   `json:"disconnected"`
}
