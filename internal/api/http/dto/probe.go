package dto

type ProbeResponse struct {
	Kind   string `json:"kind"`
	Node   string `json:"node"`
	Result any    `json:"result"`
}
