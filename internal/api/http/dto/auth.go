package dto

import "time"

type IssueTokenRequest struct {
	Operator string `json:"operator" binding:"required,max=64"`
	Role     string `json:"role" binding:"omitempty,oneof=operator admin"`
}

type IssueTokenResponse struct {
	Token     string    `json:"token"`
	Operator  string    `json:"operator"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}
