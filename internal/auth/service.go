package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

var (
	ErrInvalidOperator = errors.New("invalid operator name")
	ErrInvalidRole     = errors.New("invalid role")
	ErrNotConfigured   = errors.New("jwt secret is not configured")
)

type IssueResult struct {
	Token     string
	Operator  string
	Role      string
	ExpiresAt time.Time
}

// Service issues operator tokens. Operators are not stored; whoever holds
// the admin API key decides who gets a token.
type Service struct {
	config JWTConfig
	now    func() time.Time
}

func NewService(config JWTConfig) *Service {
	return &Service{
		config: config,
		now:    time.Now,
	}
}

func (s *Service) Issue(operator, role string) (IssueResult, error) {
	if s.config.Secret == "" {
		return IssueResult{}, ErrNotConfigured
	}

	operator = strings.TrimSpace(operator)
	if operator == "" || len(operator) > 64 {
		return IssueResult{}, ErrInvalidOperator
	}
	if role == "" {
		role = RoleOperator
	}
	if role != RoleOperator && role != RoleAdmin {
		return IssueResult{}, ErrInvalidRole
	}

	token, expiresAt, err := GenerateToken(s.config, operator, role, s.now())
	if err != nil {
		return IssueResult{}, fmt.Errorf("generate token: %w", err)
	}

	return IssueResult{
		Token:     token,
		Operator:  operator,
		Role:      role,
		ExpiresAt: expiresAt,
	}, nil
}
