package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/auth"
	"github.com/spec-kit/fleet-workorders/internal/config"
	"github.com/spec-kit/fleet-workorders/pkg/util/errorutil"
)

// LoginResult is returned on successful login.
type LoginResult struct {
	Username  string
	Sector    string
	Token     string
	ExpiresAt time.Time
}

// AuthService authenticates the configured operators.
type AuthService struct {
	operators map[string]config.Operator
	tokenMgr  *auth.TokenManager
	dummyHash string
	logger    *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	operators := make(map[string]config.Operator, len(cfg.Operators))
	for _, op := range cfg.Operators {
		operators[strings.ToLower(op.Username)] = op
	}
	// Unknown usernames are compared against this hash so both paths cost the same.
	dummy, err := auth.HashPassword("no-such-operator", cfg.BcryptCost)
	if err != nil {
		logger.Warn("unable to prepare dummy password hash", zap.Error(err))
	}
	return &AuthService{
		operators: operators,
		tokenMgr:  tokens,
		dummyHash: dummy,
		logger:    logger.Named("auth"),
	}
}

// Login checks the operator's password and issues an access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errorutil.NewValidationError("username and password are required", nil)
	}

	op, ok := s.operators[strings.ToLower(username)]
	hash := op.PasswordHash
	if !ok {
		hash = s.dummyHash
	}
	if err := auth.ComparePassword(hash, password); err != nil || !ok {
		s.logger.Info("login rejected", zap.String("username", username))
		return nil, errorutil.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(op.Username, op.Sector)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	return &LoginResult{Username: op.Username, Sector: op.Sector, Token: token, ExpiresAt: exp}, nil
}

// Operators returns how many operators can log in.
func (s *AuthService) Operators() int {
	return len(s.operators)
}
