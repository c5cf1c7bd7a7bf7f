package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pustakapp/pustak-server/internal/auth"
	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/id"
	"github.com/pustakapp/pustak-server/internal/ratelimit"
	"github.com/pustakapp/pustak-server/internal/store"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

// AuthService handles login and token verification.
type AuthService struct {
	store        *sqlite.Store
	tokenService *auth.TokenService
	loginLimiter *ratelimit.KeyedRateLimiter
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store *sqlite.Store,
	tokenService *auth.TokenService,
	loginLimiter *ratelimit.KeyedRateLimiter,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:        store,
		tokenService: tokenService,
		loginLimiter: loginLimiter,
		logger:       logger,
	}
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	ClientAddr string `json:"-"` // Extracted from the request by the handler
}

// LoginResponse contains the issued token and the authenticated user.
type LoginResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Login authenticates a user and issues an access token. Attempts are
// throttled per client address; lookup and password failures read the
// same so callers cannot probe which emails exist.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	if s.loginLimiter != nil && req.ClientAddr != "" && !s.loginLimiter.Allow(req.ClientAddr) {
		return nil, domainerrors.RateLimited("too many login attempts, try again shortly")
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	if !user.Active {
		return nil, domainerrors.Inactive("account is deactivated")
	}

	token, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)

	return &LoginResponse{
		User:        user,
		AccessToken: token,
		ExpiresAt:   time.Now().UTC().Add(s.tokenService.AccessTokenDuration()),
	}, nil
}

// VerifyToken validates an access token and loads its account. Tokens
// for deactivated accounts are rejected even before expiry.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token")
	}
	if !id.HasPrefix(claims.UserID, id.PrefixUser) {
		return nil, domainerrors.Unauthorized("malformed token subject")
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.Unauthorized("account no longer exists")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		return nil, domainerrors.Inactive("account is deactivated")
	}

	return user, nil
}
