package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustakapp/pustak-server/internal/auth"
	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/ratelimit"
)

func newAuthEnv(t *testing.T, limiter *ratelimit.KeyedRateLimiter) (*testEnv, *AuthService) {
	t.Helper()

	env := newTestEnv(t)
	tokenService, err := auth.NewTokenService(strings.Repeat("0", 64), time.Hour)
	require.NoError(t, err)

	return env, NewAuthService(env.store, tokenService, limiter, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuth_Login(t *testing.T) {
	env, authService := newAuthEnv(t, nil)
	ctx := context.Background()

	user := env.member(t, "alice")

	resp, err := authService.Login(ctx, LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	assert.Equal(t, user.ID, resp.User.ID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	verified, err := authService.VerifyToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
}

func TestAuth_Login_BadCredentials(t *testing.T) {
	env, authService := newAuthEnv(t, nil)
	ctx := context.Background()

	env.member(t, "alice")

	// Wrong password and unknown email read identically.
	_, err := authService.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = authService.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAuth_Login_InactiveUser(t *testing.T) {
	env, authService := newAuthEnv(t, nil)
	ctx := context.Background()

	user := env.member(t, "alice")
	inactive := false
	_, err := env.membership.UpdateUser(ctx, user.ID, UpdateUserRequest{Active: &inactive})
	require.NoError(t, err)

	_, err = authService.Login(ctx, LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInactive)
}

func TestAuth_Login_RateLimited(t *testing.T) {
	limiter := ratelimit.New(1.0/60, 2)
	t.Cleanup(limiter.Stop)

	env, authService := newAuthEnv(t, limiter)
	ctx := context.Background()

	env.member(t, "alice")

	req := LoginRequest{
		Email:      "alice@example.com",
		Password:   "wrong password",
		ClientAddr: "192.0.2.1",
	}

	for i := 0; i < 2; i++ {
		_, err := authService.Login(ctx, req)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	}

	_, err := authService.Login(ctx, req)
	assert.ErrorIs(t, err, domainerrors.ErrRateLimited)

	// Another client address is unaffected.
	other := req
	other.ClientAddr = "192.0.2.2"
	_, err = authService.Login(ctx, other)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAuth_VerifyToken_Deactivated(t *testing.T) {
	env, authService := newAuthEnv(t, nil)
	ctx := context.Background()

	user := env.member(t, "alice")
	resp, err := authService.Login(ctx, LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	inactive := false
	_, err = env.membership.UpdateUser(ctx, user.ID, UpdateUserRequest{Active: &inactive})
	require.NoError(t, err)

	_, err = authService.VerifyToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrInactive)
}

func TestAuth_VerifyToken_Garbage(t *testing.T) {
	_, authService := newAuthEnv(t, nil)

	_, err := authService.VerifyToken(context.Background(), "v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestAuth_VerifyToken_ForeignSubject(t *testing.T) {
	_, authService := newAuthEnv(t, nil)

	// A valid token whose subject is not a user ID is rejected before
	// any store lookup.
	tokenService, err := auth.NewTokenService(strings.Repeat("0", 64), time.Hour)
	require.NoError(t, err)

	forged, err := tokenService.GenerateAccessToken(&domain.User{ID: "book-abc123", Role: domain.RoleMember})
	require.NoError(t, err)

	_, err = authService.VerifyToken(context.Background(), forged)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}
