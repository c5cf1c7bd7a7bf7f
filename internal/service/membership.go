package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pustakapp/pustak-server/internal/auth"
	"github.com/pustakapp/pustak-server/internal/config"
	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/id"
	"github.com/pustakapp/pustak-server/internal/store"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

// MembershipService manages library members and librarians.
type MembershipService struct {
	store       *sqlite.Store
	circulation config.CirculationConfig
	logger      *slog.Logger
}

// NewMembershipService creates a new membership service.
func NewMembershipService(store *sqlite.Store, circulation config.CirculationConfig, logger *slog.Logger) *MembershipService {
	return &MembershipService{
		store:       store,
		circulation: circulation,
		logger:      logger,
	}
}

// RegisterUserRequest contains the data for a new account.
type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Role     string `json:"role" validate:"omitempty,oneof=librarian member"`
}

// UpdateUserRequest carries partial updates to an account.
type UpdateUserRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=200"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Active *bool   `json:"active"`
}

// RemoveUserResult reports what the removal cascade did.
type RemoveUserResult struct {
	BooksReturned         int `json:"books_returned"`
	ReservationsCancelled int `json:"reservations_cancelled"`
}

// RegisterUser creates a new account. Role defaults to member; creating
// librarians is restricted at the API layer.
func (s *MembershipService) RegisterUser(ctx context.Context, req RegisterUserRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	role := domain.Role(req.Role)
	if role == "" {
		role = domain.RoleMember
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           userID,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", userID, "role", role)
	return user, nil
}

// GetUser returns a single account.
func (s *MembershipService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListUsers returns accounts ordered by name, optionally filtered by role.
func (s *MembershipService) ListUsers(ctx context.Context, role domain.Role, page *store.Page) ([]*domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, domainerrors.Validationf("unknown role %q", role)
	}

	users, err := s.store.ListUsers(ctx, role, page)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser applies partial updates to an account. Setting Active to
// false suspends borrowing without touching existing loans.
func (s *MembershipService) UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	user.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("user updated", "user_id", userID, "active", user.Active)
	return user, nil
}

// RemoveUser deletes an account. Active loans are auto-returned (copies
// restored, fines settled at the removal timestamp) and pending holds
// cancelled before the account goes away.
func (s *MembershipService) RemoveUser(ctx context.Context, userID string) (*RemoveUserResult, error) {
	result, err := s.store.DeleteUser(ctx, userID, time.Now().UTC(), s.circulation.FineRate)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("remove user: %w", err)
	}

	s.logger.Info("user removed",
		"user_id", userID,
		"books_returned", result.BooksReturned,
		"reservations_cancelled", result.ReservationsCancelled,
	)

	return &RemoveUserResult{
		BooksReturned:         result.BooksReturned,
		ReservationsCancelled: result.ReservationsCancelled,
	}, nil
}
