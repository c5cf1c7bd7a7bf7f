package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users",
		Summary:     "List users",
		Description: "Returns registered users, optionally filtered by role",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "createUser",
		Method:      http.MethodPost,
		Path:        "/api/v1/users",
		Summary:     "Create user",
		Description: "Creates a member or librarian account",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get user",
		Description: "Returns a user by ID",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/{id}",
		Summary:     "Update user",
		Description: "Updates account details or active status",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteUser",
		Method:      http.MethodDelete,
		Path:        "/api/v1/users/{id}",
		Summary:     "Remove user",
		Description: "Removes an account, returning its loans and cancelling its holds",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/loans",
		Summary:     "Get user loans",
		Description: "Returns a user's loans",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetUserLoans)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserOwed",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/owed",
		Summary:     "Get amount owed",
		Description: "Returns the total amount a user currently owes",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetUserOwed)
}

// === DTOs ===

// UserResponse contains user data in API responses.
type UserResponse struct {
	ID        string    `json:"id" doc:"User ID"`
	Name      string    `json:"name" doc:"Full name"`
	Email     string    `json:"email" doc:"Email address"`
	Role      string    `json:"role" doc:"Role: librarian or member"`
	Active    bool      `json:"active" doc:"Whether the account may borrow"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

func userResponseFrom(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserOutput wraps a single user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// ListUsersInput contains parameters for listing users.
type ListUsersInput struct {
	Authorization string `header:"Authorization"`
	Role          string `query:"role" enum:"librarian,member," doc:"Filter by role"`
	Page          int    `query:"page" doc:"Page number (1-based)"`
	PerPage       int    `query:"per_page" doc:"Items per page"`
}

// ListUsersResponse contains a list of users.
type ListUsersResponse struct {
	Users []UserResponse `json:"users" doc:"List of users"`
}

// ListUsersOutput wraps the list users response for Huma.
type ListUsersOutput struct {
	Body ListUsersResponse
}

// CreateUserRequest is the request body for creating a user.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=200" doc:"Full name"`
	Email    string `json:"email" validate:"required,email,max=254" doc:"Email address"`
	Password string `json:"password" validate:"required,min=8,max=1024" doc:"Password"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=librarian member" doc:"Role, defaults to member"`
}

// CreateUserInput wraps the create user request for Huma.
type CreateUserInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateUserRequest
}

// GetUserInput contains parameters for getting a user.
type GetUserInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"User ID"`
}

// UpdateUserRequest is the request body for updating a user.
type UpdateUserRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,max=200" doc:"Full name"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email" doc:"Email address"`
	Active *bool   `json:"active,omitempty" doc:"Whether the account may borrow"`
}

// UpdateUserInput wraps the update user request for Huma.
type UpdateUserInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"User ID"`
	Body          UpdateUserRequest
}

// DeleteUserInput contains parameters for removing a user.
type DeleteUserInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"User ID"`
}

// RemoveUserResponse reports what removing an account did.
type RemoveUserResponse struct {
	BooksReturned         int `json:"books_returned" doc:"Active loans closed by the removal"`
	ReservationsCancelled int `json:"reservations_cancelled" doc:"Pending holds released by the removal"`
}

// RemoveUserOutput wraps the remove user response for Huma.
type RemoveUserOutput struct {
	Body RemoveUserResponse
}

// GetUserLoansInput contains parameters for listing a user's loans.
type GetUserLoansInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"User ID"`
	Active        bool   `query:"active" doc:"Only loans currently out"`
	Page          int    `query:"page" doc:"Page number (1-based)"`
	PerPage       int    `query:"per_page" doc:"Items per page"`
}

// GetUserOwedInput contains parameters for the owed total.
type GetUserOwedInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"User ID"`
}

// OwedResponse contains the amount a user owes.
type OwedResponse struct {
	UserID    string  `json:"user_id" doc:"User ID"`
	TotalOwed float64 `json:"total_owed" doc:"Amount currently owed"`
}

// OwedOutput wraps the owed response for Huma.
type OwedOutput struct {
	Body OwedResponse
}

// === Handlers ===

func (s *Server) handleListUsers(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	users, err := s.services.Membership.ListUsers(ctx, domain.Role(input.Role), pageFromQuery(input.Page, input.PerPage))
	if err != nil {
		return nil, err
	}

	resp := make([]UserResponse, len(users))
	for i, u := range users {
		resp[i] = userResponseFrom(u)
	}

	return &ListUsersOutput{Body: ListUsersResponse{Users: resp}}, nil
}

func (s *Server) handleCreateUser(ctx context.Context, input *CreateUserInput) (*UserOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	user, err := s.services.Membership.RegisterUser(ctx, service.RegisterUserRequest{
		Name:     input.Body.Name,
		Email:    input.Body.Email,
		Password: input.Body.Password,
		Role:     input.Body.Role,
	})
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: userResponseFrom(user)}, nil
}

func (s *Server) handleGetUser(ctx context.Context, input *GetUserInput) (*UserOutput, error) {
	if _, err := s.requireSelfOrLibrarian(ctx, input.Authorization, input.ID); err != nil {
		return nil, err
	}

	user, err := s.services.Membership.GetUser(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: userResponseFrom(user)}, nil
}

func (s *Server) handleUpdateUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	caller, err := s.requireSelfOrLibrarian(ctx, input.Authorization, input.ID)
	if err != nil {
		return nil, err
	}
	// Members cannot reactivate or suspend themselves.
	if input.Body.Active != nil && !caller.IsLibrarian() {
		return nil, domainerrors.Forbidden("librarian access required")
	}

	user, err := s.services.Membership.UpdateUser(ctx, input.ID, service.UpdateUserRequest{
		Name:   input.Body.Name,
		Email:  input.Body.Email,
		Active: input.Body.Active,
	})
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: userResponseFrom(user)}, nil
}

func (s *Server) handleDeleteUser(ctx context.Context, input *DeleteUserInput) (*RemoveUserOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	result, err := s.services.Membership.RemoveUser(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &RemoveUserOutput{
		Body: RemoveUserResponse{
			BooksReturned:         result.BooksReturned,
			ReservationsCancelled: result.ReservationsCancelled,
		},
	}, nil
}

func (s *Server) handleGetUserLoans(ctx context.Context, input *GetUserLoansInput) (*ListLoansOutput, error) {
	if _, err := s.requireSelfOrLibrarian(ctx, input.Authorization, input.ID); err != nil {
		return nil, err
	}

	loans, err := s.services.Circulation.ListUserLoans(ctx, input.ID, input.Active, pageFromQuery(input.Page, input.PerPage))
	if err != nil {
		return nil, err
	}

	return loanPageOutput(loans), nil
}

func (s *Server) handleGetUserOwed(ctx context.Context, input *GetUserOwedInput) (*OwedOutput, error) {
	if _, err := s.requireSelfOrLibrarian(ctx, input.Authorization, input.ID); err != nil {
		return nil, err
	}

	owed, err := s.services.Fines.TotalOwed(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &OwedOutput{Body: OwedResponse{UserID: input.ID, TotalOwed: owed}}, nil
}
