package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/register",
		Summary:     "Register member",
		Description: "Creates a new member account",
		Tags:        []string{"Authentication"},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "User login",
		Description: "Authenticates a user and returns an access token",
		Tags:        []string{"Authentication"},
	}, s.handleLogin)
}

// === DTOs ===

// RegisterRequest is the request body for member self-registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=200" doc:"Full name"`
	Email    string `json:"email" validate:"required,email,max=254" doc:"Email address"`
	Password string `json:"password" validate:"required,min=8,max=1024" doc:"Password"`
}

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body RegisterRequest
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254" doc:"User email"`
	Password string `json:"password" validate:"required,max=1024" doc:"User password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// LoginResponse contains the issued token and authenticated user.
type LoginResponse struct {
	User        UserResponse `json:"user" doc:"Authenticated user"`
	AccessToken string       `json:"access_token" doc:"PASETO access token"`
	ExpiresAt   time.Time    `json:"expires_at" doc:"Token expiry time"`
}

// LoginOutput wraps the login response for Huma.
type LoginOutput struct {
	Body LoginResponse
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*UserOutput, error) {
	// Self-registration always creates a member; librarians are
	// created by other librarians through the users API.
	user, err := s.services.Membership.RegisterUser(ctx, service.RegisterUserRequest{
		Name:     input.Body.Name,
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: userResponseFrom(user)}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.LoginRequest{
		Email:      input.Body.Email,
		Password:   input.Body.Password,
		ClientAddr: clientAddr(ctx),
	})
	if err != nil {
		return nil, err
	}

	return &LoginOutput{
		Body: LoginResponse{
			User:        userResponseFrom(resp.User),
			AccessToken: resp.AccessToken,
			ExpiresAt:   resp.ExpiresAt,
		},
	}, nil
}
