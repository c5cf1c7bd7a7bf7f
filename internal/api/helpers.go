package api

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/store"
)

// authenticateRequest validates the Authorization header and returns
// the authenticated user.
func (s *Server) authenticateRequest(ctx context.Context, authHeader string) (*domain.User, error) {
	if authHeader == "" {
		return nil, huma.Error401Unauthorized("Missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, huma.Error401Unauthorized("Invalid authorization header format")
	}

	user, err := s.services.Auth.VerifyToken(ctx, parts[1])
	if err != nil {
		return nil, err
	}

	return user, nil
}

// requireLibrarian validates the token and requires the librarian role.
func (s *Server) requireLibrarian(ctx context.Context, authHeader string) (*domain.User, error) {
	user, err := s.authenticateRequest(ctx, authHeader)
	if err != nil {
		return nil, err
	}
	if !user.IsLibrarian() {
		return nil, domainerrors.Forbidden("librarian access required")
	}
	return user, nil
}

// requireSelfOrLibrarian allows members to act on their own resources
// and librarians to act on anyone's.
func (s *Server) requireSelfOrLibrarian(ctx context.Context, authHeader, userID string) (*domain.User, error) {
	user, err := s.authenticateRequest(ctx, authHeader)
	if err != nil {
		return nil, err
	}
	if user.ID != userID && !user.IsLibrarian() {
		return nil, domainerrors.Forbidden("access denied")
	}
	return user, nil
}

// pageFromQuery builds store pagination from query parameters.
func pageFromQuery(page, perPage int) *store.Page {
	return store.NewPage(page, perPage)
}

// PaginationMeta describes a page of results in API responses.
type PaginationMeta struct {
	Page    int  `json:"page" doc:"Current page number (1-based)"`
	PerPage int  `json:"per_page" doc:"Items per page"`
	Total   int  `json:"total" doc:"Total matching items"`
	HasMore bool `json:"has_more" doc:"Whether more pages exist"`
}

func metaFrom[T any](p *store.Paginated[T]) PaginationMeta {
	return PaginationMeta{
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   p.Total,
		HasMore: p.HasMore,
	}
}
