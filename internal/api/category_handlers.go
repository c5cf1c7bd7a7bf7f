package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/service"
)

func (s *Server) registerCategoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories",
		Summary:     "List categories",
		Description: "Returns all catalog categories",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "createCategory",
		Method:      http.MethodPost,
		Path:        "/api/v1/categories",
		Summary:     "Create category",
		Description: "Creates a new catalog category",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCategory",
		Method:      http.MethodPatch,
		Path:        "/api/v1/categories/{id}",
		Summary:     "Update category",
		Description: "Renames a category or changes its description",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCategory",
		Method:      http.MethodDelete,
		Path:        "/api/v1/categories/{id}",
		Summary:     "Delete category",
		Description: "Deletes a category that has no books",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteCategory)
}

// === DTOs ===

// CategoryResponse contains category data in API responses.
type CategoryResponse struct {
	ID          string    `json:"id" doc:"Category ID"`
	Name        string    `json:"name" doc:"Category name"`
	Description string    `json:"description,omitempty" doc:"Category description"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
}

func categoryResponseFrom(c *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

// CategoryOutput wraps a single category response for Huma.
type CategoryOutput struct {
	Body CategoryResponse
}

// ListCategoriesInput contains parameters for listing categories.
type ListCategoriesInput struct {
	Authorization string `header:"Authorization"`
}

// ListCategoriesResponse contains a list of categories.
type ListCategoriesResponse struct {
	Categories []CategoryResponse `json:"categories" doc:"List of categories"`
}

// ListCategoriesOutput wraps the list categories response for Huma.
type ListCategoriesOutput struct {
	Body ListCategoriesResponse
}

// CategoryRequest is the request body for creating or updating a category.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=200" doc:"Category name"`
	Description string `json:"description,omitempty" validate:"omitempty,max=1000" doc:"Category description"`
}

// CreateCategoryInput wraps the create category request for Huma.
type CreateCategoryInput struct {
	Authorization string `header:"Authorization"`
	Body          CategoryRequest
}

// UpdateCategoryInput wraps the update category request for Huma.
type UpdateCategoryInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Category ID"`
	Body          CategoryRequest
}

// DeleteCategoryInput contains parameters for deleting a category.
type DeleteCategoryInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Category ID"`
}

// === Handlers ===

func (s *Server) handleListCategories(ctx context.Context, input *ListCategoriesInput) (*ListCategoriesOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	categories, err := s.services.Catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = categoryResponseFrom(c)
	}

	return &ListCategoriesOutput{Body: ListCategoriesResponse{Categories: resp}}, nil
}

func (s *Server) handleCreateCategory(ctx context.Context, input *CreateCategoryInput) (*CategoryOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	category, err := s.services.Catalog.CreateCategory(ctx, service.CreateCategoryRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
	})
	if err != nil {
		return nil, err
	}

	return &CategoryOutput{Body: categoryResponseFrom(category)}, nil
}

func (s *Server) handleUpdateCategory(ctx context.Context, input *UpdateCategoryInput) (*CategoryOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	category, err := s.services.Catalog.UpdateCategory(ctx, input.ID, service.CreateCategoryRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
	})
	if err != nil {
		return nil, err
	}

	return &CategoryOutput{Body: categoryResponseFrom(category)}, nil
}

func (s *Server) handleDeleteCategory(ctx context.Context, input *DeleteCategoryInput) (*struct{}, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Catalog.DeleteCategory(ctx, input.ID); err != nil {
		return nil, err
	}

	return &struct{}{}, nil
}
