package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/search"
	"github.com/pustakapp/pustak-server/internal/service"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns catalog entries, optionally filtered by text, category, or availability",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "createBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books",
		Summary:     "Add book",
		Description: "Adds a title to the catalog",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Full-text search across titles, authors, and ISBNs",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Updates a book's descriptive fields",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Removes a book with no copies out on loan",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookAvailability",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/availability",
		Summary:     "Get book availability",
		Description: "Returns shelf copies net of pending holds",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBookAvailability)

	huma.Register(s.api, huma.Operation{
		OperationID: "adjustBookCopies",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/copies",
		Summary:     "Adjust copies",
		Description: "Sets the total copy count, keeping copies on loan intact",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdjustBookCopies)
}

// === DTOs ===

// BookResponse contains book data in API responses.
type BookResponse struct {
	ID              string    `json:"id" doc:"Book ID"`
	Title           string    `json:"title" doc:"Title"`
	Author          string    `json:"author" doc:"Author"`
	Publisher       string    `json:"publisher,omitempty" doc:"Publisher"`
	ISBN            string    `json:"isbn,omitempty" doc:"ISBN"`
	CategoryID      string    `json:"category_id,omitempty" doc:"Category ID"`
	CategoryName    string    `json:"category_name,omitempty" doc:"Category name"`
	TotalCopies     int       `json:"total_copies" doc:"Copies the library owns"`
	AvailableCopies int       `json:"available_copies" doc:"Copies on the shelf"`
	CreatedAt       time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt       time.Time `json:"updated_at" doc:"Last update time"`
}

func bookResponseFrom(b *domain.Book) BookResponse {
	return BookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		ISBN:            b.ISBN,
		CategoryID:      b.CategoryID,
		CategoryName:    b.CategoryName,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// BookOutput wraps a single book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" doc:"Substring match on title, author, or ISBN"`
	CategoryID    string `query:"category_id" doc:"Filter by category"`
	Available     bool   `query:"available" doc:"Only books with shelf copies"`
	Page          int    `query:"page" doc:"Page number (1-based)"`
	PerPage       int    `query:"per_page" doc:"Items per page"`
}

// ListBooksResponse contains one page of books.
type ListBooksResponse struct {
	Books []BookResponse `json:"books" doc:"List of books"`
	Meta  PaginationMeta `json:"meta" doc:"Pagination metadata"`
}

// ListBooksOutput wraps the list books response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// CreateBookRequest is the request body for adding a book.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=500" doc:"Title"`
	Author      string `json:"author" validate:"required,max=300" doc:"Author"`
	Publisher   string `json:"publisher,omitempty" validate:"omitempty,max=300" doc:"Publisher"`
	ISBN        string `json:"isbn,omitempty" validate:"omitempty,isbn" doc:"ISBN-10 or ISBN-13"`
	CategoryID  string `json:"category_id,omitempty" doc:"Category ID"`
	TotalCopies int    `json:"total_copies" validate:"required,min=1" doc:"Number of copies"`
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateBookRequest
}

// SearchBooksInput contains parameters for full-text search.
type SearchBooksInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" doc:"Search terms"`
	CategoryID    string `query:"category_id" doc:"Filter by category"`
	Available     bool   `query:"available" doc:"Only books with shelf copies"`
	Limit         int    `query:"limit" doc:"Maximum results"`
	Offset        int    `query:"offset" doc:"Results to skip"`
}

// SearchBooksResponse contains search results.
type SearchBooksResponse struct {
	Query string         `json:"query" doc:"Search terms as executed"`
	Books []BookResponse `json:"books" doc:"Matching books, best first"`
	Total int            `json:"total" doc:"Number of results returned"`
}

// SearchBooksOutput wraps the search response for Huma.
type SearchBooksOutput struct {
	Body SearchBooksResponse
}

// GetBookInput contains parameters for getting a book.
type GetBookInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Book ID"`
}

// UpdateBookRequest is the request body for updating a book.
type UpdateBookRequest struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,max=500" doc:"Title"`
	Author     *string `json:"author,omitempty" validate:"omitempty,max=300" doc:"Author"`
	Publisher  *string `json:"publisher,omitempty" validate:"omitempty,max=300" doc:"Publisher"`
	ISBN       *string `json:"isbn,omitempty" validate:"omitempty,isbn" doc:"ISBN-10 or ISBN-13"`
	CategoryID *string `json:"category_id,omitempty" doc:"Category ID, empty string clears it"`
}

// UpdateBookInput wraps the update book request for Huma.
type UpdateBookInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Book ID"`
	Body          UpdateBookRequest
}

// DeleteBookInput contains parameters for deleting a book.
type DeleteBookInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Book ID"`
}

// AvailabilityResponse reports copies a member can act on right now.
type AvailabilityResponse struct {
	Book         BookResponse `json:"book" doc:"The book"`
	PendingHolds int          `json:"pending_holds" doc:"Holds claiming shelf copies"`
	Effective    int          `json:"effective_availability" doc:"Shelf copies not claimed by holds"`
}

// AvailabilityOutput wraps the availability response for Huma.
type AvailabilityOutput struct {
	Body AvailabilityResponse
}

// AdjustCopiesRequest is the request body for adjusting copy counts.
type AdjustCopiesRequest struct {
	TotalCopies int `json:"total_copies" validate:"min=0" doc:"New total copy count"`
}

// AdjustCopiesInput wraps the adjust copies request for Huma.
type AdjustCopiesInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Book ID"`
	Body          AdjustCopiesRequest
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	books, err := s.services.Catalog.ListBooks(ctx, sqlite.BookFilter{
		Query:         input.Query,
		CategoryID:    input.CategoryID,
		AvailableOnly: input.Available,
	}, pageFromQuery(input.Page, input.PerPage))
	if err != nil {
		return nil, err
	}

	resp := make([]BookResponse, len(books.Items))
	for i, b := range books.Items {
		resp[i] = bookResponseFrom(b)
	}

	return &ListBooksOutput{Body: ListBooksResponse{Books: resp, Meta: metaFrom(books)}}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	book, err := s.services.Catalog.AddBook(ctx, service.AddBookRequest{
		Title:       input.Body.Title,
		Author:      input.Body.Author,
		Publisher:   input.Body.Publisher,
		ISBN:        input.Body.ISBN,
		CategoryID:  input.Body.CategoryID,
		TotalCopies: input.Body.TotalCopies,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: bookResponseFrom(book)}, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	params := search.DefaultParams()
	params.Query = input.Query
	params.CategoryID = input.CategoryID
	params.AvailableOnly = input.Available
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Offset > 0 {
		params.Offset = input.Offset
	}

	books, err := s.services.Catalog.SearchBooks(ctx, params)
	if err != nil {
		return nil, err
	}

	resp := make([]BookResponse, len(books))
	for i, b := range books {
		resp[i] = bookResponseFrom(b)
	}

	return &SearchBooksOutput{
		Body: SearchBooksResponse{
			Query: input.Query,
			Books: resp,
			Total: len(resp),
		},
	}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	book, err := s.services.Catalog.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: bookResponseFrom(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	book, err := s.services.Catalog.UpdateBook(ctx, input.ID, service.UpdateBookRequest{
		Title:      input.Body.Title,
		Author:     input.Body.Author,
		Publisher:  input.Body.Publisher,
		ISBN:       input.Body.ISBN,
		CategoryID: input.Body.CategoryID,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: bookResponseFrom(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *DeleteBookInput) (*struct{}, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Catalog.DeleteBook(ctx, input.ID); err != nil {
		return nil, err
	}

	return &struct{}{}, nil
}

func (s *Server) handleGetBookAvailability(ctx context.Context, input *GetBookInput) (*AvailabilityOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	avail, err := s.services.Catalog.GetAvailability(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &AvailabilityOutput{
		Body: AvailabilityResponse{
			Book:         bookResponseFrom(avail.Book),
			PendingHolds: avail.PendingHolds,
			Effective:    avail.Effective,
		},
	}, nil
}

func (s *Server) handleAdjustBookCopies(ctx context.Context, input *AdjustCopiesInput) (*BookOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	book, err := s.services.Catalog.AdjustCopies(ctx, input.ID, input.Body.TotalCopies)
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: bookResponseFrom(book)}, nil
}
