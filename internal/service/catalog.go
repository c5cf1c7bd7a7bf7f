package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/id"
	"github.com/pustakapp/pustak-server/internal/search"
	"github.com/pustakapp/pustak-server/internal/store"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

// CatalogService manages books and categories.
type CatalogService struct {
	store  *sqlite.Store
	index  *search.Index
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
// The search index is optional; without it SearchBooks falls back to
// database matching.
func NewCatalogService(store *sqlite.Store, index *search.Index, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:  store,
		index:  index,
		logger: logger,
	}
}

// AddBookRequest contains the data for a new catalog entry.
type AddBookRequest struct {
	Title       string `json:"title" validate:"required,max=500"`
	Author      string `json:"author" validate:"required,max=300"`
	Publisher   string `json:"publisher" validate:"max=300"`
	ISBN        string `json:"isbn" validate:"omitempty,isbn"`
	CategoryID  string `json:"category_id"`
	TotalCopies int    `json:"total_copies" validate:"required,min=1"`
}

// UpdateBookRequest carries partial updates to a book's descriptive fields.
// Copy counts are adjusted separately via AdjustCopies.
type UpdateBookRequest struct {
	Title      *string `json:"title" validate:"omitempty,max=500"`
	Author     *string `json:"author" validate:"omitempty,max=300"`
	Publisher  *string `json:"publisher" validate:"omitempty,max=300"`
	ISBN       *string `json:"isbn" validate:"omitempty,isbn"`
	CategoryID *string `json:"category_id"`
}

// BookAvailability reports how many copies a member can actually act on:
// pending holds claim shelf copies ahead of walk-ins.
type BookAvailability struct {
	Book         *domain.Book `json:"book"`
	PendingHolds int          `json:"pending_holds"`
	Effective    int          `json:"effective_availability"`
}

// AddBook creates a catalog entry and indexes it for search.
func (s *CatalogService) AddBook(ctx context.Context, req AddBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	if req.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, req.CategoryID); err != nil {
			if errors.Is(err, store.ErrCategoryNotFound) {
				return nil, domainerrors.NotFound("category not found")
			}
			return nil, fmt.Errorf("check category: %w", err)
		}
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	now := time.Now().UTC()
	book := &domain.Book{
		ID:              bookID,
		Title:           req.Title,
		Author:          req.Author,
		Publisher:       req.Publisher,
		ISBN:            req.ISBN,
		CategoryID:      req.CategoryID,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrISBNExists) {
			return nil, domainerrors.AlreadyExists("a book with this ISBN already exists")
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	// Re-read to pick up the denormalized category name.
	book, err = s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("reload book: %w", err)
	}

	s.indexBook(book)
	s.logger.Info("book added", "book_id", bookID, "title", book.Title, "copies", book.TotalCopies)

	return book, nil
}

// GetBook returns a single book.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// GetAvailability returns a book along with its hold-adjusted availability.
func (s *CatalogService) GetAvailability(ctx context.Context, bookID string) (*BookAvailability, error) {
	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	holds, err := s.store.PendingHoldCount(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("count holds: %w", err)
	}

	return &BookAvailability{
		Book:         book,
		PendingHolds: holds,
		Effective:    book.EffectiveAvailability(holds),
	}, nil
}

// ListBooks returns a page of books matching the filter.
func (s *CatalogService) ListBooks(ctx context.Context, filter sqlite.BookFilter, page *store.Page) (*store.Paginated[*domain.Book], error) {
	if page == nil {
		page = store.NewPage(1, 20)
	}
	page.Validate()

	books, total, err := s.store.ListBooks(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	return store.NewPaginated(books, page, total), nil
}

// SearchBooks runs a full-text search over the catalog. Results come
// from the Bleve index when present, hydrated from the database so copy
// counts are current.
func (s *CatalogService) SearchBooks(ctx context.Context, params search.Params) ([]*domain.Book, error) {
	if s.index == nil {
		books, _, err := s.store.ListBooks(ctx, sqlite.BookFilter{
			Query:         params.Query,
			CategoryID:    params.CategoryID,
			AvailableOnly: params.AvailableOnly,
		}, store.NewPage(1, params.Limit))
		if err != nil {
			return nil, fmt.Errorf("search books: %w", err)
		}
		return books, nil
	}

	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	books := make([]*domain.Book, 0, len(result.Hits))
	for _, hit := range result.Hits {
		book, err := s.store.GetBook(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, store.ErrBookNotFound) {
				// Index is momentarily ahead of a delete; skip.
				continue
			}
			return nil, fmt.Errorf("hydrate search hit: %w", err)
		}
		books = append(books, book)
	}
	return books, nil
}

// UpdateBook applies partial updates to a book's descriptive fields.
func (s *CatalogService) UpdateBook(ctx context.Context, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.Publisher != nil {
		book.Publisher = *req.Publisher
	}
	if req.ISBN != nil {
		book.ISBN = *req.ISBN
	}
	if req.CategoryID != nil {
		if *req.CategoryID != "" {
			if _, err := s.store.GetCategory(ctx, *req.CategoryID); err != nil {
				if errors.Is(err, store.ErrCategoryNotFound) {
					return nil, domainerrors.NotFound("category not found")
				}
				return nil, fmt.Errorf("check category: %w", err)
			}
		}
		book.CategoryID = *req.CategoryID
	}

	book.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrISBNExists) {
			return nil, domainerrors.AlreadyExists("a book with this ISBN already exists")
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	book, err = s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("reload book: %w", err)
	}

	s.indexBook(book)
	s.logger.Info("book updated", "book_id", bookID)

	return book, nil
}

// AdjustCopies changes a book's total holdings. Available copies move by
// the same delta so copies on loan stay accounted for; a shrink never
// strands the count below zero or above the new total.
func (s *CatalogService) AdjustCopies(ctx context.Context, bookID string, newTotal int) (*domain.Book, error) {
	if newTotal < 0 {
		return nil, domainerrors.Validation("total_copies cannot be negative")
	}

	book, err := s.store.AdjustTotalCopies(ctx, bookID, newTotal, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("adjust copies: %w", err)
	}

	s.indexBook(book)
	s.logger.Info("book copies adjusted", "book_id", bookID, "total", book.TotalCopies, "available", book.AvailableCopies)

	return book, nil
}

// DeleteBook removes a book from the catalog. Books with copies still
// out on loan cannot be deleted.
func (s *CatalogService) DeleteBook(ctx context.Context, bookID string) error {
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		switch {
		case errors.Is(err, store.ErrBookNotFound):
			return domainerrors.NotFound("book not found")
		case errors.Is(err, store.ErrBookHasActiveLoans):
			return domainerrors.Conflict("book has copies out on loan")
		}
		return fmt.Errorf("delete book: %w", err)
	}

	if s.index != nil {
		if err := s.index.DeleteDocument(bookID); err != nil {
			s.logger.Warn("failed to remove book from search index", "book_id", bookID, "error", err)
		}
	}
	s.logger.Info("book deleted", "book_id", bookID)

	return nil
}

// RebuildSearchIndex reindexes the whole catalog. Called at startup so
// the index reflects any changes made while it was stale.
func (s *CatalogService) RebuildSearchIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}

	books, _, err := s.store.ListBooks(ctx, sqlite.BookFilter{}, nil)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	docs := make([]*search.BookDocument, 0, len(books))
	for _, b := range books {
		docs = append(docs, search.DocumentFromBook(b))
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		return fmt.Errorf("index catalog: %w", err)
	}

	s.logger.Info("search index rebuilt", "books", len(docs))
	return nil
}

// SearchDocumentCount reports how many books the search index holds.
// ok is false when the service runs without an index.
func (s *CatalogService) SearchDocumentCount() (count uint64, ok bool, err error) {
	if s.index == nil {
		return 0, false, nil
	}
	count, err = s.index.DocumentCount()
	return count, true, err
}

// indexBook updates the search index, logging rather than failing the
// catalog operation when indexing breaks.
func (s *CatalogService) indexBook(book *domain.Book) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexDocument(search.DocumentFromBook(book)); err != nil {
		s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
	}
}

// CreateCategoryRequest contains the data for a new category.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
}

// CreateCategory adds a new book category.
func (s *CatalogService) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*domain.Category, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	categoryID, err := id.Generate(id.PrefixCategory)
	if err != nil {
		return nil, fmt.Errorf("generate category ID: %w", err)
	}

	category := &domain.Category{
		ID:          categoryID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, store.ErrCategoryExists) {
			return nil, domainerrors.AlreadyExists("a category with this name already exists")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.Info("category created", "category_id", categoryID, "name", category.Name)
	return category, nil
}

// ListCategories returns all categories ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// UpdateCategory renames a category or changes its description.
func (s *CatalogService) UpdateCategory(ctx context.Context, categoryID string, req CreateCategoryRequest) (*domain.Category, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return nil, domainerrors.NotFound("category not found")
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	category.Name = req.Name
	category.Description = req.Description
	if err := s.store.UpdateCategory(ctx, category); err != nil {
		if errors.Is(err, store.ErrCategoryExists) {
			return nil, domainerrors.AlreadyExists("a category with this name already exists")
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	return category, nil
}

// DeleteCategory removes an empty category. Categories still holding
// books cannot be deleted.
func (s *CatalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	if err := s.store.DeleteCategory(ctx, categoryID); err != nil {
		switch {
		case errors.Is(err, store.ErrCategoryNotFound):
			return domainerrors.NotFound("category not found")
		case errors.Is(err, store.ErrCategoryHasBooks):
			return domainerrors.Conflict("category still has books assigned")
		}
		return fmt.Errorf("delete category: %w", err)
	}

	s.logger.Info("category deleted", "category_id", categoryID)
	return nil
}
