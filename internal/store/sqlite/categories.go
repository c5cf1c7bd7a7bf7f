package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/store"
)

const categoryColumns = `id, name, description, created_at`

func scanCategory(scanner interface{ Scan(dest ...any) error }) (*domain.Category, error) {
	var c domain.Category
	var (
		description sql.NullString
		createdAt   string
	)

	err := scanner.Scan(&c.ID, &c.Name, &description, &createdAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		c.Description = description.String
	}
	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCategory inserts a new category.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, nullString(c.Description), formatTime(c.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "categories.name") {
			return store.ErrCategoryExists
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetCategory returns a category by ID.
func (s *Store) GetCategory(ctx context.Context, categoryID string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, categoryID)

	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory persists category fields.
func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, description = ? WHERE id = ?`,
		c.Name, nullString(c.Description), c.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "categories.name") {
			return store.ErrCategoryExists
		}
		return fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n == 0 {
		return store.ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory removes a category. Fails if any book still references it.
func (s *Store) DeleteCategory(ctx context.Context, categoryID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	var bookCount int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE category_id = ?`, categoryID).Scan(&bookCount); err != nil {
		return fmt.Errorf("count category books: %w", err)
	}
	if bookCount > 0 {
		return store.ErrCategoryHasBooks
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, categoryID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return store.ErrCategoryNotFound
	}

	return tx.Commit()
}
