package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook. Category name is joined in for
// list views.
const bookColumns = `b.id, b.title, b.author, b.publisher, b.isbn, b.category_id,
	c.name, b.total_copies, b.available_copies, b.created_at, b.updated_at`

const bookFrom = ` FROM books b LEFT JOIN categories c ON c.id = b.category_id`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book
	var (
		publisher    sql.NullString
		isbn         sql.NullString
		categoryID   sql.NullString
		categoryName sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&publisher,
		&isbn,
		&categoryID,
		&categoryName,
		&b.TotalCopies,
		&b.AvailableCopies,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if publisher.Valid {
		b.Publisher = publisher.String
	}
	if isbn.Valid {
		b.ISBN = isbn.String
	}
	if categoryID.Valid {
		b.CategoryID = categoryID.String
	}
	if categoryName.Valid {
		b.CategoryName = categoryName.String
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBook inserts a new book with its copy counts.
func (s *Store) CreateBook(ctx context.Context, b *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, publisher, isbn, category_id,
			total_copies, available_copies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Author, nullString(b.Publisher), nullString(b.ISBN),
		nullString(b.CategoryID), b.TotalCopies, b.AvailableCopies,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "books.isbn") {
			return store.ErrISBNExists
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook returns a book by ID.
func (s *Store) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+bookFrom+` WHERE b.id = ?`, bookID)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// BookFilter narrows ListBooks results.
type BookFilter struct {
	// Query matches title, author, or ISBN (substring, case-insensitive).
	Query string
	// CategoryID restricts to one category.
	CategoryID string
	// AvailableOnly keeps only books with shelf copies.
	AvailableOnly bool
}

// ListBooks returns books matching the filter, ordered by title, with
// the total match count for pagination.
func (s *Store) ListBooks(ctx context.Context, filter BookFilter, page *store.Page) ([]*domain.Book, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if filter.Query != "" {
		where += ` AND (b.title LIKE ? COLLATE NOCASE OR b.author LIKE ? COLLATE NOCASE OR b.isbn LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like, like)
	}
	if filter.CategoryID != "" {
		where += ` AND b.category_id = ?`
		args = append(args, filter.CategoryID)
	}
	if filter.AvailableOnly {
		where += ` AND b.available_copies > 0`
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+bookFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	query := `SELECT ` + bookColumns + bookFrom + where + ` ORDER BY b.title, b.id`
	if page != nil {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit(), page.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, total, rows.Err()
}

// UpdateBook persists the book's descriptive fields. Copy counts are
// changed only through AdjustTotalCopies and the circulation operations.
func (s *Store) UpdateBook(ctx context.Context, b *domain.Book) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET title = ?, author = ?, publisher = ?, isbn = ?, category_id = ?, updated_at = ?
		WHERE id = ?`,
		b.Title, b.Author, nullString(b.Publisher), nullString(b.ISBN),
		nullString(b.CategoryID), formatTime(b.UpdatedAt), b.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "books.isbn") {
			return store.ErrISBNExists
		}
		return fmt.Errorf("update book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if n == 0 {
		return store.ErrBookNotFound
	}
	return nil
}

// AdjustTotalCopies changes how many copies the library owns and moves
// available_copies by the same delta. Shrinking below the number of
// copies currently out clamps available to zero rather than going
// negative; the count self-corrects as those copies come back.
func (s *Store) AdjustTotalCopies(ctx context.Context, bookID string, newTotal int, now time.Time) (*domain.Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin adjust copies: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+bookFrom+` WHERE b.id = ?`, bookID)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	delta := newTotal - b.TotalCopies
	available := b.AvailableCopies + delta
	if available < 0 {
		available = 0
	}
	if available > newTotal {
		available = newTotal
	}

	b.TotalCopies = newTotal
	b.AvailableCopies = available
	b.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		UPDATE books SET total_copies = ?, available_copies = ?, updated_at = ? WHERE id = ?`,
		b.TotalCopies, b.AvailableCopies, formatTime(b.UpdatedAt), b.ID,
	); err != nil {
		return nil, fmt.Errorf("adjust copies: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit adjust copies: %w", err)
	}
	return b, nil
}

// DeleteBook removes a book. Fails if any copy is still out on loan;
// historical loans and holds go with the book via foreign key cascade.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete book: %w", err)
	}
	defer tx.Rollback()

	var activeLoans int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE book_id = ? AND status IN ('issued', 'overdue')`,
		bookID).Scan(&activeLoans); err != nil {
		return fmt.Errorf("count active loans: %w", err)
	}
	if activeLoans > 0 {
		return store.ErrBookHasActiveLoans
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n == 0 {
		return store.ErrBookNotFound
	}

	return tx.Commit()
}
