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

const reservationColumns = `r.id, r.user_id, r.book_id, r.status, r.created_at, r.updated_at, b.title, u.name`

const reservationFrom = ` FROM reservations r
	JOIN books b ON b.id = r.book_id
	JOIN users u ON u.id = r.user_id`

func scanReservation(scanner interface{ Scan(dest ...any) error }) (*domain.Reservation, error) {
	var r domain.Reservation
	var (
		status    string
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&r.ID,
		&r.UserID,
		&r.BookID,
		&status,
		&createdAt,
		&updatedAt,
		&r.BookTitle,
		&r.UserName,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.ReservationStatus(status)
	r.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	r.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReservation places a hold in one transaction. The checks run
// in order: the book must exist, it must have shelf copies at all, the
// user must not already hold the book on loan, must not already have a
// pending hold for it, and a copy must remain once existing pending
// holds are counted. Check-then-insert runs inside the transaction so
// racing reservations cannot both take the last copy.
func (s *Store) CreateReservation(ctx context.Context, r *domain.Reservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback()

	var available int
	err = tx.QueryRowContext(ctx,
		`SELECT available_copies FROM books WHERE id = ?`, r.BookID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrBookNotFound
	}
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}
	if available <= 0 {
		return store.ErrNoCopies
	}

	var activeLoans int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans
		WHERE user_id = ? AND book_id = ? AND status IN ('issued', 'overdue')`,
		r.UserID, r.BookID).Scan(&activeLoans); err != nil {
		return fmt.Errorf("check active loan: %w", err)
	}
	if activeLoans > 0 {
		return store.ErrDuplicateLoan
	}

	var ownPending int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE user_id = ? AND book_id = ? AND status = 'pending'`,
		r.UserID, r.BookID).Scan(&ownPending); err != nil {
		return fmt.Errorf("check duplicate reservation: %w", err)
	}
	if ownPending > 0 {
		return store.ErrDuplicateReservation
	}

	var pending int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations WHERE book_id = ? AND status = 'pending'`,
		r.BookID).Scan(&pending); err != nil {
		return fmt.Errorf("count pending holds: %w", err)
	}
	if available-pending <= 0 {
		return store.ErrNoReserveCapacity
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, user_id, book_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.BookID, string(r.Status),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return store.ErrDuplicateReservation
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	return tx.Commit()
}

// GetReservation returns a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+reservationFrom+` WHERE r.id = ?`, reservationID)

	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

// ReservationFilter narrows ListReservations results.
type ReservationFilter struct {
	UserID string
	BookID string
	Status domain.ReservationStatus
}

// ListReservations returns reservations matching the filter, newest first.
func (s *Store) ListReservations(ctx context.Context, filter ReservationFilter, page *store.Page) ([]*domain.Reservation, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		where += ` AND r.user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.BookID != "" {
		where += ` AND r.book_id = ?`
		args = append(args, filter.BookID)
	}
	if filter.Status != "" {
		where += ` AND r.status = ?`
		args = append(args, string(filter.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+reservationFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	query := `SELECT ` + reservationColumns + reservationFrom + where + ` ORDER BY r.created_at DESC, r.id`
	if page != nil {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit(), page.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, total, rows.Err()
}

// CancelReservation releases a pending hold. When requesterID is
// non-empty the hold must belong to that user; a mismatch reads the
// same as a missing reservation so one borrower cannot probe
// another's holds. Only pending holds can be cancelled.
func (s *Store) CancelReservation(ctx context.Context, reservationID, requesterID string, now time.Time) error {
	query := `UPDATE reservations SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status = 'pending'`
	args := []any{formatTime(now), reservationID}
	if requesterID != "" {
		query += ` AND user_id = ?`
		args = append(args, requesterID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if n == 0 {
		return store.ErrReservationNotFound
	}
	return nil
}

// FulfillReservation marks a pending hold as picked up. It does not
// issue the book; callers issue separately and the two operations are
// deliberately not linked.
func (s *Store) FulfillReservation(ctx context.Context, reservationID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET status = 'fulfilled', updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		formatTime(now), reservationID)
	if err != nil {
		return fmt.Errorf("fulfill reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fulfill reservation: %w", err)
	}
	if n == 0 {
		return store.ErrReservationNotFound
	}
	return nil
}

// PendingHoldCount returns the number of pending holds for a book.
func (s *Store) PendingHoldCount(ctx context.Context, bookID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE book_id = ? AND status = 'pending'`,
		bookID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending holds: %w", err)
	}
	return count, nil
}

// PendingHoldCounts returns pending hold counts keyed by book ID for
// every book that has at least one. Books absent from the map have none.
func (s *Store) PendingHoldCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT book_id, COUNT(*) FROM reservations
		WHERE status = 'pending' GROUP BY book_id`)
	if err != nil {
		return nil, fmt.Errorf("count pending holds: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var bookID string
		var count int
		if err := rows.Scan(&bookID, &count); err != nil {
			return nil, fmt.Errorf("scan hold count: %w", err)
		}
		counts[bookID] = count
	}
	return counts, rows.Err()
}

// CountPendingReservationsForUser returns the user's live hold count.
func (s *Store) CountPendingReservationsForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = ? AND status = 'pending'`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user holds: %w", err)
	}
	return count, nil
}
