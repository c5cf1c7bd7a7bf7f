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

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, name, email, password_hash, role, active, created_at, updated_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User
	var (
		role      string
		active    int
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	u.Active = active != 0

	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), boolToInt(u.Active),
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return store.ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, userID)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns users ordered by name, optionally filtered by role.
func (s *Store) ListUsers(ctx context.Context, role domain.Role, page *store.Page) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY name, id`
	if page != nil {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit(), page.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser persists mutable user fields.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.Email, u.PasswordHash, string(u.Role), boolToInt(u.Active),
		formatTime(u.UpdatedAt), u.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return store.ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// CountUsersByRole returns the number of users with the given role.
func (s *Store) CountUsersByRole(ctx context.Context, role domain.Role) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CountUsersCreatedSince returns how many users with the given role
// registered at or after the cutoff.
func (s *Store) CountUsersCreatedSince(ctx context.Context, role domain.Role, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ? AND created_at >= ?`,
		string(role), formatTime(cutoff)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count new users: %w", err)
	}
	return count, nil
}

// DeleteUserResult reports the cascade side effects of removing a user.
type DeleteUserResult struct {
	BooksReturned         int
	ReservationsCancelled int
}

// DeleteUser removes a user and unwinds their open circulation state in
// one transaction: every active loan is returned (restoring the book's
// shelf count and settling its fine as of now) and every pending hold
// is cancelled. Historical rows then go with the user via foreign key
// cascade. The result reports what was unwound.
func (s *Store) DeleteUser(ctx context.Context, userID string, now time.Time, fineRate float64) (*DeleteUserResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists == 0 {
		return nil, store.ErrUserNotFound
	}

	result := &DeleteUserResult{}

	// Return every active loan so shelf counts stay truthful after the
	// borrower is gone.
	rows, err := tx.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE user_id = ? AND status IN ('issued', 'overdue')`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	var active []*domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		active = append(active, l)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}

	for _, l := range active {
		if err := closeLoanTx(ctx, tx, l, now, fineRate); err != nil {
			return nil, err
		}
		result.BooksReturned++
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE reservations SET status = 'cancelled', updated_at = ?
		WHERE user_id = ? AND status = 'pending'`,
		formatTime(now), userID)
	if err != nil {
		return nil, fmt.Errorf("cancel reservations: %w", err)
	}
	cancelled, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("cancel reservations: %w", err)
	}
	result.ReservationsCancelled = int(cancelled)

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete user: %w", err)
	}

	s.logger.Info("user deleted",
		"user_id", userID,
		"books_returned", result.BooksReturned,
		"reservations_cancelled", result.ReservationsCancelled)

	return result, nil
}
