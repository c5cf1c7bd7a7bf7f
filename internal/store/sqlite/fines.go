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

const fineColumns = `id, user_id, loan_id, amount, reason, status, created_at, paid_at`

func scanFine(scanner interface{ Scan(dest ...any) error }) (*domain.Fine, error) {
	var f domain.Fine
	var (
		loanID    sql.NullString
		status    string
		createdAt string
		paidAt    sql.NullString
	)

	err := scanner.Scan(
		&f.ID,
		&f.UserID,
		&loanID,
		&f.Amount,
		&f.Reason,
		&status,
		&createdAt,
		&paidAt,
	)
	if err != nil {
		return nil, err
	}

	if loanID.Valid {
		f.LoanID = loanID.String
	}
	f.Status = domain.FineStatus(status)

	f.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	f.PaidAt, err = parseNullableTime(paidAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFine appends an entry to the manual fines ledger.
func (s *Store) CreateFine(ctx context.Context, f *domain.Fine) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fines (id, user_id, loan_id, amount, reason, status, created_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, nullString(f.LoanID), f.Amount, f.Reason, string(f.Status),
		formatTime(f.CreatedAt), nullTimeString(f.PaidAt),
	)
	if err != nil {
		return fmt.Errorf("insert fine: %w", err)
	}
	return nil
}

// GetFine returns a ledger entry by ID.
func (s *Store) GetFine(ctx context.Context, fineID string) (*domain.Fine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fineColumns+` FROM fines WHERE id = ?`, fineID)

	f, err := scanFine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrFineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fine: %w", err)
	}
	return f, nil
}

// ListFines returns ledger entries, newest first, optionally narrowed
// to one user and/or one status.
func (s *Store) ListFines(ctx context.Context, userID string, status domain.FineStatus) ([]*domain.Fine, error) {
	query := `SELECT ` + fineColumns + ` FROM fines WHERE 1=1`
	var args []any

	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	defer rows.Close()

	var fines []*domain.Fine
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fine: %w", err)
		}
		fines = append(fines, f)
	}
	return fines, rows.Err()
}

// MarkFinePaid settles a pending ledger entry. Paying an entry twice
// fails with ErrInvalidState.
func (s *Store) MarkFinePaid(ctx context.Context, fineID string, paidAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fines SET status = 'paid', paid_at = ? WHERE id = ? AND status = 'pending'`,
		formatTime(paidAt), fineID)
	if err != nil {
		return fmt.Errorf("mark fine paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark fine paid: %w", err)
	}
	if n == 0 {
		// Distinguish a missing entry from one already settled.
		var status string
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM fines WHERE id = ?`, fineID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrFineNotFound
		}
		if err != nil {
			return fmt.Errorf("check fine: %w", err)
		}
		return store.ErrInvalidState.WithMessage("fine already paid")
	}
	return nil
}

// SumPendingFines returns the total of unsettled ledger entries,
// optionally for a single user (empty userID means everyone).
func (s *Store) SumPendingFines(ctx context.Context, userID string) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM fines WHERE status = 'pending'`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum pending fines: %w", err)
	}
	return total, nil
}
