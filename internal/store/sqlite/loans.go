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

// loanColumns is the ordered list of columns selected in loan queries.
// Must match the scan order in scanLoan.
const loanColumns = `id, user_id, book_id, issue_date, due_date, return_date,
	fine_amount, status, created_at, updated_at`

// loanListColumns joins in book title and user name for list views.
const loanListColumns = `l.id, l.user_id, l.book_id, l.issue_date, l.due_date, l.return_date,
	l.fine_amount, l.status, l.created_at, l.updated_at, b.title, u.name`

const loanListFrom = ` FROM loans l
	JOIN books b ON b.id = l.book_id
	JOIN users u ON u.id = l.user_id`

// scanLoan scans a sql.Row (or sql.Rows via its Scan method) into a domain.Loan.
func scanLoan(scanner interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var l domain.Loan
	var (
		issueDate  string
		dueDate    string
		returnDate sql.NullString
		status     string
		createdAt  string
		updatedAt  string
	)

	err := scanner.Scan(
		&l.ID,
		&l.UserID,
		&l.BookID,
		&issueDate,
		&dueDate,
		&returnDate,
		&l.FineAmount,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	return finishLoanScan(&l, issueDate, dueDate, returnDate, status, createdAt, updatedAt)
}

// scanLoanListRow scans the joined list-view row.
func scanLoanListRow(scanner interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var l domain.Loan
	var (
		issueDate  string
		dueDate    string
		returnDate sql.NullString
		status     string
		createdAt  string
		updatedAt  string
	)

	err := scanner.Scan(
		&l.ID,
		&l.UserID,
		&l.BookID,
		&issueDate,
		&dueDate,
		&returnDate,
		&l.FineAmount,
		&status,
		&createdAt,
		&updatedAt,
		&l.BookTitle,
		&l.UserName,
	)
	if err != nil {
		return nil, err
	}

	return finishLoanScan(&l, issueDate, dueDate, returnDate, status, createdAt, updatedAt)
}

func finishLoanScan(l *domain.Loan, issueDate, dueDate string, returnDate sql.NullString, status, createdAt, updatedAt string) (*domain.Loan, error) {
	var err error
	l.Status = domain.LoanStatus(status)

	l.IssueDate, err = parseTime(issueDate)
	if err != nil {
		return nil, err
	}
	l.DueDate, err = parseTime(dueDate)
	if err != nil {
		return nil, err
	}
	l.ReturnDate, err = parseNullableTime(returnDate)
	if err != nil {
		return nil, err
	}
	l.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// CreateLoan issues a book: one transaction that verifies the book has
// a shelf copy, claims it, rejects a second active loan for the same
// (user, book) pair, and records the loan. Any failure rolls the whole
// thing back; there is no state where the loan exists but the copy
// count has not moved.
func (s *Store) CreateLoan(ctx context.Context, l *domain.Loan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issue: %w", err)
	}
	defer tx.Rollback()

	var available int
	err = tx.QueryRowContext(ctx,
		`SELECT available_copies FROM books WHERE id = ?`, l.BookID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrBookNotFound
	}
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}
	if available <= 0 {
		return store.ErrNoCopies
	}

	var activeCount int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans
		WHERE user_id = ? AND book_id = ? AND status IN ('issued', 'overdue')`,
		l.UserID, l.BookID).Scan(&activeCount); err != nil {
		return fmt.Errorf("check duplicate loan: %w", err)
	}
	if activeCount > 0 {
		return store.ErrDuplicateLoan
	}

	// Conditional decrement so racing issues cannot drive the count
	// negative even outside this check.
	res, err := tx.ExecContext(ctx, `
		UPDATE books SET available_copies = available_copies - 1, updated_at = ?
		WHERE id = ? AND available_copies > 0`,
		formatTime(l.CreatedAt), l.BookID)
	if err != nil {
		return fmt.Errorf("claim copy: %w", err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim copy: %w", err)
	}
	if claimed == 0 {
		return store.ErrNoCopies
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loans (id, user_id, book_id, issue_date, due_date, return_date,
			fine_amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.BookID, formatTime(l.IssueDate), formatTime(l.DueDate),
		nullTimeString(l.ReturnDate), l.FineAmount, string(l.Status),
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if err != nil {
		// The partial unique index backstops the duplicate check.
		if isUniqueViolation(err, "") {
			return store.ErrDuplicateLoan
		}
		return fmt.Errorf("insert loan: %w", err)
	}

	return tx.Commit()
}

// GetLoan returns a loan by ID.
func (s *Store) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanListColumns+loanListFrom+` WHERE l.id = ?`, loanID)

	l, err := scanLoanListRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

// LoanFilter narrows ListLoans results.
type LoanFilter struct {
	UserID     string
	BookID     string
	Status     domain.LoanStatus
	ActiveOnly bool
}

// ListLoans returns loans matching the filter, newest first, with the
// total match count for pagination.
func (s *Store) ListLoans(ctx context.Context, filter LoanFilter, page *store.Page) ([]*domain.Loan, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		where += ` AND l.user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.BookID != "" {
		where += ` AND l.book_id = ?`
		args = append(args, filter.BookID)
	}
	if filter.Status != "" {
		where += ` AND l.status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ActiveOnly {
		where += ` AND l.status IN ('issued', 'overdue')`
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+loanListFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}

	query := `SELECT ` + loanListColumns + loanListFrom + where + ` ORDER BY l.issue_date DESC, l.id`
	if page != nil {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit(), page.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		l, err := scanLoanListRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, total, rows.Err()
}

// closeLoanTx settles a loan inside an existing transaction: sets the
// return date, freezes the fine against it, marks the loan returned,
// and puts the copy back on the shelf. The increment is capped at
// total_copies because AdjustTotalCopies may have shrunk the holding
// while this copy was out.
func closeLoanTx(ctx context.Context, tx *sql.Tx, l *domain.Loan, returnedAt time.Time, fineRate float64) error {
	fine := l.AccruedFine(returnedAt, fineRate)

	if _, err := tx.ExecContext(ctx, `
		UPDATE loans SET return_date = ?, fine_amount = ?, status = 'returned', updated_at = ?
		WHERE id = ?`,
		formatTime(returnedAt), fine, formatTime(returnedAt), l.ID,
	); err != nil {
		return fmt.Errorf("close loan: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE books SET available_copies = MIN(available_copies + 1, total_copies), updated_at = ?
		WHERE id = ?`,
		formatTime(returnedAt), l.BookID,
	); err != nil {
		return fmt.Errorf("restore copy: %w", err)
	}

	l.ReturnDate = &returnedAt
	l.FineAmount = fine
	l.Status = domain.LoanStatusReturned
	l.UpdatedAt = returnedAt
	return nil
}

// ReturnLoan closes a loan and restores the book's shelf count in one
// transaction. Returning an already-returned loan fails with
// ErrLoanClosed and changes nothing.
func (s *Store) ReturnLoan(ctx context.Context, loanID string, returnedAt time.Time, fineRate float64) (*domain.Loan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin return: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, loanID)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}

	if l.Status == domain.LoanStatusReturned {
		return nil, store.ErrLoanClosed
	}

	if err := closeLoanTx(ctx, tx, l, returnedAt, fineRate); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit return: %w", err)
	}
	return l, nil
}

// SweepOverdue flips issued loans whose due date has passed to overdue
// and sets their fine to the accrued amount. Returns the number of
// loans changed. Running it again immediately changes nothing.
func (s *Store) SweepOverdue(ctx context.Context, now time.Time, fineRate float64) (int, error) {
	return s.sweepLoans(ctx, now, fineRate, false)
}

// SweepActiveFines refreshes the accrued fine on every open loan,
// flipping newly late ones to overdue along the way. Unlike
// SweepOverdue it also advances the fine on loans already overdue as
// more days pass. Returns the number of loans whose stored state
// actually changed.
func (s *Store) SweepActiveFines(ctx context.Context, now time.Time, fineRate float64) (int, error) {
	return s.sweepLoans(ctx, now, fineRate, true)
}

// sweepLoans recomputes overdue status and fines for open loans in one
// transaction. Day counting happens in Go so the stored amount matches
// the domain formula exactly. Without refreshAll the pass only flips
// newly late issued loans; with it, fines on already-overdue loans are
// advanced as well.
func (s *Store) sweepLoans(ctx context.Context, now time.Time, fineRate float64, refreshAll bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sweep: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE status IN ('issued', 'overdue')`)
	if err != nil {
		return 0, fmt.Errorf("list open loans: %w", err)
	}
	var open []*domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan loan: %w", err)
		}
		open = append(open, l)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("list open loans: %w", err)
	}

	changed := 0
	for _, l := range open {
		newStatus := l.Status
		if l.Status == domain.LoanStatusIssued && now.After(l.DueDate) {
			newStatus = domain.LoanStatusOverdue
		}

		newFine := l.FineAmount
		if refreshAll || newStatus != l.Status {
			newFine = l.AccruedFine(now, fineRate)
		}

		if newStatus == l.Status && newFine == l.FineAmount {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE loans SET status = ?, fine_amount = ?, updated_at = ? WHERE id = ?`,
			string(newStatus), newFine, formatTime(now), l.ID,
		); err != nil {
			return 0, fmt.Errorf("update loan %s: %w", l.ID, err)
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sweep: %w", err)
	}
	return changed, nil
}

// SumActiveLoanFines returns the total accrued fine across open loans,
// optionally for a single user (empty userID means everyone).
func (s *Store) SumActiveLoanFines(ctx context.Context, userID string) (float64, error) {
	query := `SELECT COALESCE(SUM(fine_amount), 0) FROM loans WHERE status IN ('issued', 'overdue')`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum loan fines: %w", err)
	}
	return total, nil
}

// CountLoansByStatus returns how many loans hold the given status.
func (s *Store) CountLoansByStatus(ctx context.Context, status domain.LoanStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count loans: %w", err)
	}
	return count, nil
}

// HasActiveLoan reports whether the user currently holds the book.
func (s *Store) HasActiveLoan(ctx context.Context, userID, bookID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans
		WHERE user_id = ? AND book_id = ? AND status IN ('issued', 'overdue')`,
		userID, bookID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check active loan: %w", err)
	}
	return count > 0, nil
}
