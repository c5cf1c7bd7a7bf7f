package domain

import "time"

// LoanStatus represents where a loan sits in its lifecycle.
// A loan is created as issued, flips to overdue when its due date
// passes (detected lazily by a sweep, never by a timer), and ends as
// returned. Returned is terminal.
type LoanStatus string

const (
	// LoanStatusIssued means the book is out and not yet due.
	LoanStatusIssued LoanStatus = "issued"
	// LoanStatusOverdue means the book is out past its due date.
	LoanStatusOverdue LoanStatus = "overdue"
	// LoanStatusReturned means the book is back on the shelf.
	LoanStatusReturned LoanStatus = "returned"
)

// DefaultLoanDays is the loan period applied when no due date is given.
const DefaultLoanDays = 14

// Loan is a single circulation transaction: one user borrowing one
// copy of one book. At most one active loan may exist per (user, book)
// pair.
type Loan struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	BookID     string     `json:"book_id"`
	BookTitle  string     `json:"book_title,omitempty"` // denormalized for list views
	UserName   string     `json:"user_name,omitempty"`
	IssueDate  time.Time  `json:"issue_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	FineAmount float64    `json:"fine_amount"`
	Status     LoanStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsActive returns true while the copy is out (issued or overdue).
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusIssued || l.Status == LoanStatusOverdue
}

// IsOverdueAt reports whether the loan is past due at the reference
// time and still open.
func (l *Loan) IsOverdueAt(ref time.Time) bool {
	return l.IsActive() && ref.After(l.DueDate)
}

// OverdueDays returns the number of whole days the loan is past due at
// the reference time. The reference is the return date for closed
// loans and "now" for open ones; callers pass whichever applies.
// Partial days do not count.
func (l *Loan) OverdueDays(ref time.Time) int {
	if !ref.After(l.DueDate) {
		return 0
	}
	return int(ref.Sub(l.DueDate).Hours() / 24)
}

// AccruedFine computes the fine owed at the reference time for the
// given per-day rate: whole days overdue times the rate, never
// negative. The result only grows as time advances, holding due date
// and rate fixed.
func (l *Loan) AccruedFine(ref time.Time, ratePerDay float64) float64 {
	return float64(l.OverdueDays(ref)) * ratePerDay
}

// FineReference returns the instant fines are computed against:
// the return date once the loan is closed, otherwise now.
func (l *Loan) FineReference(now time.Time) time.Time {
	if l.ReturnDate != nil {
		return *l.ReturnDate
	}
	return now
}
