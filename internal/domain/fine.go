package domain

import "time"

// FineStatus represents whether a ledger entry has been settled.
type FineStatus string

const (
	// FineStatusPending means the amount is still owed.
	FineStatusPending FineStatus = "pending"
	// FineStatusPaid means the amount has been settled at the desk.
	FineStatusPaid FineStatus = "paid"
)

// DefaultFineRate is the per-day overdue penalty applied when
// configuration does not override it.
const DefaultFineRate = 5.0

// Fine is an entry in the manual fines ledger: an adjustment or charge
// recorded independently of the per-loan accrued fine. The ledger is
// append-only; entries are settled by marking them paid, never edited
// or removed. Display totals reconcile the two sources by taking the
// larger of accrued-on-loans and pending-ledger sums, so the manual
// ledger can only add to what a borrower owes, never hide it.
type Fine struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	LoanID    string     `json:"loan_id,omitempty"` // empty for manual charges not tied to a loan
	Amount    float64    `json:"amount"`
	Reason    string     `json:"reason"`
	Status    FineStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// IsPending returns true while the entry is unsettled.
func (f *Fine) IsPending() bool {
	return f.Status == FineStatusPending
}

// ReconcileOwed returns the display total for a borrower given the sum
// of accrued fines on their active loans and the sum of their pending
// ledger entries. Taking the maximum avoids undercounting when the two
// sources have drifted.
func ReconcileOwed(accrued, pendingLedger float64) float64 {
	if pendingLedger > accrued {
		return pendingLedger
	}
	return accrued
}
