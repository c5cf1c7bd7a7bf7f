package domain

import "time"

// ReservationStatus represents the state of a hold.
// Pending is the only live state; fulfilled and cancelled are both terminal.
type ReservationStatus string

const (
	// ReservationStatusPending means the hold is live and claims a shelf copy.
	ReservationStatusPending ReservationStatus = "pending"
	// ReservationStatusFulfilled means the borrower picked the book up.
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	// ReservationStatusCancelled means the hold was released without pickup.
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// DefaultHoldDays is how long a reserved copy is held for pickup
// before staff treat the hold as stale. The store never expires holds
// on its own; the window is advisory and surfaced as ExpectedPickupBy.
const DefaultHoldDays = 3

// Reservation is a pending hold placed by a user against a book with
// shelf copies remaining. A pending hold reduces the book's effective
// availability without touching available_copies. At most one pending
// reservation per (user, book) pair.
type Reservation struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	BookID    string            `json:"book_id"`
	BookTitle string            `json:"book_title,omitempty"`
	UserName  string            `json:"user_name,omitempty"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsPending returns true while the hold still claims a copy.
func (r *Reservation) IsPending() bool {
	return r.Status == ReservationStatusPending
}

// ExpectedPickupBy returns the advisory end of the pickup window.
func (r *Reservation) ExpectedPickupBy() time.Time {
	return r.CreatedAt.AddDate(0, 0, DefaultHoldDays)
}
