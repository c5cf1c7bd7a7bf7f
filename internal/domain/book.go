package domain

import "time"

// Book represents a title in the catalog together with its copy counts.
// TotalCopies is how many physical copies the library owns;
// AvailableCopies is how many are on the shelf right now.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       string    `json:"publisher,omitempty"`
	ISBN            string    `json:"isbn,omitempty"`
	CategoryID      string    `json:"category_id,omitempty"`
	CategoryName    string    `json:"category_name,omitempty"` // denormalized for list views
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsAvailable returns true if at least one copy is on the shelf.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// CopiesOnLoan returns the number of copies currently out.
func (b *Book) CopiesOnLoan() int {
	out := b.TotalCopies - b.AvailableCopies
	if out < 0 {
		return 0
	}
	return out
}

// EffectiveAvailability returns the shelf copies not yet claimed by a
// pending hold. This is what borrowers see as "available now" and what
// caps how many more reservations the title can absorb. Clamped to 0.
func (b *Book) EffectiveAvailability(pendingHolds int) int {
	free := b.AvailableCopies - pendingHolds
	if free < 0 {
		return 0
	}
	return free
}
