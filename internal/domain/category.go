package domain

import "time"

// Category is a catalog shelf grouping ("Fiction", "Science", ...).
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
