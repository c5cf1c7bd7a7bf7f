package domain

import "time"

// NotificationType identifies what a notification record is about.
type NotificationType string

const (
	// NotificationOverdue flags a loan past its due date.
	NotificationOverdue NotificationType = "overdue"
	// NotificationDueSoon flags a loan due within the reminder window.
	NotificationDueSoon NotificationType = "due_soon"
	// NotificationReservation confirms a hold was placed.
	NotificationReservation NotificationType = "reservation"
)

// DueSoonDays is the reminder window: an open loan due within this
// many days produces a due-soon notification.
const DueSoonDays = 3

// Notification is a stored record for a user's attention. The system
// records notifications; it does not deliver them anywhere. Records
// are deduplicated per (user, type, reference) so a sweep can run
// repeatedly without piling up copies of the same notice.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	RefID     string           `json:"ref_id"` // loan or reservation the notice is about
	Message   string           `json:"message"`
	Seen      bool             `json:"seen"`
	CreatedAt time.Time        `json:"created_at"`
}
