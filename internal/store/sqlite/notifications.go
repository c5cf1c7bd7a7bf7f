package sqlite

import (
	"context"
	"fmt"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/store"
)

const notificationColumns = `id, user_id, type, ref_id, message, seen, created_at`

func scanNotification(scanner interface{ Scan(dest ...any) error }) (*domain.Notification, error) {
	var n domain.Notification
	var (
		ntype     string
		seen      int
		createdAt string
	)

	err := scanner.Scan(
		&n.ID,
		&n.UserID,
		&ntype,
		&n.RefID,
		&n.Message,
		&seen,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	n.Type = domain.NotificationType(ntype)
	n.Seen = seen != 0
	n.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UpsertNotification records a notice unless one already exists for the
// same (user, type, reference). Returns true when a new record was
// written, so sweeps can report how many notices they produced.
func (s *Store) UpsertNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, ref_id, message, seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, type, ref_id) DO NOTHING`,
		n.ID, n.UserID, string(n.Type), n.RefID, n.Message, boolToInt(n.Seen),
		formatTime(n.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return inserted > 0, nil
}

// ListNotificationsForUser returns a user's notices, newest first.
// With unseenOnly set, already-seen notices are skipped.
func (s *Store) ListNotificationsForUser(ctx context.Context, userID string, unseenOnly bool) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unseenOnly {
		query += ` AND seen = 0`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationSeen flags one notice as read. The notice must belong
// to the given user.
func (s *Store) MarkNotificationSeen(ctx context.Context, notificationID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET seen = 1 WHERE id = ? AND user_id = ?`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification seen: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("notification not found")
	}
	return nil
}

// MarkAllNotificationsSeen flags every notice for a user as read and
// returns how many changed.
func (s *Store) MarkAllNotificationsSeen(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET seen = 1 WHERE user_id = ? AND seen = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications seen: %w", err)
	}
	return int(n), nil
}
