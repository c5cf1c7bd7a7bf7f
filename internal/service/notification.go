package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/id"
	"github.com/pustakapp/pustak-server/internal/store"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

// NotificationService derives per-member notices from circulation state.
// Notices are generated on read, deduplicated per (user, type, source),
// so a loan that stays overdue produces one notice, not one per visit.
type NotificationService struct {
	store       *sqlite.Store
	circulation *CirculationService
	logger      *slog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(store *sqlite.Store, circulation *CirculationService, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:       store,
		circulation: circulation,
		logger:      logger,
	}
}

// SyncForUser materializes any notices the member's current loans and
// holds warrant, then returns the full list, newest first.
func (s *NotificationService) SyncForUser(ctx context.Context, userID string, unseenOnly bool) ([]*domain.Notification, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if _, err := s.circulation.SweepOverdue(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	loans, _, err := s.store.ListLoans(ctx, sqlite.LoanFilter{UserID: userID, ActiveOnly: true}, nil)
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	for _, loan := range loans {
		switch {
		case loan.IsOverdueAt(now):
			s.upsert(ctx, userID, domain.NotificationOverdue, loan.ID,
				fmt.Sprintf("%q is overdue, please return it", loan.BookTitle))
		case loan.DueDate.Before(now.AddDate(0, 0, domain.DueSoonDays)):
			s.upsert(ctx, userID, domain.NotificationDueSoon, loan.ID,
				fmt.Sprintf("%q is due on %s", loan.BookTitle, loan.DueDate.Format("Jan 2")))
		}
	}

	reservations, _, err := s.store.ListReservations(ctx, sqlite.ReservationFilter{
		UserID: userID,
		Status: domain.ReservationStatusPending,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	for _, r := range reservations {
		s.upsert(ctx, userID, domain.NotificationReservation, r.ID,
			fmt.Sprintf("%q is on hold for you until %s", r.BookTitle, r.ExpectedPickupBy().Format("Jan 2")))
	}

	notifications, err := s.store.ListNotificationsForUser(ctx, userID, unseenOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkSeen marks a single notice as read. The notice must belong to the
// requesting user.
func (s *NotificationService) MarkSeen(ctx context.Context, notificationID, userID string) error {
	if err := s.store.MarkNotificationSeen(ctx, notificationID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("notification not found")
		}
		return fmt.Errorf("mark notification seen: %w", err)
	}
	return nil
}

// MarkAllSeen marks every unread notice for the user and reports how
// many changed.
func (s *NotificationService) MarkAllSeen(ctx context.Context, userID string) (int, error) {
	count, err := s.store.MarkAllNotificationsSeen(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications seen: %w", err)
	}
	return count, nil
}

// upsert records a notice unless an identical one already exists.
// Notification failures never break the read path that triggered them.
func (s *NotificationService) upsert(ctx context.Context, userID string, typ domain.NotificationType, refID, message string) {
	notificationID, err := id.Generate(id.PrefixNotification)
	if err != nil {
		s.logger.Warn("failed to generate notification ID", "error", err)
		return
	}

	_, err = s.store.UpsertNotification(ctx, &domain.Notification{
		ID:        notificationID,
		UserID:    userID,
		Type:      typ,
		RefID:     refID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to record notification",
			"user_id", userID,
			"type", typ,
			"ref_id", refID,
			"error", err,
		)
	}
}
