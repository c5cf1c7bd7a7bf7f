package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/id"
	"github.com/pustakapp/pustak-server/internal/store"
)

func seedFine(t *testing.T, s *Store, user *domain.User, amount float64) *domain.Fine {
	t.Helper()
	f := &domain.Fine{
		ID:        id.MustGenerate(id.PrefixFine),
		UserID:    user.ID,
		Amount:    amount,
		Reason:    "damaged cover",
		Status:    domain.FineStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateFine(context.Background(), f); err != nil {
		t.Fatalf("seed fine: %v", err)
	}
	return f
}

func TestMarkFinePaid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	fine := seedFine(t, s, user, 40)

	if err := s.MarkFinePaid(ctx, fine.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	got, err := s.GetFine(ctx, fine.ID)
	if err != nil {
		t.Fatalf("get fine: %v", err)
	}
	if got.Status != domain.FineStatusPaid {
		t.Errorf("status = %s, want paid", got.Status)
	}
	if got.PaidAt == nil {
		t.Error("paid_at not set")
	}

	// Settling twice is rejected.
	err = s.MarkFinePaid(ctx, fine.ID, time.Now().UTC())
	if !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("second payment error = %v, want ErrInvalidState", err)
	}

	if err := s.MarkFinePaid(ctx, "fine-missing", time.Now().UTC()); !errors.Is(err, store.ErrFineNotFound) {
		t.Errorf("missing fine error = %v, want ErrFineNotFound", err)
	}
}

func TestSumPendingFines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u1 := seedUser(t, s, "asha")
	u2 := seedUser(t, s, "bina")

	seedFine(t, s, u1, 10)
	seedFine(t, s, u1, 15)
	paid := seedFine(t, s, u1, 100)
	seedFine(t, s, u2, 5)

	if err := s.MarkFinePaid(ctx, paid.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	mine, err := s.SumPendingFines(ctx, u1.ID)
	if err != nil {
		t.Fatalf("sum user: %v", err)
	}
	if mine != 25 {
		t.Errorf("u1 pending = %v, want 25 (paid entry excluded)", mine)
	}

	all, err := s.SumPendingFines(ctx, "")
	if err != nil {
		t.Fatalf("sum all: %v", err)
	}
	if all != 30 {
		t.Errorf("all pending = %v, want 30", all)
	}
}

func TestListFines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	seedFine(t, s, user, 10)
	paid := seedFine(t, s, user, 20)
	if err := s.MarkFinePaid(ctx, paid.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	pending, err := s.ListFines(ctx, user.ID, domain.FineStatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending entries = %d, want 1", len(pending))
	}

	all, err := s.ListFines(ctx, user.ID, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all entries = %d, want 2", len(all))
	}
}

func TestNotificationDedupe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")

	n := &domain.Notification{
		ID:        id.MustGenerate(id.PrefixNotification),
		UserID:    user.ID,
		Type:      domain.NotificationOverdue,
		RefID:     "loan-abc",
		Message:   "Late Book is 3 days overdue",
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.UpsertNotification(ctx, n)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Fatal("first upsert reported no insert")
	}

	// Same (user, type, ref) again: silently skipped.
	again := *n
	again.ID = id.MustGenerate(id.PrefixNotification)
	created, err = s.UpsertNotification(ctx, &again)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("duplicate notification was inserted")
	}

	list, err := s.ListNotificationsForUser(ctx, user.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("notifications = %d, want 1", len(list))
	}

	if err := s.MarkNotificationSeen(ctx, n.ID, user.ID); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	unseen, err := s.ListNotificationsForUser(ctx, user.ID, true)
	if err != nil {
		t.Fatalf("list unseen: %v", err)
	}
	if len(unseen) != 0 {
		t.Errorf("unseen = %d, want 0", len(unseen))
	}
}
