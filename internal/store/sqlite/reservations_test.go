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

func newReservation(user *domain.User, book *domain.Book) *domain.Reservation {
	now := time.Now().UTC()
	return &domain.Reservation{
		ID:        id.MustGenerate(id.PrefixReservation),
		UserID:    user.ID,
		BookID:    book.ID,
		Status:    domain.ReservationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateReservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "Reservable Book", 2)

	r := newReservation(user, book)
	if err := s.CreateReservation(ctx, r); err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	// Holds never touch the shelf count.
	b, _ := s.GetBook(ctx, book.ID)
	if b.AvailableCopies != 2 {
		t.Errorf("available_copies = %d, want 2 (holds must not decrement)", b.AvailableCopies)
	}

	count, err := s.PendingHoldCount(ctx, book.ID)
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if count != 1 {
		t.Errorf("pending holds = %d, want 1", count)
	}
}

func TestCreateReservationBookMissing(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "asha")
	r := newReservation(user, &domain.Book{ID: "book-missing"})

	err := s.CreateReservation(context.Background(), r)
	if !errors.Is(err, store.ErrBookNotFound) {
		t.Fatalf("error = %v, want ErrBookNotFound", err)
	}
}

func TestCreateReservationNoCopies(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "asha")
	u2 := seedUser(t, s, "bina")
	book := seedBook(t, s, "Single Copy", 1)

	seedLoan(t, s, u1, book, time.Now().UTC().AddDate(0, 0, 14))

	err := s.CreateReservation(context.Background(), newReservation(u2, book))
	if !errors.Is(err, store.ErrNoCopies) {
		t.Fatalf("error = %v, want ErrNoCopies when nothing is on the shelf", err)
	}
}

func TestCreateReservationAlreadyBorrowed(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "Popular Book", 2)

	seedLoan(t, s, user, book, time.Now().UTC().AddDate(0, 0, 14))

	err := s.CreateReservation(context.Background(), newReservation(user, book))
	if !errors.Is(err, store.ErrDuplicateLoan) {
		t.Fatalf("error = %v, want ErrDuplicateLoan for a book already held", err)
	}
}

func TestCreateReservationDuplicate(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "Popular Book", 3)

	if err := s.CreateReservation(context.Background(), newReservation(user, book)); err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	err := s.CreateReservation(context.Background(), newReservation(user, book))
	if !errors.Is(err, store.ErrDuplicateReservation) {
		t.Fatalf("error = %v, want ErrDuplicateReservation", err)
	}
}

func TestCreateReservationNoCapacity(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "asha")
	u2 := seedUser(t, s, "bina")
	u3 := seedUser(t, s, "chetan")
	book := seedBook(t, s, "Two Copies", 2)

	if err := s.CreateReservation(context.Background(), newReservation(u1, book)); err != nil {
		t.Fatalf("first hold: %v", err)
	}
	if err := s.CreateReservation(context.Background(), newReservation(u2, book)); err != nil {
		t.Fatalf("second hold: %v", err)
	}

	// Both shelf copies are claimed by holds now.
	err := s.CreateReservation(context.Background(), newReservation(u3, book))
	if !errors.Is(err, store.ErrNoReserveCapacity) {
		t.Fatalf("error = %v, want ErrNoReserveCapacity", err)
	}
}

func TestCancelReservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "Cancellable", 1)

	r := newReservation(user, book)
	if err := s.CreateReservation(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.CancelReservation(ctx, r.ID, user.ID, time.Now().UTC()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := s.GetReservation(ctx, r.ID)
	if got.Status != domain.ReservationStatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}

	// Cancelling again: no longer pending.
	err := s.CancelReservation(ctx, r.ID, user.ID, time.Now().UTC())
	if !errors.Is(err, store.ErrReservationNotFound) {
		t.Errorf("second cancel error = %v, want ErrReservationNotFound", err)
	}
}

func TestCancelReservationWrongOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "asha")
	other := seedUser(t, s, "bina")
	book := seedBook(t, s, "Private Hold", 1)

	r := newReservation(owner, book)
	if err := s.CreateReservation(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := s.CancelReservation(ctx, r.ID, other.ID, time.Now().UTC())
	if !errors.Is(err, store.ErrReservationNotFound) {
		t.Fatalf("cross-user cancel error = %v, want ErrReservationNotFound", err)
	}

	got, _ := s.GetReservation(ctx, r.ID)
	if got.Status != domain.ReservationStatusPending {
		t.Errorf("status = %s, want pending after rejected cancel", got.Status)
	}
}

func TestFulfillReservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "Picked Up", 1)

	r := newReservation(user, book)
	if err := s.CreateReservation(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.FulfillReservation(ctx, r.ID, time.Now().UTC()); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	got, _ := s.GetReservation(ctx, r.ID)
	if got.Status != domain.ReservationStatusFulfilled {
		t.Errorf("status = %s, want fulfilled", got.Status)
	}

	// Fulfilled holds free capacity for the next borrower.
	count, _ := s.PendingHoldCount(ctx, book.ID)
	if count != 0 {
		t.Errorf("pending holds = %d, want 0", count)
	}
}
