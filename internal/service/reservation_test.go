package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
)

func TestReservation_Reserve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 2)

	reservation, err := env.reservations.Reserve(ctx, ReserveRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationStatusPending, reservation.Status)
	assert.Equal(t, "Dune", reservation.BookTitle)

	// A hold shrinks effective availability without moving the copy count.
	availability, err := env.catalog.GetAvailability(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, availability.Book.AvailableCopies)
	assert.Equal(t, 1, availability.PendingHolds)
	assert.Equal(t, 1, availability.Effective)
}

func TestReservation_Reserve_Exhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	borrower := env.member(t, "alice")
	holder := env.member(t, "bob")
	book := env.book(t, "Dune", 1)

	_, err := env.circulation.IssueBook(ctx, IssueBookRequest{UserID: borrower.ID, BookID: book.ID})
	require.NoError(t, err)

	_, err = env.reservations.Reserve(ctx, ReserveRequest{UserID: holder.ID, BookID: book.ID})
	assert.ErrorIs(t, err, domainerrors.ErrUnavailable)
}

func TestReservation_Reserve_DuplicateHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 2)

	_, err := env.reservations.Reserve(ctx, ReserveRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	_, err = env.reservations.Reserve(ctx, ReserveRequest{UserID: user.ID, BookID: book.ID})
	assert.ErrorIs(t, err, domainerrors.ErrDuplicateReservation)
}

func TestReservation_Reserve_AlreadyBorrowed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 2)

	_, err := env.circulation.IssueBook(ctx, IssueBookRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	_, err = env.reservations.Reserve(ctx, ReserveRequest{UserID: user.ID, BookID: book.ID})
	assert.ErrorIs(t, err, domainerrors.ErrDuplicateLoan)
}

func TestReservation_Reserve_NoCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.member(t, "alice")
	second := env.member(t, "bob")
	book := env.book(t, "Dune", 1)

	_, err := env.reservations.Reserve(ctx, ReserveRequest{UserID: first.ID, BookID: book.ID})
	require.NoError(t, err)

	// One copy, one pending hold: effective availability is zero.
	_, err = env.reservations.Reserve(ctx, ReserveRequest{UserID: second.ID, BookID: book.ID})
	assert.ErrorIs(t, err, domainerrors.ErrNoCapacity)
}

func TestReservation_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 1)

	reservation, err := env.reservations.Reserve(ctx, ReserveRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	require.NoError(t, env.reservations.Cancel(ctx, reservation.ID, user.ID))

	got, err := env.reservations.GetReservation(ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, got.Status)

	// Cancelling is terminal.
	err = env.reservations.Cancel(ctx, reservation.ID, user.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestReservation_Cancel_OwnershipMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.member(t, "alice")
	stranger := env.member(t, "bob")
	book := env.book(t, "Dune", 1)

	reservation, err := env.reservations.Reserve(ctx, ReserveRequest{UserID: owner.ID, BookID: book.ID})
	require.NoError(t, err)

	// Reads like a missing reservation, not a forbidden one.
	err = env.reservations.Cancel(ctx, reservation.ID, stranger.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	// Librarian override with no requester.
	require.NoError(t, env.reservations.Cancel(ctx, reservation.ID, ""))
}

func TestReservation_Fulfill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 1)

	reservation, err := env.reservations.Reserve(ctx, ReserveRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	loan, err := env.reservations.Fulfill(ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, loan.UserID)
	assert.Equal(t, book.ID, loan.BookID)

	got, err := env.reservations.GetReservation(ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusFulfilled, got.Status)

	// Fulfilling again is invalid.
	_, err = env.reservations.Fulfill(ctx, reservation.ID)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)
}
