package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
)

func TestFine_AddFine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")

	fine, err := env.fines.AddFine(ctx, AddFineRequest{
		UserID: user.ID,
		Amount: 40,
		Reason: "damaged cover",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FineStatusPending, fine.Status)
	assert.True(t, fine.IsPending())
}

func TestFine_AddFine_Validation(t *testing.T) {
	env := newTestEnv(t)
	user := env.member(t, "alice")

	_, err := env.fines.AddFine(context.Background(), AddFineRequest{
		UserID: user.ID, Amount: -5, Reason: "bogus",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.fines.AddFine(context.Background(), AddFineRequest{
		UserID: "user-missing", Amount: 5, Reason: "late",
	})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestFine_MarkPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	fine, err := env.fines.AddFine(ctx, AddFineRequest{UserID: user.ID, Amount: 25, Reason: "late return"})
	require.NoError(t, err)

	paid, err := env.fines.MarkPaid(ctx, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FineStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	// Paying twice is invalid and changes nothing.
	_, err = env.fines.MarkPaid(ctx, fine.ID)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	_, err = env.fines.MarkPaid(ctx, "fine-missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestFine_TotalOwed_Reconciles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 1)

	// Four full days overdue: 20 accrued on the loan.
	env.loanDueAt(t, user.ID, book.ID, time.Now().UTC().AddDate(0, 0, -4).Add(-time.Hour))

	// Ledger carries a smaller pending entry: accrued path wins.
	_, err := env.fines.AddFine(ctx, AddFineRequest{UserID: user.ID, Amount: 10, Reason: "late"})
	require.NoError(t, err)

	owed, err := env.fines.TotalOwed(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, owed)

	// A larger ledger entry flips which path wins.
	_, err = env.fines.AddFine(ctx, AddFineRequest{UserID: user.ID, Amount: 50, Reason: "damaged"})
	require.NoError(t, err)

	owed, err = env.fines.TotalOwed(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, owed)
}

func TestFine_ListFines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.member(t, "alice")
	bob := env.member(t, "bob")

	_, err := env.fines.AddFine(ctx, AddFineRequest{UserID: alice.ID, Amount: 5, Reason: "late"})
	require.NoError(t, err)
	fine, err := env.fines.AddFine(ctx, AddFineRequest{UserID: bob.ID, Amount: 10, Reason: "late"})
	require.NoError(t, err)
	_, err = env.fines.MarkPaid(ctx, fine.ID)
	require.NoError(t, err)

	aliceFines, err := env.fines.ListFines(ctx, alice.ID, "")
	require.NoError(t, err)
	assert.Len(t, aliceFines, 1)

	pending, err := env.fines.ListFines(ctx, "", domain.FineStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
