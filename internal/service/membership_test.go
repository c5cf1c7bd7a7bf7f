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

func TestMembership_RegisterUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.membership.RegisterUser(ctx, RegisterUserRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleMember, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)
}

func TestMembership_RegisterUser_Librarian(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.membership.RegisterUser(context.Background(), RegisterUserRequest{
		Name:     "Head Librarian",
		Email:    "head@example.com",
		Password: "correct horse battery",
		Role:     "librarian",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleLibrarian, user.Role)
	assert.True(t, user.IsLibrarian())
}

func TestMembership_RegisterUser_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.member(t, "alice")

	_, err := env.membership.RegisterUser(ctx, RegisterUserRequest{
		Name:     "Other Alice",
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestMembership_RegisterUser_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.membership.RegisterUser(context.Background(), RegisterUserRequest{
		Name:     "Short",
		Email:    "short@example.com",
		Password: "short",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.membership.RegisterUser(context.Background(), RegisterUserRequest{
		Name:     "Bad Email",
		Email:    "not-an-email",
		Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestMembership_ListUsers_ByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.member(t, "alice")
	env.member(t, "bob")
	_, err := env.membership.RegisterUser(ctx, RegisterUserRequest{
		Name: "Librarian", Email: "lib@example.com", Password: "correct horse battery", Role: "librarian",
	})
	require.NoError(t, err)

	members, err := env.membership.ListUsers(ctx, domain.RoleMember, nil)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	all, err := env.membership.ListUsers(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = env.membership.ListUsers(ctx, "janitor", nil)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestMembership_RemoveUser_Cascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	first := env.book(t, "Dune", 1)
	second := env.book(t, "Emma", 1)
	held := env.book(t, "Hamnet", 1)

	_, err := env.circulation.IssueBook(ctx, IssueBookRequest{UserID: user.ID, BookID: first.ID})
	require.NoError(t, err)
	_, err = env.circulation.IssueBook(ctx, IssueBookRequest{UserID: user.ID, BookID: second.ID})
	require.NoError(t, err)
	_, err = env.reservations.Reserve(ctx, ReserveRequest{UserID: user.ID, BookID: held.ID})
	require.NoError(t, err)

	result, err := env.membership.RemoveUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.BooksReturned)
	assert.Equal(t, 1, result.ReservationsCancelled)

	// Copies came back to the shelf.
	for _, bookID := range []string{first.ID, second.ID} {
		book, err := env.catalog.GetBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, 1, book.AvailableCopies)
	}

	_, err = env.membership.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestMembership_RemoveUser_SettlesOverdueFine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 1)
	env.loanDueAt(t, user.ID, book.ID, time.Now().UTC().AddDate(0, 0, -3).Add(-time.Hour))

	result, err := env.membership.RemoveUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BooksReturned)

	got, err := env.catalog.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestMembership_UpdateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")

	name := "Alice Cooper"
	updated, err := env.membership.UpdateUser(ctx, user.ID, UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", updated.Name)
	assert.True(t, updated.Active)

	_, err = env.membership.UpdateUser(ctx, "user-missing", UpdateUserRequest{Name: &name})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
