package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustakapp/pustak-server/internal/domain"
)

func TestNotification_SyncForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	overdueBook := env.book(t, "Dune", 1)
	dueSoonBook := env.book(t, "Emma", 1)
	heldBook := env.book(t, "Hamnet", 1)

	env.loanDueAt(t, user.ID, overdueBook.ID, time.Now().UTC().AddDate(0, 0, -2))
	env.loanDueAt(t, user.ID, dueSoonBook.ID, time.Now().UTC().AddDate(0, 0, 1))
	_, err := env.reservations.Reserve(ctx, ReserveRequest{UserID: user.ID, BookID: heldBook.ID})
	require.NoError(t, err)

	notifications, err := env.notifications.SyncForUser(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, notifications, 3)

	types := make(map[domain.NotificationType]int)
	for _, n := range notifications {
		types[n.Type]++
		assert.False(t, n.Seen)
	}
	assert.Equal(t, 1, types[domain.NotificationOverdue])
	assert.Equal(t, 1, types[domain.NotificationDueSoon])
	assert.Equal(t, 1, types[domain.NotificationReservation])
}

func TestNotification_SyncForUser_Dedupes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 1)
	env.loanDueAt(t, user.ID, book.ID, time.Now().UTC().AddDate(0, 0, -2))

	first, err := env.notifications.SyncForUser(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second visit while the loan stays overdue adds nothing.
	second, err := env.notifications.SyncForUser(ctx, user.ID, false)
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestNotification_MarkSeen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	book := env.book(t, "Dune", 1)
	env.loanDueAt(t, user.ID, book.ID, time.Now().UTC().AddDate(0, 0, -2))

	notifications, err := env.notifications.SyncForUser(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	require.NoError(t, env.notifications.MarkSeen(ctx, notifications[0].ID, user.ID))

	unseen, err := env.notifications.SyncForUser(ctx, user.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unseen)
}

func TestNotification_MarkAllSeen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.member(t, "alice")
	dune := env.book(t, "Dune", 1)
	emma := env.book(t, "Emma", 1)
	env.loanDueAt(t, user.ID, dune.ID, time.Now().UTC().AddDate(0, 0, -2))
	env.loanDueAt(t, user.ID, emma.ID, time.Now().UTC().AddDate(0, 0, -3))

	_, err := env.notifications.SyncForUser(ctx, user.ID, false)
	require.NoError(t, err)

	count, err := env.notifications.MarkAllSeen(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = env.notifications.MarkAllSeen(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
