package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pustakapp/pustak-server/internal/config"
	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/id"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

// testEnv wires the full service stack against a throwaway database.
type testEnv struct {
	store         *sqlite.Store
	catalog       *CatalogService
	membership    *MembershipService
	circulation   *CirculationService
	reservations  *ReservationService
	fines         *FineService
	stats         *StatsService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.CirculationConfig{
		FineRate:            5,
		LoanDays:            14,
		ReservationHoldDays: 3,
	}

	circulation := NewCirculationService(st, cfg, logger)
	return &testEnv{
		store:         st,
		catalog:       NewCatalogService(st, nil, logger),
		membership:    NewMembershipService(st, cfg, logger),
		circulation:   circulation,
		reservations:  NewReservationService(st, circulation, logger),
		fines:         NewFineService(st, circulation, logger),
		stats:         NewStatsService(st, circulation, logger),
		notifications: NewNotificationService(st, circulation, logger),
	}
}

func (e *testEnv) member(t *testing.T, name string) *domain.User {
	t.Helper()
	user, err := e.membership.RegisterUser(context.Background(), RegisterUserRequest{
		Name:     name,
		Email:    name + "@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) book(t *testing.T, title string, copies int) *domain.Book {
	t.Helper()
	book, err := e.catalog.AddBook(context.Background(), AddBookRequest{
		Title:       title,
		Author:      "Test Author",
		TotalCopies: copies,
	})
	require.NoError(t, err)
	return book
}

// loanDueAt seeds a loan with an explicit due date, bypassing the
// service so tests can put loans in the past.
func (e *testEnv) loanDueAt(t *testing.T, userID, bookID string, due time.Time) *domain.Loan {
	t.Helper()
	now := time.Now().UTC()
	loan := &domain.Loan{
		ID:        id.MustGenerate(id.PrefixLoan),
		UserID:    userID,
		BookID:    bookID,
		IssueDate: due.AddDate(0, 0, -domain.DefaultLoanDays),
		DueDate:   due,
		Status:    domain.LoanStatusIssued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateLoan(context.Background(), loan))
	return loan
}
