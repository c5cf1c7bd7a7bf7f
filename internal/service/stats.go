package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/store"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

// StatsService assembles the dashboard and per-member summaries.
type StatsService struct {
	store       *sqlite.Store
	circulation *CirculationService
	logger      *slog.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(store *sqlite.Store, circulation *CirculationService, logger *slog.Logger) *StatsService {
	return &StatsService{
		store:       store,
		circulation: circulation,
		logger:      logger,
	}
}

// circulationMonths is the trailing window shown on the dashboard chart.
const circulationMonths = 10

// topCategoryCount caps the most-borrowed-categories list.
const topCategoryCount = 5

// Dashboard builds the librarian overview. Fines are swept first so
// overdue counts and amounts reflect the present, not the last write.
func (s *StatsService) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	if _, err := s.circulation.SweepFines(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stats := &domain.DashboardStats{}

	var err error
	if stats.TotalBooks, err = s.store.CountBooks(ctx); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}
	if stats.TotalCopies, stats.AvailableCopies, err = s.store.SumCopies(ctx); err != nil {
		return nil, fmt.Errorf("sum copies: %w", err)
	}
	stats.AvailabilityPercentage = domain.AvailabilityPercentage(stats.AvailableCopies, stats.TotalCopies)

	if stats.TotalMembers, err = s.store.CountUsersByRole(ctx, domain.RoleMember); err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	weekAgo := now.AddDate(0, 0, -7)
	if stats.NewMembersThisWeek, err = s.store.CountUsersCreatedSince(ctx, domain.RoleMember, weekAgo); err != nil {
		return nil, fmt.Errorf("count new members: %w", err)
	}

	if stats.IssuedLoans, err = s.store.CountLoansByStatus(ctx, domain.LoanStatusIssued); err != nil {
		return nil, fmt.Errorf("count issued loans: %w", err)
	}
	if stats.OverdueLoans, err = s.store.CountLoansByStatus(ctx, domain.LoanStatusOverdue); err != nil {
		return nil, fmt.Errorf("count overdue loans: %w", err)
	}

	accrued, err := s.store.SumActiveLoanFines(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("sum loan fines: %w", err)
	}
	pending, err := s.store.SumPendingFines(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("sum ledger fines: %w", err)
	}
	stats.TotalFines = domain.ReconcileOwed(accrued, pending)

	if stats.Circulation, err = s.store.MonthlyCirculation(ctx, now, circulationMonths); err != nil {
		return nil, fmt.Errorf("monthly circulation: %w", err)
	}
	if stats.TopCategories, err = s.store.TopCategories(ctx, topCategoryCount); err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}

	return stats, nil
}

// MemberSummary builds a member's own snapshot: live loan counts, holds,
// and the reconciled amount owed.
func (s *StatsService) MemberSummary(ctx context.Context, userID string) (*domain.MemberStats, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if _, err := s.circulation.SweepFines(ctx); err != nil {
		return nil, err
	}

	stats := &domain.MemberStats{}
	probe := store.NewPage(1, 1)

	_, active, err := s.store.ListLoans(ctx, sqlite.LoanFilter{UserID: userID, ActiveOnly: true}, probe)
	if err != nil {
		return nil, fmt.Errorf("count active loans: %w", err)
	}
	stats.ActiveLoans = active

	_, overdue, err := s.store.ListLoans(ctx, sqlite.LoanFilter{UserID: userID, Status: domain.LoanStatusOverdue}, probe)
	if err != nil {
		return nil, fmt.Errorf("count overdue loans: %w", err)
	}
	stats.OverdueLoans = overdue

	if stats.PendingReservations, err = s.store.CountPendingReservationsForUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("count holds: %w", err)
	}

	accrued, err := s.store.SumActiveLoanFines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum loan fines: %w", err)
	}
	pending, err := s.store.SumPendingFines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger fines: %w", err)
	}
	stats.TotalOwed = domain.ReconcileOwed(accrued, pending)

	return stats, nil
}
