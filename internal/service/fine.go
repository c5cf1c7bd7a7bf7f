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

// FineService reconciles the two fine read paths: the per-loan accrued
// amount and the standalone fines ledger. Amounts owed are reported as
// the larger of the two so neither path undercounts the other.
type FineService struct {
	store       *sqlite.Store
	circulation *CirculationService
	logger      *slog.Logger
}

// NewFineService creates a new fine service.
func NewFineService(store *sqlite.Store, circulation *CirculationService, logger *slog.Logger) *FineService {
	return &FineService{
		store:       store,
		circulation: circulation,
		logger:      logger,
	}
}

// AddFineRequest records a manual ledger entry, e.g. for a damaged book.
type AddFineRequest struct {
	UserID string  `json:"user_id" validate:"required"`
	LoanID string  `json:"loan_id"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason" validate:"required,max=500"`
}

// AddFine creates a pending ledger entry against a member.
func (s *FineService) AddFine(ctx context.Context, req AddFineRequest) (*domain.Fine, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if req.LoanID != "" {
		if _, err := s.store.GetLoan(ctx, req.LoanID); err != nil {
			if errors.Is(err, store.ErrLoanNotFound) {
				return nil, domainerrors.NotFound("loan not found")
			}
			return nil, fmt.Errorf("get loan: %w", err)
		}
	}

	fineID, err := id.Generate(id.PrefixFine)
	if err != nil {
		return nil, fmt.Errorf("generate fine ID: %w", err)
	}

	fine := &domain.Fine{
		ID:        fineID,
		UserID:    req.UserID,
		LoanID:    req.LoanID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Status:    domain.FineStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateFine(ctx, fine); err != nil {
		return nil, fmt.Errorf("create fine: %w", err)
	}

	s.logger.Info("fine recorded", "fine_id", fineID, "user_id", req.UserID, "amount", req.Amount)
	return fine, nil
}

// ListFines returns ledger entries, optionally filtered by user and status.
func (s *FineService) ListFines(ctx context.Context, userID string, status domain.FineStatus) ([]*domain.Fine, error) {
	fines, err := s.store.ListFines(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	return fines, nil
}

// MarkPaid settles a pending ledger entry. Paying a settled fine fails
// without changing anything.
func (s *FineService) MarkPaid(ctx context.Context, fineID string) (*domain.Fine, error) {
	if err := s.store.MarkFinePaid(ctx, fineID, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, store.ErrFineNotFound):
			return nil, domainerrors.NotFound("fine not found")
		case errors.Is(err, store.ErrInvalidState):
			return nil, domainerrors.InvalidState("fine is already paid")
		}
		return nil, fmt.Errorf("mark fine paid: %w", err)
	}

	fine, err := s.store.GetFine(ctx, fineID)
	if err != nil {
		return nil, fmt.Errorf("get fine: %w", err)
	}

	s.logger.Info("fine paid", "fine_id", fineID, "amount", fine.Amount)
	return fine, nil
}

// TotalOwed reports what a member currently owes. Loan fines are swept
// to the present first, then the larger of the accrued total and the
// pending ledger total wins.
func (s *FineService) TotalOwed(ctx context.Context, userID string) (float64, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return 0, domainerrors.NotFound("user not found")
		}
		return 0, fmt.Errorf("get user: %w", err)
	}

	if _, err := s.circulation.SweepFines(ctx); err != nil {
		return 0, err
	}

	accrued, err := s.store.SumActiveLoanFines(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("sum loan fines: %w", err)
	}
	pending, err := s.store.SumPendingFines(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("sum ledger fines: %w", err)
	}

	return domain.ReconcileOwed(accrued, pending), nil
}
