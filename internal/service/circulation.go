package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pustakapp/pustak-server/internal/config"
	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/id"
	"github.com/pustakapp/pustak-server/internal/store"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

// CirculationService handles issuing and returning books. Overdue status
// and fines are pull-based: reads that care about them trigger a sweep
// first instead of relying on a background timer.
type CirculationService struct {
	store       *sqlite.Store
	circulation config.CirculationConfig
	logger      *slog.Logger
}

// NewCirculationService creates a new circulation service.
func NewCirculationService(store *sqlite.Store, circulation config.CirculationConfig, logger *slog.Logger) *CirculationService {
	return &CirculationService{
		store:       store,
		circulation: circulation,
		logger:      logger,
	}
}

// IssueBookRequest identifies who borrows what. A nil DueDate means the
// loan runs for the configured period from the moment of issue.
type IssueBookRequest struct {
	UserID  string     `json:"user_id" validate:"required"`
	BookID  string     `json:"book_id" validate:"required"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// IssueBook lends a copy to a member.
func (s *CirculationService) IssueBook(ctx context.Context, req IssueBookRequest) (*domain.Loan, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.CanBorrow() {
		return nil, domainerrors.Inactive("user account is inactive")
	}

	loanID, err := id.Generate(id.PrefixLoan)
	if err != nil {
		return nil, fmt.Errorf("generate loan ID: %w", err)
	}

	now := time.Now().UTC()
	dueDate := now.AddDate(0, 0, s.circulation.LoanDays)
	if req.DueDate != nil {
		dueDate = req.DueDate.UTC()
	}
	loan := &domain.Loan{
		ID:        loanID,
		UserID:    req.UserID,
		BookID:    req.BookID,
		IssueDate: now,
		DueDate:   dueDate,
		Status:    domain.LoanStatusIssued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateLoan(ctx, loan); err != nil {
		switch {
		case errors.Is(err, store.ErrBookNotFound):
			return nil, domainerrors.NotFound("book not found")
		case errors.Is(err, store.ErrNoCopies):
			return nil, domainerrors.Unavailable("no copies available")
		case errors.Is(err, store.ErrDuplicateLoan):
			return nil, domainerrors.DuplicateLoan("user already has this book on loan")
		}
		return nil, fmt.Errorf("issue book: %w", err)
	}

	s.logger.Info("book issued",
		"loan_id", loanID,
		"user_id", req.UserID,
		"book_id", req.BookID,
		"due_date", loan.DueDate,
	)

	return s.getLoanView(ctx, loanID)
}

// ReturnBook closes a loan. The shelf copy comes back and any overdue
// fine is settled into the loan record. Returning a closed loan fails
// without touching anything.
func (s *CirculationService) ReturnBook(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.store.ReturnLoan(ctx, loanID, time.Now().UTC(), s.circulation.FineRate)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrLoanNotFound):
			return nil, domainerrors.NotFound("loan not found")
		case errors.Is(err, store.ErrLoanClosed):
			return nil, domainerrors.InvalidState("loan is already returned")
		}
		return nil, fmt.Errorf("return book: %w", err)
	}

	s.logger.Info("book returned",
		"loan_id", loanID,
		"fine", loan.FineAmount,
	)

	return loan, nil
}

// GetLoan returns a single loan with a live fine figure: active overdue
// loans show the fine as of now, not as of the last sweep.
func (s *CirculationService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.getLoanView(ctx, loanID)
}

// ListLoans returns a page of loans matching the filter, fines live.
func (s *CirculationService) ListLoans(ctx context.Context, filter sqlite.LoanFilter, page *store.Page) (*store.Paginated[*domain.Loan], error) {
	if page == nil {
		page = store.NewPage(1, 20)
	}
	page.Validate()

	loans, total, err := s.store.ListLoans(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	now := time.Now().UTC()
	for _, l := range loans {
		s.refreshView(l, now)
	}

	return store.NewPaginated(loans, page, total), nil
}

// ListOverdueLoans sweeps overdue status first, then returns every loan
// currently past due.
func (s *CirculationService) ListOverdueLoans(ctx context.Context, page *store.Page) (*store.Paginated[*domain.Loan], error) {
	if _, err := s.SweepOverdue(ctx); err != nil {
		return nil, err
	}
	return s.ListLoans(ctx, sqlite.LoanFilter{Status: domain.LoanStatusOverdue}, page)
}

// ListUserLoans returns a member's borrowing history, newest first.
func (s *CirculationService) ListUserLoans(ctx context.Context, userID string, activeOnly bool, page *store.Page) (*store.Paginated[*domain.Loan], error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.ListLoans(ctx, sqlite.LoanFilter{UserID: userID, ActiveOnly: activeOnly}, page)
}

// SweepOverdue flips issued loans past their due date to overdue and
// materializes their fines. Returns how many loans changed.
func (s *CirculationService) SweepOverdue(ctx context.Context) (int, error) {
	changed, err := s.store.SweepOverdue(ctx, time.Now().UTC(), s.circulation.FineRate)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue: %w", err)
	}
	if changed > 0 {
		s.logger.Info("overdue sweep", "loans_flagged", changed)
	}
	return changed, nil
}

// SweepFines refreshes the stored fine on every open loan, flipping
// newly overdue loans as it goes. Used before fine reporting.
func (s *CirculationService) SweepFines(ctx context.Context) (int, error) {
	changed, err := s.store.SweepActiveFines(ctx, time.Now().UTC(), s.circulation.FineRate)
	if err != nil {
		return 0, fmt.Errorf("sweep fines: %w", err)
	}
	return changed, nil
}

func (s *CirculationService) getLoanView(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, store.ErrLoanNotFound) {
			return nil, domainerrors.NotFound("loan not found")
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	s.refreshView(loan, time.Now().UTC())
	return loan, nil
}

// refreshView overlays live overdue status and fine on an active loan.
// View-level only; the stored row changes on sweeps and returns.
func (s *CirculationService) refreshView(l *domain.Loan, now time.Time) {
	if !l.IsActive() {
		return
	}
	if l.IsOverdueAt(now) {
		l.Status = domain.LoanStatusOverdue
		l.FineAmount = l.AccruedFine(now, s.circulation.FineRate)
	}
}
