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

// ReservationService manages pending holds. A hold claims a shelf copy
// for pickup without moving the copy count; effective availability
// shrinks instead.
type ReservationService struct {
	store       *sqlite.Store
	circulation *CirculationService
	logger      *slog.Logger
}

// NewReservationService creates a new reservation service.
func NewReservationService(store *sqlite.Store, circulation *CirculationService, logger *slog.Logger) *ReservationService {
	return &ReservationService{
		store:       store,
		circulation: circulation,
		logger:      logger,
	}
}

// ReserveRequest identifies who holds what.
type ReserveRequest struct {
	UserID string `json:"user_id" validate:"required"`
	BookID string `json:"book_id" validate:"required"`
}

// Reserve places a pending hold for a member.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*domain.Reservation, error) {
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

	reservationID, err := id.Generate(id.PrefixReservation)
	if err != nil {
		return nil, fmt.Errorf("generate reservation ID: %w", err)
	}

	now := time.Now().UTC()
	reservation := &domain.Reservation{
		ID:        reservationID,
		UserID:    req.UserID,
		BookID:    req.BookID,
		Status:    domain.ReservationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateReservation(ctx, reservation); err != nil {
		switch {
		case errors.Is(err, store.ErrBookNotFound):
			return nil, domainerrors.NotFound("book not found")
		case errors.Is(err, store.ErrNoCopies):
			return nil, domainerrors.Unavailable("no copies available")
		case errors.Is(err, store.ErrDuplicateLoan):
			return nil, domainerrors.DuplicateLoan("user already has this book on loan")
		case errors.Is(err, store.ErrDuplicateReservation):
			return nil, domainerrors.DuplicateReservation("user already has a pending hold for this book")
		case errors.Is(err, store.ErrNoReserveCapacity):
			return nil, domainerrors.NoCapacity("all remaining copies are already on hold")
		}
		return nil, fmt.Errorf("reserve book: %w", err)
	}

	s.logger.Info("hold placed",
		"reservation_id", reservationID,
		"user_id", req.UserID,
		"book_id", req.BookID,
	)

	return s.getView(ctx, reservationID)
}

// GetReservation returns a single reservation.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	return s.getView(ctx, reservationID)
}

// ListReservations returns a page of reservations matching the filter.
func (s *ReservationService) ListReservations(ctx context.Context, filter sqlite.ReservationFilter, page *store.Page) (*store.Paginated[*domain.Reservation], error) {
	if page == nil {
		page = store.NewPage(1, 20)
	}
	page.Validate()

	reservations, total, err := s.store.ListReservations(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	return store.NewPaginated(reservations, page, total), nil
}

// Cancel withdraws a pending hold. When requesterID is non-empty the
// hold must belong to that user; an ownership mismatch reads exactly
// like a missing reservation so callers cannot probe other members'
// holds. Librarians pass an empty requesterID to cancel any hold.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, requesterID string) error {
	err := s.store.CancelReservation(ctx, reservationID, requesterID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrReservationNotFound) {
			return domainerrors.NotFound("reservation not found")
		}
		return fmt.Errorf("cancel reservation: %w", err)
	}

	s.logger.Info("hold cancelled", "reservation_id", reservationID)
	return nil
}

// Fulfill completes a pickup: the held book is issued to the holder and
// the hold closes as fulfilled. The loan is created first so a pickup
// never consumes a hold without handing over a copy.
func (s *ReservationService) Fulfill(ctx context.Context, reservationID string) (*domain.Loan, error) {
	reservation, err := s.getView(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !reservation.IsPending() {
		return nil, domainerrors.InvalidStatef("reservation is already %s", reservation.Status)
	}

	loan, err := s.circulation.IssueBook(ctx, IssueBookRequest{
		UserID: reservation.UserID,
		BookID: reservation.BookID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.FulfillReservation(ctx, reservationID, time.Now().UTC()); err != nil {
		// The member has the book either way; the hold just stays
		// pending for a librarian to resolve.
		s.logger.Warn("loan issued but hold not closed",
			"reservation_id", reservationID,
			"loan_id", loan.ID,
			"error", err,
		)
	}

	s.logger.Info("hold fulfilled", "reservation_id", reservationID, "loan_id", loan.ID)
	return loan, nil
}

func (s *ReservationService) getView(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, store.ErrReservationNotFound) {
			return nil, domainerrors.NotFound("reservation not found")
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return reservation, nil
}
