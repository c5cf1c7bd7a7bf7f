package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/service"
	"github.com/pustakapp/pustak-server/internal/store"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

func (s *Server) registerReservationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listReservations",
		Method:      http.MethodGet,
		Path:        "/api/v1/reservations",
		Summary:     "List reservations",
		Description: "Returns reservations filtered by user, book, or status",
		Tags:        []string{"Reservations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListReservations)

	huma.Register(s.api, huma.Operation{
		OperationID: "createReservation",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations",
		Summary:     "Reserve book",
		Description: "Places a hold on a book with shelf copies remaining",
		Tags:        []string{"Reservations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateReservation)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReservation",
		Method:      http.MethodGet,
		Path:        "/api/v1/reservations/{id}",
		Summary:     "Get reservation",
		Description: "Returns a reservation by ID",
		Tags:        []string{"Reservations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetReservation)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelReservation",
		Method:      http.MethodDelete,
		Path:        "/api/v1/reservations/{id}",
		Summary:     "Cancel reservation",
		Description: "Releases a pending hold",
		Tags:        []string{"Reservations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCancelReservation)

	huma.Register(s.api, huma.Operation{
		OperationID: "fulfillReservation",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations/{id}/fulfill",
		Summary:     "Fulfill reservation",
		Description: "Hands the held copy over as a loan and closes the hold",
		Tags:        []string{"Reservations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleFulfillReservation)
}

// === DTOs ===

// ReservationResponse contains reservation data in API responses.
type ReservationResponse struct {
	ID               string    `json:"id" doc:"Reservation ID"`
	UserID           string    `json:"user_id" doc:"Holder ID"`
	UserName         string    `json:"user_name,omitempty" doc:"Holder name"`
	BookID           string    `json:"book_id" doc:"Book ID"`
	BookTitle        string    `json:"book_title,omitempty" doc:"Book title"`
	Status           string    `json:"status" doc:"Status: pending, fulfilled, or cancelled"`
	ExpectedPickupBy time.Time `json:"expected_pickup_by" doc:"Advisory end of the pickup window"`
	CreatedAt        time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt        time.Time `json:"updated_at" doc:"Last update time"`
}

func reservationResponseFrom(r *domain.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:               r.ID,
		UserID:           r.UserID,
		UserName:         r.UserName,
		BookID:           r.BookID,
		BookTitle:        r.BookTitle,
		Status:           string(r.Status),
		ExpectedPickupBy: r.ExpectedPickupBy(),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// ReservationOutput wraps a single reservation response for Huma.
type ReservationOutput struct {
	Body ReservationResponse
}

// ListReservationsInput contains parameters for listing reservations.
type ListReservationsInput struct {
	Authorization string `header:"Authorization"`
	UserID        string `query:"user_id" doc:"Filter by holder"`
	BookID        string `query:"book_id" doc:"Filter by book"`
	Status        string `query:"status" enum:"pending,fulfilled,cancelled," doc:"Filter by status"`
	Page          int    `query:"page" doc:"Page number (1-based)"`
	PerPage       int    `query:"per_page" doc:"Items per page"`
}

// ListReservationsResponse contains one page of reservations.
type ListReservationsResponse struct {
	Reservations []ReservationResponse `json:"reservations" doc:"List of reservations"`
	Meta         PaginationMeta        `json:"meta" doc:"Pagination metadata"`
}

// ListReservationsOutput wraps the list reservations response for Huma.
type ListReservationsOutput struct {
	Body ListReservationsResponse
}

func reservationPageOutput(p *store.Paginated[*domain.Reservation]) *ListReservationsOutput {
	resp := make([]ReservationResponse, len(p.Items))
	for i, r := range p.Items {
		resp[i] = reservationResponseFrom(r)
	}
	return &ListReservationsOutput{Body: ListReservationsResponse{Reservations: resp, Meta: metaFrom(p)}}
}

// CreateReservationRequest is the request body for placing a hold.
type CreateReservationRequest struct {
	UserID string `json:"user_id,omitempty" doc:"Holder ID, defaults to the caller"`
	BookID string `json:"book_id" validate:"required" doc:"Book ID"`
}

// CreateReservationInput wraps the reservation request for Huma.
type CreateReservationInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateReservationRequest
}

// GetReservationInput contains parameters for getting a reservation.
type GetReservationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Reservation ID"`
}

// CancelReservationInput contains parameters for cancelling a reservation.
type CancelReservationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Reservation ID"`
}

// FulfillReservationInput contains parameters for fulfilling a reservation.
type FulfillReservationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Reservation ID"`
}

// === Handlers ===

func (s *Server) handleListReservations(ctx context.Context, input *ListReservationsInput) (*ListReservationsOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if !caller.IsLibrarian() && input.UserID != caller.ID {
		return nil, domainerrors.Forbidden("members may only list their own reservations")
	}

	reservations, err := s.services.Reservations.ListReservations(ctx, sqlite.ReservationFilter{
		UserID: input.UserID,
		BookID: input.BookID,
		Status: domain.ReservationStatus(input.Status),
	}, pageFromQuery(input.Page, input.PerPage))
	if err != nil {
		return nil, err
	}

	return reservationPageOutput(reservations), nil
}

func (s *Server) handleCreateReservation(ctx context.Context, input *CreateReservationInput) (*ReservationOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	userID := input.Body.UserID
	if userID == "" {
		userID = caller.ID
	}
	if userID != caller.ID && !caller.IsLibrarian() {
		return nil, domainerrors.Forbidden("members may only reserve for themselves")
	}

	reservation, err := s.services.Reservations.Reserve(ctx, service.ReserveRequest{
		UserID: userID,
		BookID: input.Body.BookID,
	})
	if err != nil {
		return nil, err
	}

	return &ReservationOutput{Body: reservationResponseFrom(reservation)}, nil
}

func (s *Server) handleGetReservation(ctx context.Context, input *GetReservationInput) (*ReservationOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	reservation, err := s.services.Reservations.GetReservation(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !caller.IsLibrarian() && reservation.UserID != caller.ID {
		return nil, huma.Error404NotFound("reservation not found")
	}

	return &ReservationOutput{Body: reservationResponseFrom(reservation)}, nil
}

func (s *Server) handleCancelReservation(ctx context.Context, input *CancelReservationInput) (*struct{}, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	// Librarians may release any hold; members only their own.
	requesterID := caller.ID
	if caller.IsLibrarian() {
		requesterID = ""
	}
	if err := s.services.Reservations.Cancel(ctx, input.ID, requesterID); err != nil {
		return nil, err
	}

	return &struct{}{}, nil
}

func (s *Server) handleFulfillReservation(ctx context.Context, input *FulfillReservationInput) (*LoanOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	loan, err := s.services.Reservations.Fulfill(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &LoanOutput{Body: loanResponseFrom(loan)}, nil
}
