package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

func (s *Server) registerMeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getMe",
		Method:      http.MethodGet,
		Path:        "/api/v1/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's account",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMe)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMyLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/loans",
		Summary:     "Get my loans",
		Description: "Returns the authenticated user's loans",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMyLoans)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMyReservations",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/reservations",
		Summary:     "Get my reservations",
		Description: "Returns the authenticated user's reservations",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMyReservations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMySummary",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/summary",
		Summary:     "Get my summary",
		Description: "Returns the authenticated user's borrowing snapshot",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMySummary)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMyNotifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/notifications",
		Summary:     "Get my notifications",
		Description: "Refreshes and returns the authenticated user's notifications",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMyNotifications)

	huma.Register(s.api, huma.Operation{
		OperationID: "markNotificationSeen",
		Method:      http.MethodPost,
		Path:        "/api/v1/me/notifications/{id}/seen",
		Summary:     "Mark notification seen",
		Description: "Marks one of the authenticated user's notifications as seen",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMarkNotificationSeen)

	huma.Register(s.api, huma.Operation{
		OperationID: "markAllNotificationsSeen",
		Method:      http.MethodPost,
		Path:        "/api/v1/me/notifications/seen",
		Summary:     "Mark all notifications seen",
		Description: "Marks all of the authenticated user's notifications as seen",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMarkAllNotificationsSeen)
}

// === DTOs ===

// MeInput contains only the auth header.
type MeInput struct {
	Authorization string `header:"Authorization"`
}

// MyLoansInput contains parameters for listing the caller's loans.
type MyLoansInput struct {
	Authorization string `header:"Authorization"`
	Active        bool   `query:"active" doc:"Only loans currently out"`
	Page          int    `query:"page" doc:"Page number (1-based)"`
	PerPage       int    `query:"per_page" doc:"Items per page"`
}

// MyReservationsInput contains parameters for listing the caller's reservations.
type MyReservationsInput struct {
	Authorization string `header:"Authorization"`
	Status        string `query:"status" enum:"pending,fulfilled,cancelled," doc:"Filter by status"`
	Page          int    `query:"page" doc:"Page number (1-based)"`
	PerPage       int    `query:"per_page" doc:"Items per page"`
}

// MemberSummaryOutput wraps the member snapshot for Huma.
type MemberSummaryOutput struct {
	Body domain.MemberStats
}

// NotificationResponse contains notification data in API responses.
type NotificationResponse struct {
	ID        string    `json:"id" doc:"Notification ID"`
	Type      string    `json:"type" doc:"Type: overdue, due_soon, or reservation"`
	RefID     string    `json:"ref_id" doc:"Loan or reservation the notice is about"`
	Message   string    `json:"message" doc:"Notice text"`
	Seen      bool      `json:"seen" doc:"Whether the user has seen it"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
}

// MyNotificationsInput contains parameters for listing notifications.
type MyNotificationsInput struct {
	Authorization string `header:"Authorization"`
	Unseen        bool   `query:"unseen" doc:"Only notifications not yet seen"`
}

// ListNotificationsResponse contains a list of notifications.
type ListNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications" doc:"List of notifications"`
}

// ListNotificationsOutput wraps the notifications response for Huma.
type ListNotificationsOutput struct {
	Body ListNotificationsResponse
}

// MarkSeenInput contains parameters for marking one notification seen.
type MarkSeenInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Notification ID"`
}

// MarkAllSeenResponse reports how many notifications were marked.
type MarkAllSeenResponse struct {
	Marked int `json:"marked" doc:"Notifications newly marked seen"`
}

// MarkAllSeenOutput wraps the mark-all response for Huma.
type MarkAllSeenOutput struct {
	Body MarkAllSeenResponse
}

// === Handlers ===

func (s *Server) handleGetMe(ctx context.Context, input *MeInput) (*UserOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	return &UserOutput{Body: userResponseFrom(caller)}, nil
}

func (s *Server) handleGetMyLoans(ctx context.Context, input *MyLoansInput) (*ListLoansOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	loans, err := s.services.Circulation.ListUserLoans(ctx, caller.ID, input.Active, pageFromQuery(input.Page, input.PerPage))
	if err != nil {
		return nil, err
	}

	return loanPageOutput(loans), nil
}

func (s *Server) handleGetMyReservations(ctx context.Context, input *MyReservationsInput) (*ListReservationsOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	reservations, err := s.services.Reservations.ListReservations(ctx, sqlite.ReservationFilter{
		UserID: caller.ID,
		Status: domain.ReservationStatus(input.Status),
	}, pageFromQuery(input.Page, input.PerPage))
	if err != nil {
		return nil, err
	}

	return reservationPageOutput(reservations), nil
}

func (s *Server) handleGetMySummary(ctx context.Context, input *MeInput) (*MemberSummaryOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	summary, err := s.services.Stats.MemberSummary(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	return &MemberSummaryOutput{Body: *summary}, nil
}

func (s *Server) handleGetMyNotifications(ctx context.Context, input *MyNotificationsInput) (*ListNotificationsOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	notifications, err := s.services.Notifications.SyncForUser(ctx, caller.ID, input.Unseen)
	if err != nil {
		return nil, err
	}

	resp := make([]NotificationResponse, len(notifications))
	for i, n := range notifications {
		resp[i] = NotificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			RefID:     n.RefID,
			Message:   n.Message,
			Seen:      n.Seen,
			CreatedAt: n.CreatedAt,
		}
	}

	return &ListNotificationsOutput{Body: ListNotificationsResponse{Notifications: resp}}, nil
}

func (s *Server) handleMarkNotificationSeen(ctx context.Context, input *MarkSeenInput) (*struct{}, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Notifications.MarkSeen(ctx, input.ID, caller.ID); err != nil {
		return nil, err
	}

	return &struct{}{}, nil
}

func (s *Server) handleMarkAllNotificationsSeen(ctx context.Context, input *MeInput) (*MarkAllSeenOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	marked, err := s.services.Notifications.MarkAllSeen(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	return &MarkAllSeenOutput{Body: MarkAllSeenResponse{Marked: marked}}, nil
}
