package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
	"github.com/pustakapp/pustak-server/internal/service"
)

func (s *Server) registerFineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listFines",
		Method:      http.MethodGet,
		Path:        "/api/v1/fines",
		Summary:     "List fines",
		Description: "Returns ledger entries filtered by user or status",
		Tags:        []string{"Fines"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListFines)

	huma.Register(s.api, huma.Operation{
		OperationID: "createFine",
		Method:      http.MethodPost,
		Path:        "/api/v1/fines",
		Summary:     "Add fine",
		Description: "Records a manual charge against a member",
		Tags:        []string{"Fines"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateFine)

	huma.Register(s.api, huma.Operation{
		OperationID: "payFine",
		Method:      http.MethodPost,
		Path:        "/api/v1/fines/{id}/pay",
		Summary:     "Pay fine",
		Description: "Marks a ledger entry as settled",
		Tags:        []string{"Fines"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePayFine)
}

// === DTOs ===

// FineResponse contains fine ledger data in API responses.
type FineResponse struct {
	ID        string     `json:"id" doc:"Fine ID"`
	UserID    string     `json:"user_id" doc:"Member charged"`
	LoanID    string     `json:"loan_id,omitempty" doc:"Related loan, if any"`
	Amount    float64    `json:"amount" doc:"Amount charged"`
	Reason    string     `json:"reason" doc:"Why the charge was recorded"`
	Status    string     `json:"status" doc:"Status: pending or paid"`
	CreatedAt time.Time  `json:"created_at" doc:"Creation time"`
	PaidAt    *time.Time `json:"paid_at,omitempty" doc:"When the entry was settled"`
}

func fineResponseFrom(f *domain.Fine) FineResponse {
	return FineResponse{
		ID:        f.ID,
		UserID:    f.UserID,
		LoanID:    f.LoanID,
		Amount:    f.Amount,
		Reason:    f.Reason,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt,
		PaidAt:    f.PaidAt,
	}
}

// FineOutput wraps a single fine response for Huma.
type FineOutput struct {
	Body FineResponse
}

// ListFinesInput contains parameters for listing fines.
type ListFinesInput struct {
	Authorization string `header:"Authorization"`
	UserID        string `query:"user_id" doc:"Filter by member"`
	Status        string `query:"status" enum:"pending,paid," doc:"Filter by status"`
}

// ListFinesResponse contains a list of fines.
type ListFinesResponse struct {
	Fines []FineResponse `json:"fines" doc:"List of ledger entries"`
}

// ListFinesOutput wraps the list fines response for Huma.
type ListFinesOutput struct {
	Body ListFinesResponse
}

// CreateFineRequest is the request body for recording a manual charge.
type CreateFineRequest struct {
	UserID string  `json:"user_id" validate:"required" doc:"Member to charge"`
	LoanID string  `json:"loan_id,omitempty" doc:"Related loan, if any"`
	Amount float64 `json:"amount" validate:"required,gt=0" doc:"Amount to charge"`
	Reason string  `json:"reason" validate:"required,max=500" doc:"Why the charge is recorded"`
}

// CreateFineInput wraps the create fine request for Huma.
type CreateFineInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateFineRequest
}

// PayFineInput contains parameters for settling a fine.
type PayFineInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Fine ID"`
}

// === Handlers ===

func (s *Server) handleListFines(ctx context.Context, input *ListFinesInput) (*ListFinesOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if !caller.IsLibrarian() && input.UserID != caller.ID {
		return nil, domainerrors.Forbidden("members may only list their own fines")
	}

	fines, err := s.services.Fines.ListFines(ctx, input.UserID, domain.FineStatus(input.Status))
	if err != nil {
		return nil, err
	}

	resp := make([]FineResponse, len(fines))
	for i, f := range fines {
		resp[i] = fineResponseFrom(f)
	}

	return &ListFinesOutput{Body: ListFinesResponse{Fines: resp}}, nil
}

func (s *Server) handleCreateFine(ctx context.Context, input *CreateFineInput) (*FineOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	fine, err := s.services.Fines.AddFine(ctx, service.AddFineRequest{
		UserID: input.Body.UserID,
		LoanID: input.Body.LoanID,
		Amount: input.Body.Amount,
		Reason: input.Body.Reason,
	})
	if err != nil {
		return nil, err
	}

	return &FineOutput{Body: fineResponseFrom(fine)}, nil
}

func (s *Server) handlePayFine(ctx context.Context, input *PayFineInput) (*FineOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	fine, err := s.services.Fines.MarkPaid(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &FineOutput{Body: fineResponseFrom(fine)}, nil
}
