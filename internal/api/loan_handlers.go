package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/service"
	"github.com/pustakapp/pustak-server/internal/store"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

func (s *Server) registerLoanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans",
		Summary:     "List loans",
		Description: "Returns loans filtered by user, book, or status",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListLoans)

	huma.Register(s.api, huma.Operation{
		OperationID: "issueBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/loans",
		Summary:     "Issue book",
		Description: "Lends a copy of a book to a member",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleIssueBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listOverdueLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/overdue",
		Summary:     "List overdue loans",
		Description: "Returns loans past their due date, refreshing overdue status first",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListOverdueLoans)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLoan",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/{id}",
		Summary:     "Get loan",
		Description: "Returns a loan by ID with its current fine",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetLoan)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/loans/{id}/return",
		Summary:     "Return book",
		Description: "Closes a loan, restores the copy, and settles the overdue fine",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReturnBook)
}

// === DTOs ===

// LoanResponse contains loan data in API responses.
type LoanResponse struct {
	ID         string     `json:"id" doc:"Loan ID"`
	UserID     string     `json:"user_id" doc:"Borrower ID"`
	UserName   string     `json:"user_name,omitempty" doc:"Borrower name"`
	BookID     string     `json:"book_id" doc:"Book ID"`
	BookTitle  string     `json:"book_title,omitempty" doc:"Book title"`
	IssueDate  time.Time  `json:"issue_date" doc:"When the copy went out"`
	DueDate    time.Time  `json:"due_date" doc:"When the copy is due back"`
	ReturnDate *time.Time `json:"return_date,omitempty" doc:"When the copy came back"`
	FineAmount float64    `json:"fine_amount" doc:"Fine accrued on this loan"`
	Status     string     `json:"status" doc:"Loan status: issued, overdue, or returned"`
	CreatedAt  time.Time  `json:"created_at" doc:"Creation time"`
	UpdatedAt  time.Time  `json:"updated_at" doc:"Last update time"`
}

func loanResponseFrom(l *domain.Loan) LoanResponse {
	return LoanResponse{
		ID:         l.ID,
		UserID:     l.UserID,
		UserName:   l.UserName,
		BookID:     l.BookID,
		BookTitle:  l.BookTitle,
		IssueDate:  l.IssueDate,
		DueDate:    l.DueDate,
		ReturnDate: l.ReturnDate,
		FineAmount: l.FineAmount,
		Status:     string(l.Status),
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

// LoanOutput wraps a single loan response for Huma.
type LoanOutput struct {
	Body LoanResponse
}

// ListLoansResponse contains one page of loans.
type ListLoansResponse struct {
	Loans []LoanResponse `json:"loans" doc:"List of loans"`
	Meta  PaginationMeta `json:"meta" doc:"Pagination metadata"`
}

// ListLoansOutput wraps the list loans response for Huma.
type ListLoansOutput struct {
	Body ListLoansResponse
}

func loanPageOutput(p *store.Paginated[*domain.Loan]) *ListLoansOutput {
	resp := make([]LoanResponse, len(p.Items))
	for i, l := range p.Items {
		resp[i] = loanResponseFrom(l)
	}
	return &ListLoansOutput{Body: ListLoansResponse{Loans: resp, Meta: metaFrom(p)}}
}

// ListLoansInput contains parameters for listing loans.
type ListLoansInput struct {
	Authorization string `header:"Authorization"`
	UserID        string `query:"user_id" doc:"Filter by borrower"`
	BookID        string `query:"book_id" doc:"Filter by book"`
	Status        string `query:"status" enum:"issued,overdue,returned," doc:"Filter by status"`
	Active        bool   `query:"active" doc:"Only loans currently out"`
	Page          int    `query:"page" doc:"Page number (1-based)"`
	PerPage       int    `query:"per_page" doc:"Items per page"`
}

// IssueBookRequest is the request body for issuing a book.
type IssueBookRequest struct {
	UserID  string     `json:"user_id" validate:"required" doc:"Borrower ID"`
	BookID  string     `json:"book_id" validate:"required" doc:"Book ID"`
	DueDate *time.Time `json:"due_date,omitempty" doc:"Due date override, defaults to the configured loan period"`
}

// IssueBookInput wraps the issue book request for Huma.
type IssueBookInput struct {
	Authorization string `header:"Authorization"`
	Body          IssueBookRequest
}

// ListOverdueLoansInput contains parameters for listing overdue loans.
type ListOverdueLoansInput struct {
	Authorization string `header:"Authorization"`
	Page          int    `query:"page" doc:"Page number (1-based)"`
	PerPage       int    `query:"per_page" doc:"Items per page"`
}

// GetLoanInput contains parameters for getting a loan.
type GetLoanInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Loan ID"`
}

// ReturnBookInput contains parameters for returning a book.
type ReturnBookInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Loan ID"`
}

// === Handlers ===

func (s *Server) handleListLoans(ctx context.Context, input *ListLoansInput) (*ListLoansOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	loans, err := s.services.Circulation.ListLoans(ctx, sqlite.LoanFilter{
		UserID:     input.UserID,
		BookID:     input.BookID,
		Status:     domain.LoanStatus(input.Status),
		ActiveOnly: input.Active,
	}, pageFromQuery(input.Page, input.PerPage))
	if err != nil {
		return nil, err
	}

	return loanPageOutput(loans), nil
}

func (s *Server) handleIssueBook(ctx context.Context, input *IssueBookInput) (*LoanOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	loan, err := s.services.Circulation.IssueBook(ctx, service.IssueBookRequest{
		UserID:  input.Body.UserID,
		BookID:  input.Body.BookID,
		DueDate: input.Body.DueDate,
	})
	if err != nil {
		return nil, err
	}

	return &LoanOutput{Body: loanResponseFrom(loan)}, nil
}

func (s *Server) handleListOverdueLoans(ctx context.Context, input *ListOverdueLoansInput) (*ListLoansOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	loans, err := s.services.Circulation.ListOverdueLoans(ctx, pageFromQuery(input.Page, input.PerPage))
	if err != nil {
		return nil, err
	}

	return loanPageOutput(loans), nil
}

func (s *Server) handleGetLoan(ctx context.Context, input *GetLoanInput) (*LoanOutput, error) {
	caller, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	loan, err := s.services.Circulation.GetLoan(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	// Members only see their own loans; the mismatch reads as not found.
	if !caller.IsLibrarian() && loan.UserID != caller.ID {
		return nil, huma.Error404NotFound("loan not found")
	}

	return &LoanOutput{Body: loanResponseFrom(loan)}, nil
}

func (s *Server) handleReturnBook(ctx context.Context, input *ReturnBookInput) (*LoanOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	loan, err := s.services.Circulation.ReturnBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &LoanOutput{Body: loanResponseFrom(loan)}, nil
}
