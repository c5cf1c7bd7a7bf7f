package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pustakapp/pustak-server/internal/domain"
)

func (s *Server) registerStatsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getDashboard",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats/dashboard",
		Summary:     "Librarian dashboard",
		Description: "Returns the full circulation snapshot, recomputed on every call",
		Tags:        []string{"Stats"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetDashboard)
}

// DashboardInput contains parameters for the dashboard.
type DashboardInput struct {
	Authorization string `header:"Authorization"`
}

// DashboardOutput wraps the dashboard snapshot for Huma.
type DashboardOutput struct {
	Body domain.DashboardStats
}

func (s *Server) handleGetDashboard(ctx context.Context, input *DashboardInput) (*DashboardOutput, error) {
	if _, err := s.requireLibrarian(ctx, input.Authorization); err != nil {
		return nil, err
	}

	stats, err := s.services.Stats.Dashboard(ctx)
	if err != nil {
		return nil, err
	}

	return &DashboardOutput{Body: *stats}, nil
}
