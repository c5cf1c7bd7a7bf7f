// Package api provides the HTTP API server and handlers for Pustak.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pustakapp/pustak-server/internal/service"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

// apiVersion is reported in the OpenAPI document.
const apiVersion = "1.0.0"

// Services groups the business logic services used by the API server.
type Services struct {
	Auth          *service.AuthService
	Catalog       *service.CatalogService
	Membership    *service.MembershipService
	Circulation   *service.CirculationService
	Reservations  *service.ReservationService
	Fines         *service.FineService
	Stats         *service.StatsService
	Notifications *service.NotificationService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    *sqlite.Store
	services *Services
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *sqlite.Store, services *Services, serverName string, logger *slog.Logger) *Server {
	s := &Server{
		store:    store,
		services: services,
		router:   chi.NewRouter(),
		logger:   logger,
	}

	s.setupMiddleware()

	config := huma.DefaultConfig(serverName, apiVersion)
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	RegisterErrorHandler()
	s.api = humachi.New(s.router, config)

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerBookRoutes()
	s.registerCategoryRoutes()
	s.registerUserRoutes()
	s.registerLoanRoutes()
	s.registerReservationRoutes()
	s.registerFineRoutes()
	s.registerStatsRoutes()
	s.registerMeRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(clientAddrMiddleware)
}

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// clientAddrKey is the context key for the caller's network address.
const clientAddrKey ctxKey = "clientAddr"

// clientAddrMiddleware stashes the caller's address in the context so
// huma handlers can reach it for login throttling.
func clientAddrMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientAddrKey, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientAddr returns the caller's network address, if known.
func clientAddr(ctx context.Context) string {
	addr, _ := ctx.Value(clientAddrKey).(string)
	return addr
}
