package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/pustakapp/pustak-server/internal/api"
	"github.com/pustakapp/pustak-server/internal/config"
	"github.com/pustakapp/pustak-server/internal/logger"
	"github.com/pustakapp/pustak-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	catalogService := do.MustInvoke[*service.CatalogService](i)

	services := &api.Services{
		Auth:          do.MustInvoke[*service.AuthService](i),
		Catalog:       catalogService,
		Membership:    do.MustInvoke[*service.MembershipService](i),
		Circulation:   do.MustInvoke[*service.CirculationService](i),
		Reservations:  do.MustInvoke[*service.ReservationService](i),
		Fines:         do.MustInvoke[*service.FineService](i),
		Stats:         do.MustInvoke[*service.StatsService](i),
		Notifications: do.MustInvoke[*service.NotificationService](i),
	}

	handler := api.NewServer(storeHandle.Store, services, cfg.Server.Name, log.Logger)

	// Bring the index in line with the catalog before serving search
	// traffic. A mapping change wipes the index on startup.
	go func() {
		if err := catalogService.RebuildSearchIndex(context.Background()); err != nil {
			log.Error("Search index rebuild failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
