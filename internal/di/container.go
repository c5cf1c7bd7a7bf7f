// Package di provides dependency injection configuration for the Pustak server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/pustakapp/pustak-server/internal/auth"
	"github.com/pustakapp/pustak-server/internal/config"
	"github.com/pustakapp/pustak-server/internal/di/providers"
	"github.com/pustakapp/pustak-server/internal/logger"
	"github.com/pustakapp/pustak-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideLoginLimiter)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideMembershipService)
	do.Provide(injector, providers.ProvideCirculationService)
	do.Provide(injector, providers.ProvideReservationService)
	do.Provide(injector, providers.ProvideFineService)
	do.Provide(injector, providers.ProvideStatsService)
	do.Provide(injector, providers.ProvideNotificationService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is
// listening. This triggers lazy initialization of every provider.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*providers.LoginLimiterHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.MembershipService](injector)
	_ = do.MustInvoke[*service.CirculationService](injector)
	_ = do.MustInvoke[*service.ReservationService](injector)
	_ = do.MustInvoke[*service.FineService](injector)
	_ = do.MustInvoke[*service.StatsService](injector)
	_ = do.MustInvoke[*service.NotificationService](injector)

	// Server last; this starts listening.
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
