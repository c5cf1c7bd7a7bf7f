package providers

import (
	"github.com/samber/do/v2"

	"github.com/pustakapp/pustak-server/internal/auth"
	"github.com/pustakapp/pustak-server/internal/config"
	"github.com/pustakapp/pustak-server/internal/logger"
	"github.com/pustakapp/pustak-server/internal/service"
)

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	limiterHandle := do.MustInvoke[*LoginLimiterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, limiterHandle.KeyedRateLimiter, log.Logger), nil
}

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, indexHandle.Index, log.Logger), nil
}

// ProvideMembershipService provides the membership service.
func ProvideMembershipService(i do.Injector) (*service.MembershipService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMembershipService(storeHandle.Store, cfg.Circulation, log.Logger), nil
}

// ProvideCirculationService provides the loan service.
func ProvideCirculationService(i do.Injector) (*service.CirculationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCirculationService(storeHandle.Store, cfg.Circulation, log.Logger), nil
}

// ProvideReservationService provides the reservation service.
func ProvideReservationService(i do.Injector) (*service.ReservationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	circulation := do.MustInvoke[*service.CirculationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReservationService(storeHandle.Store, circulation, log.Logger), nil
}

// ProvideFineService provides the fines ledger service.
func ProvideFineService(i do.Injector) (*service.FineService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	circulation := do.MustInvoke[*service.CirculationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFineService(storeHandle.Store, circulation, log.Logger), nil
}

// ProvideStatsService provides the dashboard service.
func ProvideStatsService(i do.Injector) (*service.StatsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	circulation := do.MustInvoke[*service.CirculationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStatsService(storeHandle.Store, circulation, log.Logger), nil
}

// ProvideNotificationService provides the notification service.
func ProvideNotificationService(i do.Injector) (*service.NotificationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	circulation := do.MustInvoke[*service.CirculationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNotificationService(storeHandle.Store, circulation, log.Logger), nil
}
