// Package di provides dependency injection configuration for moodsync.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/config"
	"github.com/moodtune/moodtune-sync/internal/di/providers"
	"github.com/moodtune/moodtune-sync/internal/logger"
	"github.com/moodtune/moodtune-sync/internal/orchestrator"
	"github.com/moodtune/moodtune-sync/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// Nothing is constructed until it is invoked.
func NewContainer(flags config.Flags) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, flags)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideEventBus)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideDocstore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideSessionProvider)
	do.Provide(injector, providers.ProvideUserProvider)

	// Sync engine
	do.Provide(injector, providers.ProvideRemote)
	do.Provide(injector, providers.ProvideConnectivity)
	do.Provide(injector, providers.ProvideScheduler)
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideWorkers)
	do.Provide(injector, providers.ProvideOrchestrator)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideOutboxService)
	do.Provide(injector, providers.ProvideAchievementService)
	do.Provide(injector, providers.ProvideEmotionService)
	do.Provide(injector, providers.ProvideInterestsService)
	do.Provide(injector, providers.ProvideAccountService)
	do.Provide(injector, providers.ProvideActivityService)
	do.Provide(injector, providers.ProvideSearchHistoryService)
	do.Provide(injector, providers.ProvideCacheService)

	// Dev remote
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes the sync engine and registers its periodic work.
func Bootstrap(injector *do.RootScope) (*orchestrator.Orchestrator, error) {
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		return nil, err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return nil, err
	}
	users, err := do.Invoke[auth.UserProvider](injector)
	if err != nil {
		return nil, err
	}
	if _, err := do.Invoke[*providers.ConnectivityHandle](injector); err != nil {
		return nil, err
	}
	orch, err := do.Invoke[*orchestrator.Orchestrator](injector)
	if err != nil {
		return nil, err
	}

	// Services that schedule sync work
	_ = do.MustInvoke[*service.EmotionService](injector)
	_ = do.MustInvoke[*service.InterestsService](injector)
	_ = do.MustInvoke[*service.AccountService](injector)
	_ = do.MustInvoke[*providers.CacheServiceHandle](injector)

	// The cleanup job prunes search history without touching the index.
	ctx := context.Background()
	if userID, ok := users.CurrentUserID(ctx); ok {
		searches := do.MustInvoke[*service.SearchHistoryService](injector)
		if err := searches.Reindex(ctx, userID); err != nil {
			log.Warn("Failed to rebuild search suggestions", "error", err)
		}
	}

	orch.StartPeriodicSync()
	return orch, nil
}

// BootstrapRemote starts the dev remote server.
func BootstrapRemote(injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}
