package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/moodtune/moodtune-sync/internal/logger"
	"github.com/moodtune/moodtune-sync/internal/notify"
	"github.com/moodtune/moodtune-sync/internal/orchestrator"
	"github.com/moodtune/moodtune-sync/internal/service"
	"github.com/moodtune/moodtune-sync/internal/validation"
)

// ProvideValidator provides the struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideOutboxService provides the outbox service.
func ProvideOutboxService(i do.Injector) (*service.OutboxService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewOutboxService(storeHandle.Store, v, log.Logger, nil), nil
}

// ProvideAchievementService provides the achievement service.
func ProvideAchievementService(i do.Injector) (*service.AchievementService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	notifier := do.MustInvoke[notify.Notifier](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAchievementService(storeHandle.Store, notifier, log.Logger, nil), nil
}

// ProvideEmotionService provides the emotion log service.
func ProvideEmotionService(i do.Injector) (*service.EmotionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	outbox := do.MustInvoke[*service.OutboxService](i)
	achievements := do.MustInvoke[*service.AchievementService](i)
	orch := do.MustInvoke[*orchestrator.Orchestrator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewEmotionService(storeHandle.Store, outbox, achievements, orch, log.Logger, nil), nil
}

// ProvideInterestsService provides the interests service.
func ProvideInterestsService(i do.Injector) (*service.InterestsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	outbox := do.MustInvoke[*service.OutboxService](i)
	achievements := do.MustInvoke[*service.AchievementService](i)
	orch := do.MustInvoke[*orchestrator.Orchestrator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewInterestsService(storeHandle.Store, outbox, achievements, orch, log.Logger, nil), nil
}

// ProvideAccountService provides the account service.
func ProvideAccountService(i do.Injector) (*service.AccountService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	outbox := do.MustInvoke[*service.OutboxService](i)
	orch := do.MustInvoke[*orchestrator.Orchestrator](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAccountService(storeHandle.Store, outbox, orch, v, log.Logger, nil), nil
}

// ProvideActivityService provides the session and daily summary service.
// Days are cut in the host's local time zone.
func ProvideActivityService(i do.Injector) (*service.ActivityService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewActivityService(storeHandle.Store, log.Logger, nil, time.Local), nil
}

// ProvideSearchHistoryService provides the search history service.
func ProvideSearchHistoryService(i do.Injector) (*service.SearchHistoryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchHistoryService(storeHandle.Store, index.Index, log.Logger, nil), nil
}

// CacheServiceHandle waits for background refreshes on shutdown.
type CacheServiceHandle struct {
	*service.CacheService
}

// Shutdown implements do.Shutdownable.
func (h *CacheServiceHandle) Shutdown() error {
	h.Wait()
	return nil
}

// ProvideCacheService provides the TTL/SWR cache service.
func ProvideCacheService(i do.Injector) (*CacheServiceHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &CacheServiceHandle{CacheService: service.NewCacheService(storeHandle.Store, log.Logger, nil, 0)}, nil
}
