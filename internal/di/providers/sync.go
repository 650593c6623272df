package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/config"
	"github.com/moodtune/moodtune-sync/internal/connectivity"
	"github.com/moodtune/moodtune-sync/internal/logger"
	"github.com/moodtune/moodtune-sync/internal/notify"
	"github.com/moodtune/moodtune-sync/internal/orchestrator"
	"github.com/moodtune/moodtune-sync/internal/scheduler"
	"github.com/moodtune/moodtune-sync/internal/worker"
)

// ConnectivityHandle wraps the probe monitor with its context for lifecycle management.
type ConnectivityHandle struct {
	*connectivity.ProbeMonitor
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ConnectivityHandle) Shutdown() error {
	h.cancel()
	h.Wait()
	return nil
}

// ProvideConnectivity provides the network monitor. It probes the remote's
// health endpoint in the background.
func ProvideConnectivity(i do.Injector) (*ConnectivityHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	remoteHandle := do.MustInvoke[*RemoteHandle](i)

	monitor := connectivity.NewProbeMonitor(remoteHandle.Client, cfg.Sync.ProbeInterval, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	monitor.Start(ctx)

	log.Info("Connectivity monitor started", "interval", cfg.Sync.ProbeInterval)

	return &ConnectivityHandle{ProbeMonitor: monitor, cancel: cancel}, nil
}

// SchedulerHandle wraps the scheduler with shutdown capability.
type SchedulerHandle struct {
	*scheduler.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	return h.Close()
}

// ProvideScheduler provides the background work scheduler.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	monitor := do.MustInvoke[*ConnectivityHandle](i)
	bus := do.MustInvoke[*EventBusHandle](i)

	sched := scheduler.New(monitor.ProbeMonitor, scheduler.Options{
		MinBackoff: cfg.Sync.MinBackoff,
		MaxBackoff: cfg.Sync.MaxBackoff,
	}, bus.Bus, log.Logger)

	return &SchedulerHandle{Scheduler: sched}, nil
}

// ProvideNotifier provides the user-facing notifier.
func ProvideNotifier(i do.Injector) (notify.Notifier, error) {
	log := do.MustInvoke[*logger.Logger](i)
	bus := do.MustInvoke[*EventBusHandle](i)
	return notify.NewBusNotifier(bus.Bus, log.Logger), nil
}

// ProvideWorkers provides every sync worker over shared dependencies.
func ProvideWorkers(i do.Injector) (orchestrator.Workers, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	remoteHandle := do.MustInvoke[*RemoteHandle](i)
	users := do.MustInvoke[auth.UserProvider](i)
	notifier := do.MustInvoke[notify.Notifier](i)

	deps := worker.Deps{
		Store:     storeHandle.Store,
		Remote:    remoteHandle.Limited,
		Users:     users,
		Notifier:  notifier,
		Logger:    log.Logger,
		BatchSize: cfg.Sync.BatchSize,
	}
	return orchestrator.NewWorkers(deps, cfg.Sync.Retention()), nil
}

// ProvideOrchestrator provides the sync orchestrator.
func ProvideOrchestrator(i do.Injector) (*orchestrator.Orchestrator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sched := do.MustInvoke[*SchedulerHandle](i)
	workers := do.MustInvoke[orchestrator.Workers](i)

	return orchestrator.New(sched.Scheduler, workers, orchestrator.PolicyFromConfig(cfg.Sync), log.Logger), nil
}
