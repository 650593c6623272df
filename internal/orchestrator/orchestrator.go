// Package orchestrator owns the sync policy: which workers run
// periodically, which run once on demand, and under what constraints.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/moodtune/moodtune-sync/internal/config"
	"github.com/moodtune/moodtune-sync/internal/scheduler"
	"github.com/moodtune/moodtune-sync/internal/worker"
)

// Fixed cadences for the work that has no configuration knob.
const (
	EmotionInterval         = 15 * time.Minute
	EmotionFlex             = 5 * time.Minute
	ActivitySummaryInterval = time.Hour
	ActivitySummaryFlex     = 15 * time.Minute
	CleanupInterval         = 24 * time.Hour
	CleanupFlex             = time.Hour

	// DefaultImmediateTimeout bounds an optimistic sync run inline with a user action.
	DefaultImmediateTimeout = 5 * time.Second
)

// Periodic and one-shot work of the same worker are registered under
// different names so a pending one-shot is not swallowed by the periodic
// registration.
func periodicName(w string) string { return w + ".periodic" }
func oneShotName(w string) string  { return w + ".oneshot" }

// Workers is the set of workers the orchestrator schedules.
type Workers struct {
	Outbox          worker.Worker
	Telemetry       worker.Worker
	Interests       worker.Worker
	Profile         worker.Worker
	Emotion         worker.Worker
	ActivitySummary worker.Worker
	Cleanup         worker.Worker
}

// NewWorkers builds every sync worker over the same dependencies.
func NewWorkers(deps worker.Deps, retention time.Duration) Workers {
	return Workers{
		Outbox:          worker.NewOutboxWorker(deps),
		Telemetry:       worker.NewTelemetryWorker(deps),
		Interests:       worker.NewInterestsWorker(deps),
		Profile:         worker.NewProfileReconciliationWorker(deps),
		Emotion:         worker.NewEmotionSyncWorker(deps),
		ActivitySummary: worker.NewActivitySummaryWorker(deps),
		Cleanup:         worker.NewCleanupWorker(deps, retention),
	}
}

// Policy holds the configurable cadences.
type Policy struct {
	OutboxInterval    time.Duration
	OutboxFlex        time.Duration
	TelemetryInterval time.Duration
	TelemetryFlex     time.Duration
	ImmediateTimeout  time.Duration
}

// DefaultPolicy is outbox every 15m with 5m flex and telemetry every 5m
// with 2m flex.
func DefaultPolicy() Policy {
	return Policy{
		OutboxInterval:    15 * time.Minute,
		OutboxFlex:        5 * time.Minute,
		TelemetryInterval: 5 * time.Minute,
		TelemetryFlex:     2 * time.Minute,
		ImmediateTimeout:  DefaultImmediateTimeout,
	}
}

// PolicyFromConfig reads the cadences from the sync configuration,
// keeping defaults for unset values.
func PolicyFromConfig(cfg config.SyncConfig) Policy {
	p := DefaultPolicy()
	if cfg.OutboxInterval > 0 {
		p.OutboxInterval = cfg.OutboxInterval
		p.OutboxFlex = cfg.OutboxFlex
	}
	if cfg.TelemetryInterval > 0 {
		p.TelemetryInterval = cfg.TelemetryInterval
		p.TelemetryFlex = cfg.TelemetryFlex
	}
	if cfg.ImmediateTimeout > 0 {
		p.ImmediateTimeout = cfg.ImmediateTimeout
	}
	return p
}

// Orchestrator schedules the sync workers.
type Orchestrator struct {
	sched   *scheduler.Scheduler
	workers Workers
	policy  Policy
	logger  *slog.Logger
}

// New creates an orchestrator.
func New(sched *scheduler.Scheduler, workers Workers, policy Policy, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		sched:   sched,
		workers: workers,
		policy:  policy,
		logger:  logger,
	}
}

var network = scheduler.Constraints{RequireNetwork: true}

// StartPeriodicSync registers every periodic job. Jobs already registered
// are kept, so calling it again is harmless.
func (o *Orchestrator) StartPeriodicSync() {
	jobs := []scheduler.PeriodicRequest{
		{Worker: o.workers.Outbox, Interval: o.policy.OutboxInterval, Flex: o.policy.OutboxFlex, Constraints: network},
		{Worker: o.workers.Telemetry, Interval: o.policy.TelemetryInterval, Flex: o.policy.TelemetryFlex, Constraints: network},
		{Worker: o.workers.Emotion, Interval: EmotionInterval, Flex: EmotionFlex, Constraints: network},
		{Worker: o.workers.ActivitySummary, Interval: ActivitySummaryInterval, Flex: ActivitySummaryFlex, Constraints: network},
		{Worker: o.workers.Cleanup, Interval: CleanupInterval, Flex: CleanupFlex},
	}
	started := 0
	for _, job := range jobs {
		if job.Worker == nil {
			continue
		}
		job.Name = periodicName(job.Worker.Name())
		if o.sched.EnqueuePeriodic(job) {
			started++
		}
	}
	o.logger.Info("periodic sync started", slog.Int("registered", started))
}

func (o *Orchestrator) scheduleOnce(w worker.Worker) bool {
	if w == nil {
		return false
	}
	return o.sched.EnqueueOneShot(scheduler.OneShotRequest{
		Name:        oneShotName(w.Name()),
		Worker:      w,
		Constraints: network,
	})
}

// ScheduleProfileReconciliation queues one reconciliation run once the
// network is available. A pending request is kept.
func (o *Orchestrator) ScheduleProfileReconciliation() bool {
	return o.scheduleOnce(o.workers.Profile)
}

// ScheduleInterestsSync queues one interests sync.
func (o *Orchestrator) ScheduleInterestsSync() bool {
	return o.scheduleOnce(o.workers.Interests)
}

// ScheduleEmotionSync queues one emotion-log sync.
func (o *Orchestrator) ScheduleEmotionSync() bool {
	return o.scheduleOnce(o.workers.Emotion)
}

// SyncEmotionsNow runs the emotion worker inline, bounded by the immediate
// timeout. A Retry outcome, including a timeout, falls back to a scheduled
// one-shot.
// The caller's own cancellation is respected.
func (o *Orchestrator) SyncEmotionsNow(ctx context.Context) worker.Result {
	return o.runNow(ctx, o.workers.Emotion)
}

func (o *Orchestrator) runNow(ctx context.Context, w worker.Worker) worker.Result {
	if w == nil {
		return worker.Failure
	}
	ctx, cancel := context.WithTimeout(ctx, o.policy.ImmediateTimeout)
	defer cancel()

	result := w.Run(ctx)
	if ctx.Err() != nil {
		o.logger.Info("immediate sync timed out, deferring to background",
			slog.String("worker", w.Name()),
			slog.Duration("timeout", o.policy.ImmediateTimeout),
		)
		result = worker.Retry
	}
	if result == worker.Retry {
		o.scheduleOnce(w)
	}
	return result
}

// RunReport is the outcome of one worker in RunAll.
type RunReport struct {
	Worker string
	Result worker.Result
}

// RunAll runs every worker once, in dependency order, without the
// scheduler: the profile first so later pushes use the reconciled id,
// cleanup last. It stops early if ctx is done.
func (o *Orchestrator) RunAll(ctx context.Context) []RunReport {
	ordered := []worker.Worker{
		o.workers.Profile,
		o.workers.Interests,
		o.workers.Outbox,
		o.workers.Telemetry,
		o.workers.Emotion,
		o.workers.ActivitySummary,
		o.workers.Cleanup,
	}
	reports := make([]RunReport, 0, len(ordered))
	for _, w := range ordered {
		if w == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, RunReport{Worker: w.Name(), Result: w.Run(ctx)})
	}
	return reports
}

// Scheduled lists the names of registered work.
func (o *Orchestrator) Scheduled() []string {
	return o.sched.Scheduled()
}

// CancelAllWork stops and forgets every periodic and one-shot job.
func (o *Orchestrator) CancelAllWork() {
	o.sched.CancelAll()
	o.logger.Info("all sync work cancelled")
}
