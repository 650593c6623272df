// Package worker holds the background sync workers. Each run is
// idempotent and reports exactly one Result; scheduling is left to the
// orchestrator.
package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/metrics"
	"github.com/moodtune/moodtune-sync/internal/notify"
	"github.com/moodtune/moodtune-sync/internal/remote"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// Result is the outcome of one worker run.
type Result int

const (
	// Success: nothing to sync or everything synced.
	Success Result = iota
	// Retry: a transient failure occurred; run again with backoff.
	Retry
	// Failure: a precondition is unmet or the remote refused the work.
	// Not retried this cycle.
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Worker is one schedulable unit of sync work.
type Worker interface {
	Name() string
	Run(ctx context.Context) Result
}

// Worker names, also used as scheduler work names.
const (
	NameOutbox          = "outbox_sync"
	NameTelemetry       = "telemetry_sync"
	NameInterests       = "interests_sync"
	NameProfile         = "profile_reconciliation"
	NameEmotion         = "emotion_sync"
	NameActivitySummary = "activity_summary_sync"
	NameCleanup         = "local_cleanup"
)

// Remote collections.
const (
	CollectionUsers             = "users"
	CollectionInterests         = "user_interests"
	CollectionTelemetryEvents   = "telemetry_events"
	CollectionQuickActions      = "quick_actions"
	CollectionMoodUpdates       = "mood_updates"
	CollectionEmotionLogs       = "emotion_logs"
	CollectionLoginTelemetry    = "login_telemetry"
	CollectionActivitySummaries = "activity_summaries"
	CollectionAchievements      = "achievements"
)

// Deps are the collaborators shared by every worker.
type Deps struct {
	Store    store.Store
	Remote   remote.Backend
	Users    auth.UserProvider
	Notifier notify.Notifier
	Logger   *slog.Logger

	// BatchSize bounds one drain. Defaults to domain.DefaultBatchSize.
	BatchSize int
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.BatchSize <= 0 {
		d.BatchSize = domain.DefaultBatchSize
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = notify.Discard{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// tally counts the rows a run handled.
type tally struct {
	synced  int
	failed  int
	skipped int
}

// run is the bookkeeping every worker run shares.
type run struct {
	name   string
	logger *slog.Logger
	start  time.Time
	tally
}

func startRun(d Deps, name string) *run {
	return &run{
		name:   name,
		logger: d.Logger.With(slog.String("worker", name)),
		start:  time.Now(),
	}
}

// finish logs the run summary, records metrics and returns result.
func (r *run) finish(ctx context.Context, result Result) Result {
	elapsed := time.Since(r.start)
	metrics.ObserveRun(r.name, result.String(), elapsed)
	metrics.AddItems(r.name, r.synced, r.failed, r.skipped)

	level := slog.LevelInfo
	if result != Success {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "worker finished",
		slog.String("result", result.String()),
		slog.Int("synced", r.synced),
		slog.Int("failed", r.failed),
		slog.Int("skipped", r.skipped),
		slog.Duration("duration", elapsed),
	)
	return result
}

// storeFailed logs a local store error. The run is retried: the data is
// still on disk and nothing was lost.
func (r *run) storeFailed(ctx context.Context, op string, err error) Result {
	r.logger.Error("local store failed", slog.String("op", op), slog.String("error", err.Error()))
	return r.finish(ctx, Retry)
}

// remoteFailed maps a remote error to Retry (transient) or Failure.
func (r *run) remoteFailed(ctx context.Context, op string, err error) Result {
	r.logger.Warn("remote write failed",
		slog.String("op", op),
		slog.String("kind", remote.KindOf(err).String()),
		slog.String("error", err.Error()),
	)
	if remote.IsTransient(err) {
		return r.finish(ctx, Retry)
	}
	return r.finish(ctx, Failure)
}

// chargesAttempt reports whether a remote failure counts toward the attempt
// ceiling. Outages and unclassified errors do not.
func chargesAttempt(err error) bool {
	return remote.IsPermanent(err)
}

func isLocalID(userID string) bool {
	return strings.HasPrefix(userID, domain.LocalUserIDPrefix+"-")
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
