package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
)

// MaxAIRecommendations bounds the AI recommendation cache.
const MaxAIRecommendations = 200

// CleanupWorker prunes local tables: synced queue rows past retention,
// expired cache rows and old search history. It never touches unsynced rows
// and needs no network.
type CleanupWorker struct {
	deps      Deps
	retention time.Duration
}

// NewCleanupWorker creates the worker. A non-positive retention falls back
// to domain.RetentionPeriod.
func NewCleanupWorker(deps Deps, retention time.Duration) *CleanupWorker {
	if retention <= 0 {
		retention = domain.RetentionPeriod
	}
	return &CleanupWorker{deps: deps.withDefaults(), retention: retention}
}

// Name implements Worker.
func (w *CleanupWorker) Name() string { return NameCleanup }

// Run implements Worker. A failing step is retried with the whole run;
// every step is idempotent.
func (w *CleanupWorker) Run(ctx context.Context) Result {
	r := startRun(w.deps, NameCleanup)
	now := w.deps.Now()
	cutoff := now.Add(-w.retention)
	s := w.deps.Store

	steps := []struct {
		name string
		fn   func() (int64, error)
	}{
		{"outbox", func() (int64, error) { return s.DeleteSyncedOutboxBefore(ctx, cutoff) }},
		{"emotion_logs", func() (int64, error) { return s.DeleteOldSyncedEmotionLogs(ctx, domain.RetentionCutoff(now)) }},
		{"login_telemetry", func() (int64, error) { return s.DeleteSyncedTelemetryBefore(ctx, cutoff) }},
		{"daily_summaries", func() (int64, error) {
			return s.DeleteSyncedSummariesBefore(ctx, cutoff.UTC().Format(domain.SummaryDateLayout))
		}},
		{"search_history", func() (int64, error) { return s.DeleteSearchHistoryBefore(ctx, cutoff) }},
		{"expired_caches", func() (int64, error) { return s.PurgeExpiredCaches(ctx, now) }},
		{"ai_recommendations", func() (int64, error) { return s.EvictAIRecommendations(ctx, MaxAIRecommendations) }},
	}

	for _, step := range steps {
		n, err := step.fn()
		if err != nil {
			return r.storeFailed(ctx, "cleanup "+step.name, err)
		}
		if n > 0 {
			r.synced += int(n)
			r.logger.Debug("pruned rows", slog.String("table", step.name), slog.Int64("count", n))
		}
	}
	return r.finish(ctx, Success)
}
