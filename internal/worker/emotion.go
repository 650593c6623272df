package worker

import (
	"context"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/remote"
)

// EmotionSyncWorker pushes emotion logs one by one, so a bad row cannot
// hold back the others.
type EmotionSyncWorker struct {
	deps Deps
}

// NewEmotionSyncWorker creates the worker.
func NewEmotionSyncWorker(deps Deps) *EmotionSyncWorker {
	return &EmotionSyncWorker{deps: deps.withDefaults()}
}

// Name implements Worker.
func (w *EmotionSyncWorker) Name() string { return NameEmotion }

// Run implements Worker. A signed-in user is required. A user that still
// has a local-only id pushes nothing until profile reconciliation moves the
// logs to the remote id.
//
// Rows at the attempt ceiling are not fetched; they are counted as failed.
// Only a permanent rejection charges a row an attempt. The run reports Retry
// on any transient error. Otherwise, if some rows failed it reports Retry
// when at least one row went through and Failure when none did.
func (w *EmotionSyncWorker) Run(ctx context.Context) Result {
	r := startRun(w.deps, NameEmotion)

	userID, ok := w.deps.Users.CurrentUserID(ctx)
	if !ok {
		r.logger.Warn("no signed-in user")
		return r.finish(ctx, Failure)
	}
	if isLocalID(userID) {
		r.logger.Debug("user not reconciled yet, emotion logs wait", slog.String("user_id", userID))
		return r.finish(ctx, Success)
	}

	poisoned, err := w.deps.Store.CountPoisonedEmotionLogs(ctx, userID)
	if err != nil {
		return r.storeFailed(ctx, "count poisoned emotion logs", err)
	}
	r.failed += poisoned

	logs, err := w.deps.Store.UnsyncedEmotionLogs(ctx, userID, w.deps.BatchSize)
	if err != nil {
		return r.storeFailed(ctx, "unsynced emotion logs", err)
	}

	transient := false
	for _, l := range logs {
		if ctx.Err() != nil {
			transient = true
			break
		}

		err := w.deps.Remote.Set(ctx, CollectionEmotionLogs, l.ClientID,
			emotionFields(userID, millis(l.Timestamp), l.Emotions), remote.SetOptions{})
		if err != nil {
			r.failed++
			transient = transient || remote.IsTransient(err)
			r.logger.Warn("emotion log push failed",
				slog.Int64("id", l.ID),
				slog.Int("attempts", l.Attempts),
				slog.String("kind", remote.KindOf(err).String()),
				slog.String("error", err.Error()),
			)
			if ferr := w.recordFailure(ctx, l.ID, err); ferr != nil {
				return r.storeFailed(ctx, "record emotion log failure", ferr)
			}
			continue
		}

		if err := w.deps.Store.MarkEmotionLogsSynced(ctx, []int64{l.ID}); err != nil {
			return r.storeFailed(ctx, "mark emotion log synced", err)
		}
		r.synced++
	}

	if r.synced > 0 {
		w.deps.Notifier.SyncCompleted(ctx, userID, CollectionEmotionLogs, r.synced)
	}
	w.cleanup(ctx, r)

	switch {
	case transient:
		return r.finish(ctx, Retry)
	case r.failed > 0 && r.synced > 0:
		return r.finish(ctx, Retry)
	case r.failed > 0:
		return r.finish(ctx, Failure)
	default:
		return r.finish(ctx, Success)
	}
}

func (w *EmotionSyncWorker) recordFailure(ctx context.Context, id int64, cause error) error {
	if chargesAttempt(cause) {
		return w.deps.Store.RecordEmotionLogFailure(ctx, id, cause.Error())
	}
	return w.deps.Store.NoteEmotionLogError(ctx, id, cause.Error())
}

// cleanup drops synced logs past the retention window. It never touches
// unsynced rows, and a failure does not change the run's result.
func (w *EmotionSyncWorker) cleanup(ctx context.Context, r *run) {
	n, err := w.deps.Store.DeleteOldSyncedEmotionLogs(ctx, domain.RetentionCutoff(w.deps.Now()))
	if err != nil {
		r.logger.Warn("emotion log retention cleanup failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		r.logger.Debug("old synced emotion logs removed", slog.Int64("count", n))
	}
}
