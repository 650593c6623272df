package worker

import (
	"context"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/remote"
)

// ActivitySummaryWorker pushes daily activity summaries in chunks, one
// dated document per day, followed by unlocked achievements.
type ActivitySummaryWorker struct {
	deps Deps
}

// NewActivitySummaryWorker creates the worker.
func NewActivitySummaryWorker(deps Deps) *ActivitySummaryWorker {
	return &ActivitySummaryWorker{deps: deps.withDefaults()}
}

// Name implements Worker.
func (w *ActivitySummaryWorker) Name() string { return NameActivitySummary }

// summaryDocID is the dated sub-document of a user's summaries.
func summaryDocID(userID, date string) string {
	return userID + "_" + date
}

// maxSummaryChunks bounds one run so a store that keeps returning rows it
// failed to mark cannot spin forever.
const maxSummaryChunks = 100

// Run implements Worker. A signed-in user is required. Each chunk is
// committed atomically and its ids are marked synced only after the
// commit; the first failing chunk ends the run.
func (w *ActivitySummaryWorker) Run(ctx context.Context) Result {
	r := startRun(w.deps, NameActivitySummary)

	userID, ok := w.deps.Users.CurrentUserID(ctx)
	if !ok {
		r.logger.Warn("no signed-in user")
		return r.finish(ctx, Failure)
	}

	for range maxSummaryChunks {
		chunk, err := w.deps.Store.UnsyncedDailySummaries(ctx, userID, w.deps.BatchSize)
		if err != nil {
			return r.storeFailed(ctx, "unsynced summaries", err)
		}
		if len(chunk) == 0 {
			break
		}

		ops := make([]remote.SetOp, 0, len(chunk))
		ids := make([]int64, 0, len(chunk))
		for _, s := range chunk {
			ops = append(ops, summaryOp(userID, s))
			ids = append(ids, s.ID)
		}
		if err := w.deps.Remote.BatchCommit(ctx, ops); err != nil {
			r.failed += len(ids)
			return r.remoteFailed(ctx, "summary batch", err)
		}
		if err := w.deps.Store.MarkSummariesSynced(ctx, ids); err != nil {
			return r.storeFailed(ctx, "mark summaries synced", err)
		}
		r.synced += len(ids)

		if len(chunk) < w.deps.BatchSize {
			break
		}
	}

	if res, done := w.pushAchievements(ctx, r, userID); done {
		return res
	}
	return r.finish(ctx, Success)
}

func summaryOp(userID string, s *domain.DailyActivitySummary) remote.SetOp {
	return remote.SetOp{
		Collection: CollectionActivitySummaries,
		ID:         summaryDocID(userID, s.Date),
		Fields: map[string]any{
			"userId":           userID,
			"date":             s.Date,
			"sessionCount":     s.SessionCount,
			"totalMinutes":     s.TotalMinutes,
			"mostCommonAction": s.MostCommonAction,
			"updatedAt":        remote.ServerTimestamp,
		},
	}
}

// pushAchievements sends every pending achievement in one batch. done is
// true when the run must end with res.
func (w *ActivitySummaryWorker) pushAchievements(ctx context.Context, r *run, userID string) (Result, bool) {
	pending, err := w.deps.Store.PendingAchievements(ctx, userID)
	if err != nil {
		return r.storeFailed(ctx, "pending achievements", err), true
	}
	if len(pending) == 0 {
		return Success, false
	}

	ops := make([]remote.SetOp, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, a := range pending {
		ops = append(ops, remote.SetOp{
			Collection: CollectionAchievements,
			ID:         a.Key(),
			Fields: map[string]any{
				"userId":        userID,
				"achievementId": a.AchievementID,
				"unlockedAt":    millis(a.UnlockedAt),
			},
		})
		ids = append(ids, a.AchievementID)
	}
	if err := w.deps.Remote.BatchCommit(ctx, ops); err != nil {
		r.failed += len(ids)
		return r.remoteFailed(ctx, "achievement batch", err), true
	}
	if err := w.deps.Store.MarkAchievementsSynced(ctx, userID, ids); err != nil {
		return r.storeFailed(ctx, "mark achievements synced", err), true
	}
	r.synced += len(ids)
	r.logger.Debug("achievements pushed", slog.Int("count", len(ids)))
	return Success, false
}
