package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/remote"
)

// TelemetryWorker pushes login telemetry in one batch per run. Login
// attempts are recorded before anyone is signed in, so it has no user
// precondition.
type TelemetryWorker struct {
	deps Deps
}

// NewTelemetryWorker creates the worker.
func NewTelemetryWorker(deps Deps) *TelemetryWorker {
	return &TelemetryWorker{deps: deps.withDefaults()}
}

// Name implements Worker.
func (w *TelemetryWorker) Name() string { return NameTelemetry }

// telemetryDocID is stable for a row, so a replayed batch overwrites.
func telemetryDocID(t *domain.LoginTelemetry) string {
	return fmt.Sprintf("%d-%d", t.Timestamp.UnixMilli(), t.ID)
}

// Run implements Worker. A permanently rejected batch charges every row one
// attempt; rows at the ceiling are no longer fetched. A transient failure
// charges nothing.
func (w *TelemetryWorker) Run(ctx context.Context) Result {
	r := startRun(w.deps, NameTelemetry)

	rows, err := w.deps.Store.PendingTelemetry(ctx, w.deps.BatchSize)
	if err != nil {
		return r.storeFailed(ctx, "pending telemetry", err)
	}
	if len(rows) == 0 {
		return r.finish(ctx, Success)
	}

	ops := make([]remote.SetOp, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, t := range rows {
		ops = append(ops, remote.SetOp{
			Collection: CollectionLoginTelemetry,
			ID:         telemetryDocID(t),
			Fields: map[string]any{
				"email":        domain.NormalizeEmail(t.Email),
				"loginType":    string(t.LoginType),
				"success":      t.Success,
				"timestamp":    millis(t.Timestamp),
				"errorMessage": t.ErrorMessage,
				"receivedAt":   remote.ServerTimestamp,
			},
		})
		ids = append(ids, t.ID)
	}

	if err := w.deps.Remote.BatchCommit(ctx, ops); err != nil {
		if chargesAttempt(err) {
			if ferr := w.deps.Store.RecordTelemetryFailure(ctx, ids); ferr != nil {
				r.logger.Error("failed to record telemetry failure", slog.String("error", ferr.Error()))
			}
		}
		r.failed = len(ids)
		return r.remoteFailed(ctx, "telemetry batch", err)
	}

	if err := w.deps.Store.MarkTelemetrySynced(ctx, ids); err != nil {
		return r.storeFailed(ctx, "mark telemetry synced", err)
	}
	r.synced = len(ids)
	return r.finish(ctx, Success)
}
