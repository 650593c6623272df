package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/metrics"
	"github.com/moodtune/moodtune-sync/internal/remote"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// handler turns one decoded outbox row into the remote write it stands for.
// userID is the row's owner after reconciliation. send is false when
// another worker owns the remote document; the row is then acknowledged
// without a write.
type handler func(op *domain.OutboxOperation, p domain.Payload, userID string) (write remote.SetOp, send bool, err error)

// typed adapts a handler for one concrete payload type.
func typed[T domain.Payload](fn func(op *domain.OutboxOperation, p T, userID string) remote.SetOp) handler {
	return func(op *domain.OutboxOperation, payload domain.Payload, userID string) (remote.SetOp, bool, error) {
		p, ok := payload.(T)
		if !ok {
			return remote.SetOp{}, false, mismatched(op, payload)
		}
		return fn(op, p, userID), true, nil
	}
}

// acknowledged is the handler for a payload type whose remote document is
// written by a dedicated worker.
func acknowledged[T domain.Payload]() handler {
	return func(op *domain.OutboxOperation, payload domain.Payload, _ string) (remote.SetOp, bool, error) {
		if _, ok := payload.(T); !ok {
			return remote.SetOp{}, false, mismatched(op, payload)
		}
		return remote.SetOp{}, false, nil
	}
}

func mismatched(op *domain.OutboxOperation, payload domain.Payload) error {
	return fmt.Errorf("%s row carries %T payload", op.Type, payload)
}

// outboxHandlers is the dispatch table. Every domain.OperationType has
// exactly one entry.
//
// Interest edits are pushed only by InterestsWorker, which compares
// timestamps with the remote copy first. A blind write of the edit-time
// snapshot could revert a newer remote set.
func outboxHandlers() map[domain.OperationType]handler {
	return map[domain.OperationType]handler{
		domain.OpProfileUpsert:   typed(profileUpsertOp),
		domain.OpInterestsUpsert: acknowledged[domain.InterestsUpsertPayload](),
		domain.OpTelemetry:       typed(telemetryEventOp),
		domain.OpQuickAction:     typed(quickActionOp),
		domain.OpMoodUpdate:      typed(moodUpdateOp),
		domain.OpEmotionLog:      typed(emotionLogOp),
	}
}

func profileUpsertOp(_ *domain.OutboxOperation, p domain.ProfileUpsertPayload, userID string) remote.SetOp {
	return remote.SetOp{
		Collection: CollectionUsers,
		ID:         userID,
		Merge:      true,
		Fields: map[string]any{
			"email":       p.Email,
			"displayName": p.DisplayName,
			"updatedAt":   remote.ServerTimestamp,
		},
	}
}

func telemetryEventOp(op *domain.OutboxOperation, p domain.TelemetryPayload, userID string) remote.SetOp {
	return remote.SetOp{
		Collection: CollectionTelemetryEvents,
		ID:         op.IdempotencyKey,
		Fields: map[string]any{
			"userId":     userID,
			"event":      p.Event,
			"properties": p.Properties,
			"occurredAt": p.OccurredAt,
			"receivedAt": remote.ServerTimestamp,
		},
	}
}

func quickActionOp(op *domain.OutboxOperation, p domain.QuickActionPayload, userID string) remote.SetOp {
	return remote.SetOp{
		Collection: CollectionQuickActions,
		ID:         op.IdempotencyKey,
		Fields: map[string]any{
			"userId":     userID,
			"action":     p.Action,
			"target":     p.Target,
			"occurredAt": p.OccurredAt,
			"receivedAt": remote.ServerTimestamp,
		},
	}
}

func moodUpdateOp(op *domain.OutboxOperation, p domain.MoodUpdatePayload, userID string) remote.SetOp {
	return remote.SetOp{
		Collection: CollectionMoodUpdates,
		ID:         op.IdempotencyKey,
		Fields: map[string]any{
			"userId":     userID,
			"mood":       p.Mood,
			"intensity":  p.Intensity,
			"occurredAt": p.OccurredAt,
			"receivedAt": remote.ServerTimestamp,
		},
	}
}

// emotionLogOp writes to the same document as the emotion worker, so the
// two paths converge on one remote copy.
func emotionLogOp(_ *domain.OutboxOperation, p domain.EmotionLogPayload, userID string) remote.SetOp {
	return remote.SetOp{
		Collection: CollectionEmotionLogs,
		ID:         p.ClientID,
		Fields:     emotionFields(userID, p.Timestamp, p.Emotions),
	}
}

func emotionFields(userID string, timestampMs int64, emotions []domain.EmotionEntry) map[string]any {
	entries := make([]map[string]any, 0, len(emotions))
	ids := make([]string, 0, len(emotions))
	for _, e := range emotions {
		entries = append(entries, map[string]any{
			"emotionId": e.EmotionID,
			"name":      e.Name,
			"source":    string(e.Source),
		})
		ids = append(ids, e.EmotionID)
	}
	return map[string]any{
		"userId":     userID,
		"timestamp":  timestampMs,
		"emotions":   entries,
		"emotionIds": ids,
		"syncedAt":   remote.ServerTimestamp,
	}
}

// OutboxWorker drains the general outbox. All writes of a run go to the
// remote in one atomic batch; only rows of a committed batch are marked
// synced.
type OutboxWorker struct {
	deps     Deps
	handlers map[domain.OperationType]handler
}

// NewOutboxWorker creates the worker and its dispatch table.
func NewOutboxWorker(deps Deps) *OutboxWorker {
	return &OutboxWorker{deps: deps.withDefaults(), handlers: outboxHandlers()}
}

// Name implements Worker.
func (w *OutboxWorker) Name() string { return NameOutbox }

// Run implements Worker. Without a signed-in user there is nothing to push
// and the run succeeds. Rows at the attempt ceiling are not fetched and
// never influence the result.
func (w *OutboxWorker) Run(ctx context.Context) Result {
	r := startRun(w.deps, NameOutbox)

	if _, ok := w.deps.Users.CurrentUserID(ctx); !ok {
		r.logger.Debug("no signed-in user, outbox idle")
		return r.finish(ctx, Success)
	}

	rows, err := w.deps.Store.PendingOutbox(ctx, w.deps.BatchSize)
	if err != nil {
		return r.storeFailed(ctx, "pending outbox", err)
	}
	if len(rows) == 0 {
		w.publishDepth(ctx)
		return r.finish(ctx, Success)
	}

	var (
		ops   []remote.SetOp
		ids   []int64
		acked []int64
	)
	for _, row := range rows {
		op, include, err := w.prepare(ctx, row)
		if err != nil {
			return r.storeFailed(ctx, "prepare outbox row", err)
		}
		switch include {
		case rowSkip:
			r.skipped++
		case rowReject:
			r.failed++
		case rowAck:
			acked = append(acked, row.ID)
		case rowSend:
			ops = append(ops, op)
			ids = append(ids, row.ID)
		}
	}

	if len(acked) > 0 {
		if err := w.deps.Store.MarkOutboxSynced(ctx, acked); err != nil {
			return r.storeFailed(ctx, "acknowledge outbox rows", err)
		}
		r.synced += len(acked)
	}

	if len(ops) == 0 {
		w.publishDepth(ctx)
		return r.finish(ctx, Success)
	}

	if err := w.deps.Remote.BatchCommit(ctx, ops); err != nil {
		w.recordBatchFailure(ctx, r, ids, err)
		r.failed += len(ids)
		return r.remoteFailed(ctx, "outbox batch", err)
	}

	// The batch is committed. If marking fails the rows are sent again on
	// the next run and overwrite the same documents.
	if err := w.deps.Store.MarkOutboxSynced(ctx, ids); err != nil {
		return r.storeFailed(ctx, "mark outbox synced", err)
	}
	r.synced += len(ids)
	w.publishDepth(ctx)
	return r.finish(ctx, Success)
}

// recordBatchFailure stores the batch error on every row. Only a permanent
// rejection charges an attempt.
func (w *OutboxWorker) recordBatchFailure(ctx context.Context, r *run, ids []int64, cause error) {
	if !chargesAttempt(cause) {
		if err := w.deps.Store.NoteOutboxError(ctx, ids, cause.Error()); err != nil {
			r.logger.Error("failed to note outbox error", slog.String("error", err.Error()))
		}
		return
	}
	for _, id := range ids {
		if err := w.deps.Store.RecordOutboxFailure(ctx, id, cause.Error()); err != nil {
			r.logger.Error("failed to record outbox failure", slog.Int64("id", id), slog.String("error", err.Error()))
		}
	}
}

type rowDisposition int

const (
	rowSend rowDisposition = iota
	rowSkip
	rowReject
	rowAck
)

// prepare decodes a row and builds its remote write. A row that cannot be
// decoded or dispatched is charged one attempt and left out of the batch.
// A row whose owner still has a local-only id is skipped without charge
// until profile reconciliation runs. A row with no remote write of its own
// is acknowledged.
func (w *OutboxWorker) prepare(ctx context.Context, row *domain.OutboxOperation) (remote.SetOp, rowDisposition, error) {
	userID, ok, err := w.resolveUser(ctx, row.UserID)
	if err != nil {
		return remote.SetOp{}, rowSkip, err
	}
	if !ok {
		return remote.SetOp{}, rowSkip, nil
	}

	reject := func(cause error) (remote.SetOp, rowDisposition, error) {
		w.deps.Logger.Warn("outbox row rejected",
			slog.Int64("id", row.ID),
			slog.String("type", string(row.Type)),
			slog.String("error", cause.Error()),
		)
		if err := w.deps.Store.RecordOutboxFailure(ctx, row.ID, cause.Error()); err != nil {
			return remote.SetOp{}, rowReject, err
		}
		return remote.SetOp{}, rowReject, nil
	}

	payload, err := row.Decode()
	if err != nil {
		return reject(err)
	}
	h, ok := w.handlers[row.Type]
	if !ok {
		return reject(fmt.Errorf("no handler for operation type %q", row.Type))
	}
	op, send, err := h(row, payload, userID)
	if err != nil {
		return reject(err)
	}
	if !send {
		return remote.SetOp{}, rowAck, nil
	}
	return op, rowSend, nil
}

// resolveUser maps a row's user id to the remote id. ok is false while the
// id is local-only and unreconciled.
func (w *OutboxWorker) resolveUser(ctx context.Context, userID string) (string, bool, error) {
	if !isLocalID(userID) {
		return userID, true, nil
	}
	u, err := w.deps.Store.GetUserByLocalID(ctx, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if u.IsLocalOnly() {
		return "", false, nil
	}
	return u.ID, true, nil
}

func (w *OutboxWorker) publishDepth(ctx context.Context) {
	n, err := w.deps.Store.CountPendingOutbox(ctx)
	if err != nil {
		w.deps.Logger.Debug("outbox depth unavailable", slog.String("error", err.Error()))
		return
	}
	metrics.SetQueueDepth("outbox", n)
}
