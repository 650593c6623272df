package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/id"
	"github.com/moodtune/moodtune-sync/internal/remote"
)

func TestOutboxHandlers_CoverEveryOperationType(t *testing.T) {
	handlers := outboxHandlers()
	assert.Len(t, handlers, len(domain.AllOperationTypes()))
	for _, op := range domain.AllOperationTypes() {
		assert.Contains(t, handlers, op, "no handler for %s", op)
	}
}

func TestOutboxHandlers_RejectMismatchedPayload(t *testing.T) {
	h := outboxHandlers()[domain.OpMoodUpdate]
	_, _, err := h(&domain.OutboxOperation{Type: domain.OpMoodUpdate}, quickAction("user-1", "play"), "user-1")
	assert.Error(t, err)

	h = outboxHandlers()[domain.OpInterestsUpsert]
	_, _, err = h(&domain.OutboxOperation{Type: domain.OpInterestsUpsert}, quickAction("user-1", "play"), "user-1")
	assert.Error(t, err)
}

func TestOutboxHandlers_InterestsHaveNoWrite(t *testing.T) {
	h := outboxHandlers()[domain.OpInterestsUpsert]
	_, send, err := h(&domain.OutboxOperation{Type: domain.OpInterestsUpsert},
		domain.InterestsUpsertPayload{UserID: "user-1", Interests: []string{"jazz"}, Version: 1, LastModified: 100}, "user-1")
	require.NoError(t, err)
	assert.False(t, send)
}

func TestOutboxWorker_NoUserIsIdle(t *testing.T) {
	e := newTestEnv(t)
	e.users.Set("")
	e.enqueue(t, "user-1", quickAction("user-1", "play"), testNow)

	assert.Equal(t, Success, NewOutboxWorker(e.deps).Run(context.Background()))
	batches, _ := e.remote.calls()
	assert.Zero(t, batches)
}

func TestOutboxWorker_EmptyQueue(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, Success, NewOutboxWorker(e.deps).Run(context.Background()))
	batches, _ := e.remote.calls()
	assert.Zero(t, batches)
}

func TestOutboxWorker_DrainsInOneBatch(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	qa := e.enqueue(t, "user-1", quickAction("user-1", "play"), testNow)
	e.enqueue(t, "user-1", domain.MoodUpdatePayload{UserID: "user-1", Mood: "calm", Intensity: 4, OccurredAt: testNow.UnixMilli()}, testNow.Add(time.Second))
	e.enqueue(t, "user-1", domain.ProfileUpsertPayload{UserID: "user-1", Email: "a@example.com", DisplayName: "A"}, testNow.Add(2*time.Second))

	assert.Equal(t, Success, NewOutboxWorker(e.deps).Run(ctx))

	batches, _ := e.remote.calls()
	assert.Equal(t, 1, batches)

	pending, err := e.store.PendingOutbox(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	doc, err := e.docs.Get(ctx, CollectionQuickActions, qa.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, "play", doc.String("action"))
	assert.Equal(t, 1, e.count(t, CollectionMoodUpdates))

	profile, err := e.docs.Get(ctx, CollectionUsers, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", profile.String("email"))
	_, ok := profile.Time("updatedAt")
	assert.True(t, ok)
}

// A batch that was committed but whose acknowledgement was lost is sent
// again; the idempotency keys make the replay overwrite instead of
// duplicate, and each row ends up synced once.
func TestOutboxWorker_LostAckReplayIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.remote.applyFirst = true
	e.remote.failNext(remote.Transient("batch", errors.New("connection reset")))

	e.enqueue(t, "user-1", quickAction("user-1", "play"), testNow)
	e.enqueue(t, "user-1", quickAction("user-1", "skip"), testNow.Add(time.Second))

	w := NewOutboxWorker(e.deps)
	assert.Equal(t, Retry, w.Run(ctx))
	assert.Equal(t, 2, e.count(t, CollectionQuickActions))

	pending, err := e.store.PendingOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Zero(t, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "connection reset")

	assert.Equal(t, Success, w.Run(ctx))
	assert.Equal(t, 2, e.count(t, CollectionQuickActions))

	n, err := e.store.CountPendingOutbox(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, Success, w.Run(ctx))
	batches, _ := e.remote.calls()
	assert.Equal(t, 2, batches)
}

func TestOutboxWorker_PermanentRejectionFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.remote.failNext(remote.Permanent("batch", errors.New("invalid argument")))
	e.enqueue(t, "user-1", quickAction("user-1", "play"), testNow)

	assert.Equal(t, Failure, NewOutboxWorker(e.deps).Run(ctx))

	pending, err := e.store.PendingOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "invalid argument")
}

// A row the remote rejected three times is skipped on the next run and
// does not make the run fail.
func TestOutboxWorker_PoisonRowContained(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	w := NewOutboxWorker(e.deps)

	poisoned := e.enqueue(t, "user-1", quickAction("user-1", "play"), testNow)
	e.remote.failNext(
		remote.Permanent("batch", errors.New("invalid argument")),
		remote.Permanent("batch", errors.New("invalid argument")),
		remote.Permanent("batch", errors.New("invalid argument")),
	)
	for range domain.MaxSyncAttempts {
		assert.Equal(t, Failure, w.Run(ctx))
	}

	assert.Equal(t, Success, w.Run(ctx))
	batches, _ := e.remote.calls()
	assert.Equal(t, domain.MaxSyncAttempts, batches)

	fresh := e.enqueue(t, "user-1", quickAction("user-1", "skip"), testNow.Add(time.Minute))
	assert.Equal(t, Success, w.Run(ctx))

	_, err := e.docs.Get(ctx, CollectionQuickActions, fresh.IdempotencyKey)
	assert.NoError(t, err)
	_, err = e.docs.Get(ctx, CollectionQuickActions, poisoned.IdempotencyKey)
	assert.True(t, remote.IsNotFound(err))

	stuck, err := e.store.PoisonedOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, poisoned.ID, stuck[0].ID)
}

// Being offline for more runs than the attempt ceiling must not strand
// rows: outages charge nothing and the queue drains once the remote is
// back.
func TestOutboxWorker_OutageThenRecovery(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	w := NewOutboxWorker(e.deps)

	a := e.enqueue(t, "user-1", quickAction("user-1", "play"), testNow)
	b := e.enqueue(t, "user-1", quickAction("user-1", "skip"), testNow.Add(time.Second))

	for range domain.MaxSyncAttempts {
		e.remote.failNext(remote.Transient("batch", errors.New("unavailable")))
		assert.Equal(t, Retry, w.Run(ctx))
	}

	pending, err := e.store.PendingOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, row := range pending {
		assert.Zero(t, row.Attempts)
		assert.Contains(t, row.LastError, "unavailable")
	}

	for range domain.MaxSyncAttempts {
		assert.Equal(t, Success, w.Run(ctx))
	}

	for _, op := range []*domain.OutboxOperation{a, b} {
		_, err := e.docs.Get(ctx, CollectionQuickActions, op.IdempotencyKey)
		assert.NoError(t, err)
	}
	n, err := e.store.CountPendingOutbox(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	stuck, err := e.store.PoisonedOutbox(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

func TestOutboxWorker_DepthErrorIsLogged(t *testing.T) {
	e := newTestEnv(t)
	var buf bytes.Buffer
	e.deps.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	w := NewOutboxWorker(e.deps)
	require.NoError(t, e.store.Close())

	w.publishDepth(context.Background())
	assert.Contains(t, buf.String(), "outbox depth unavailable")
}

func TestOutboxWorker_UndecodableRowLeftOut(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	bad := &domain.OutboxOperation{
		Type:           domain.OpMoodUpdate,
		UserID:         "user-1",
		IdempotencyKey: id.IdempotencyKey(),
		Payload:        []byte(`{"mood":`),
		CreatedAt:      testNow,
	}
	require.NoError(t, e.store.Enqueue(ctx, bad))
	good := e.enqueue(t, "user-1", quickAction("user-1", "play"), testNow.Add(time.Second))

	assert.Equal(t, Success, NewOutboxWorker(e.deps).Run(ctx))

	_, err := e.docs.Get(ctx, CollectionQuickActions, good.IdempotencyKey)
	assert.NoError(t, err)

	pending, err := e.store.PendingOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bad.ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestOutboxWorker_WaitsForReconciliation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	local := &domain.User{ID: "local-abc", Email: "a@example.com", SyncStatus: domain.SyncStatusPending, CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, e.store.UpsertUser(ctx, local))
	op := e.enqueue(t, "local-abc", quickAction("local-abc", "play"), testNow)

	w := NewOutboxWorker(e.deps)
	assert.Equal(t, Success, w.Run(ctx))
	pending, err := e.store.PendingOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].Attempts)

	reconciled := *local
	reconciled.Reconcile("user-1", testNow)
	require.NoError(t, e.store.ReplaceUserID(ctx, "local-abc", &reconciled))

	assert.Equal(t, Success, w.Run(ctx))
	doc, err := e.docs.Get(ctx, CollectionQuickActions, op.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, "user-1", doc.String("userId"))
}
