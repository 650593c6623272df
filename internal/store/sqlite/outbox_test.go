package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

func TestEnqueue_SetsIDAndDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := newOutboxOp("u1", domain.OpQuickAction, baseTime)
	op.Attempts = 5
	require.NoError(t, s.Enqueue(ctx, op))

	assert.NotZero(t, op.ID)
	assert.Zero(t, op.Attempts)

	pending, err := s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, op.IdempotencyKey, pending[0].IdempotencyKey)
	assert.Equal(t, op.Payload, pending[0].Payload)
	assert.True(t, baseTime.Equal(pending[0].CreatedAt))
	assert.False(t, pending[0].Synced)
}

func TestEnqueue_DuplicateIdempotencyKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := newOutboxOp("u1", domain.OpQuickAction, baseTime)
	require.NoError(t, s.Enqueue(ctx, op))

	dup := newOutboxOp("u1", domain.OpQuickAction, baseTime)
	dup.IdempotencyKey = op.IdempotencyKey
	assert.ErrorIs(t, s.Enqueue(ctx, dup), store.ErrAlreadyExists)
}

func TestPendingOutbox_OldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	late := newOutboxOp("u1", domain.OpMoodUpdate, baseTime.Add(2*time.Minute))
	early := newOutboxOp("u1", domain.OpMoodUpdate, baseTime)
	middle := newOutboxOp("u1", domain.OpMoodUpdate, baseTime.Add(1500*time.Millisecond))
	for _, op := range []*domain.OutboxOperation{late, early, middle} {
		require.NoError(t, s.Enqueue(ctx, op))
	}

	pending, err := s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []int64{early.ID, middle.ID, late.ID}, []int64{pending[0].ID, pending[1].ID, pending[2].ID})

	limited, err := s.PendingOutbox(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPendingOutbox_ExcludesPoisonedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	poisoned := newOutboxOp("u1", domain.OpMoodUpdate, baseTime)
	healthy := newOutboxOp("u1", domain.OpMoodUpdate, baseTime.Add(time.Second))
	require.NoError(t, s.Enqueue(ctx, poisoned))
	require.NoError(t, s.Enqueue(ctx, healthy))

	for range domain.MaxSyncAttempts {
		require.NoError(t, s.RecordOutboxFailure(ctx, poisoned.ID, "boom"))
	}

	pending, err := s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, healthy.ID, pending[0].ID)

	bad, err := s.PoisonedOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, poisoned.ID, bad[0].ID)
	assert.Equal(t, "boom", bad[0].LastError)
	assert.True(t, bad[0].IsPoisoned())

	count, err := s.CountPendingOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.ResetOutboxAttempts(ctx, []int64{poisoned.ID}))
	pending, err = s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestMarkOutboxSynced_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newOutboxOp("u1", domain.OpMoodUpdate, baseTime)
	b := newOutboxOp("u1", domain.OpMoodUpdate, baseTime.Add(time.Second))
	require.NoError(t, s.Enqueue(ctx, a))
	require.NoError(t, s.Enqueue(ctx, b))

	ids := []int64{a.ID, b.ID}
	require.NoError(t, s.MarkOutboxSynced(ctx, ids))
	first := dumpOutbox(t, s)

	require.NoError(t, s.MarkOutboxSynced(ctx, ids))
	assert.Equal(t, first, dumpOutbox(t, s))

	pending, err := s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkOutboxSynced_EmptyAndUnknownIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.MarkOutboxSynced(ctx, nil))
	assert.NoError(t, s.MarkOutboxSynced(ctx, []int64{999}))
}

func TestRecordOutboxFailure_UnknownID(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.RecordOutboxFailure(context.Background(), 42, "x"), store.ErrNotFound)
}

func TestNoteOutboxError_KeepsAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newOutboxOp("u1", domain.OpMoodUpdate, baseTime)
	b := newOutboxOp("u1", domain.OpMoodUpdate, baseTime.Add(time.Second))
	require.NoError(t, s.Enqueue(ctx, a))
	require.NoError(t, s.Enqueue(ctx, b))
	require.NoError(t, s.MarkOutboxSynced(ctx, []int64{b.ID}))

	for range domain.MaxSyncAttempts + 1 {
		require.NoError(t, s.NoteOutboxError(ctx, []int64{a.ID, b.ID}, "unavailable"))
	}
	require.NoError(t, s.NoteOutboxError(ctx, nil, "ignored"))

	pending, err := s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Zero(t, pending[0].Attempts)
	assert.Equal(t, "unavailable", pending[0].LastError)
}

func TestDeleteSyncedOutboxBefore_NeverTouchesUnsynced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := baseTime.Add(-45 * 24 * time.Hour)

	oldSynced := newOutboxOp("u1", domain.OpMoodUpdate, old)
	oldUnsynced := newOutboxOp("u1", domain.OpMoodUpdate, old)
	oldPoisoned := newOutboxOp("u1", domain.OpMoodUpdate, old)
	recentSynced := newOutboxOp("u1", domain.OpMoodUpdate, baseTime)
	for _, op := range []*domain.OutboxOperation{oldSynced, oldUnsynced, oldPoisoned, recentSynced} {
		require.NoError(t, s.Enqueue(ctx, op))
	}
	require.NoError(t, s.MarkOutboxSynced(ctx, []int64{oldSynced.ID, recentSynced.ID}))
	for range domain.MaxSyncAttempts {
		require.NoError(t, s.RecordOutboxFailure(ctx, oldPoisoned.ID, "down"))
	}

	deleted, err := s.DeleteSyncedOutboxBefore(ctx, domain.RetentionCutoff(baseTime))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rows := dumpOutbox(t, s)
	assert.NotContains(t, rows, oldSynced.ID)
	assert.Contains(t, rows, oldUnsynced.ID)
	assert.Contains(t, rows, oldPoisoned.ID)
	assert.Contains(t, rows, recentSynced.ID)
}

func TestPendingOutboxByType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, newOutboxOp("u1", domain.OpMoodUpdate, baseTime)))
	require.NoError(t, s.Enqueue(ctx, newOutboxOp("u1", domain.OpMoodUpdate, baseTime)))
	require.NoError(t, s.Enqueue(ctx, newOutboxOp("u1", domain.OpProfileUpsert, baseTime)))

	counts, err := s.PendingOutboxByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.OperationType]int{
		domain.OpMoodUpdate:    2,
		domain.OpProfileUpsert: 1,
	}, counts)
}

func TestListOutboxSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, newOutboxOp("u1", domain.OpQuickAction, baseTime.Add(-time.Hour))))
	recent := newOutboxOp("u1", domain.OpQuickAction, baseTime.Add(time.Minute))
	require.NoError(t, s.Enqueue(ctx, recent))
	require.NoError(t, s.Enqueue(ctx, newOutboxOp("u2", domain.OpQuickAction, baseTime.Add(time.Minute))))
	require.NoError(t, s.MarkOutboxSynced(ctx, []int64{recent.ID}))

	ops, err := s.ListOutboxSince(ctx, "u1", baseTime)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, recent.ID, ops[0].ID)
	assert.True(t, ops[0].Synced)
}

// dumpOutbox maps every outbox row id to its (synced, attempts) state.
func dumpOutbox(t *testing.T, s *Store) map[int64][2]int {
	t.Helper()
	rows, err := s.db.Query(`SELECT id, synced, attempts FROM outbox`)
	require.NoError(t, err)
	defer rows.Close()

	out := map[int64][2]int{}
	for rows.Next() {
		var (
			rowID            int64
			synced, attempts int
		)
		require.NoError(t, rows.Scan(&rowID, &synced, &attempts))
		out[rowID] = [2]int{synced, attempts}
	}
	require.NoError(t, rows.Err())
	return out
}
