package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/remote"
)

func seedSummaries(t *testing.T, e *testEnv, n int) {
	t.Helper()
	for i := range n {
		require.NoError(t, e.store.UpsertDailySummary(context.Background(), &domain.DailyActivitySummary{
			UserID:       "user-1",
			Date:         fmt.Sprintf("2026-02-%02d", i+1),
			SessionCount: i + 1,
			TotalMinutes: 10 * (i + 1),
			UpdatedAt:    testNow,
		}))
	}
}

func TestActivitySummaryWorker_Chunks(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.deps.BatchSize = 2
	seedSummaries(t, e, 3)
	require.NoError(t, e.store.InsertAchievement(ctx, &domain.Achievement{
		UserID: "user-1", AchievementID: domain.AchievementFirstEmotionLog, UnlockedAt: testNow,
	}))

	assert.Equal(t, Success, NewActivitySummaryWorker(e.deps).Run(ctx))

	batches, _ := e.remote.calls()
	assert.Equal(t, 3, batches, "two summary chunks and one achievement batch")
	assert.Equal(t, 3, e.count(t, CollectionActivitySummaries))

	doc, err := e.docs.Get(ctx, CollectionActivitySummaries, "user-1_2026-02-02")
	require.NoError(t, err)
	n, _ := doc.Int64("totalMinutes")
	assert.Equal(t, int64(20), n)

	left, err := e.store.UnsyncedDailySummaries(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, left)

	pending, err := e.store.PendingAchievements(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestActivitySummaryWorker_FailedChunkStopsRun(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.deps.BatchSize = 2
	seedSummaries(t, e, 3)
	e.remote.failNext(nil, remote.Transient("batch", errors.New("unavailable")))

	assert.Equal(t, Retry, NewActivitySummaryWorker(e.deps).Run(ctx))

	left, err := e.store.UnsyncedDailySummaries(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "2026-02-03", left[0].Date)
}

func TestActivitySummaryWorker_Preconditions(t *testing.T) {
	e := newTestEnv(t)
	e.users.Set("")
	assert.Equal(t, Failure, NewActivitySummaryWorker(e.deps).Run(context.Background()))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "failure", Failure.String())
}
