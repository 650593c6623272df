package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/domain"
)

func TestActivityService_ComputeSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewActivityService(env.store, env.logger, env.clock.Now, time.UTC)
	searches := NewSearchHistoryService(env.store, nil, env.logger, env.clock.Now)
	start := testNow.Add(-3 * time.Hour)

	require.NoError(t, env.store.InsertLoginTelemetry(ctx, &domain.LoginTelemetry{
		Email: "ada@example.com", LoginType: domain.LoginGoogle, Success: true, Timestamp: start,
	}))
	require.NoError(t, env.store.InsertLoginTelemetry(ctx, &domain.LoginTelemetry{
		Email: "ada@example.com", LoginType: domain.LoginEmail, Success: false, Timestamp: start.Add(2 * time.Hour),
	}))

	// First session: login, two plays and a search within ten minutes.
	env.clock.t = start.Add(5 * time.Minute)
	_, err := env.outbox.RecordQuickAction(ctx, "user-1", "play", "")
	require.NoError(t, err)
	env.clock.t = start.Add(8 * time.Minute)
	_, err = env.outbox.RecordQuickAction(ctx, "user-1", "play", "")
	require.NoError(t, err)
	require.NoError(t, searches.Record(ctx, "user-1", "  rainy day jazz "))

	// Second session an hour later.
	env.clock.t = start.Add(80 * time.Minute)
	_, err = env.outbox.RecordMood(ctx, "user-1", "calm", 4)
	require.NoError(t, err)

	env.clock.t = testNow
	sessions, err := svc.ComputeSessions(ctx, "user-1", "ada@example.com", start.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	first := sessions[0]
	assert.Equal(t, domain.LoginGoogle, first.LoginType)
	assert.Equal(t, 2, first.ActionCounts["play"])
	assert.Equal(t, []string{"rainy day jazz"}, first.SearchQueries)
	assert.Equal(t, 8, first.DurationMinutes)
	assert.Equal(t, 1, sessions[1].ActionCounts["mood_update"])

	latest, err := env.store.LatestSessionActivity(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, latest.SessionStart.Equal(start.Add(80*time.Minute)))
	assert.True(t, latest.ExpiresAt.Equal(testNow.Add(domain.SessionActivityTTL)))

	summaries, err := env.store.UnsyncedDailySummaries(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "2026-04-10", summaries[0].Date)
	assert.Equal(t, 2, summaries[0].SessionCount)
	assert.Equal(t, "play", summaries[0].MostCommonAction)
}

func TestActivityService_NoActivity(t *testing.T) {
	env := newTestEnv(t)
	svc := NewActivityService(env.store, env.logger, env.clock.Now, nil)
	sessions, err := svc.ComputeSessions(context.Background(), "user-1", "", testNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
