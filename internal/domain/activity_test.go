package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSessions(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	events := []ActivityEvent{
		{At: t0.Add(10 * time.Minute), Kind: ActivityAction, Action: "MOOD_UPDATE"},
		{At: t0, Kind: ActivityLogin, LoginType: LoginEmail},
		{At: t0.Add(20 * time.Minute), Kind: ActivitySearch, Query: "lofi"},
		{At: t0.Add(25 * time.Minute), Kind: ActivityAction, Action: "MOOD_UPDATE"},
		// 31 minutes of silence starts a new session
		{At: t0.Add(56 * time.Minute), Kind: ActivityAction, Action: "QUICK_ACTION"},
		{At: t0.Add(60 * time.Minute), Kind: ActivitySearch, Query: ""},
	}

	sessions := BuildSessions("u1", events, SessionInactivityTimeout)
	require.Len(t, sessions, 2)

	first := sessions[0]
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, t0, first.SessionStart)
	assert.Equal(t, t0.Add(25*time.Minute), first.SessionEnd)
	assert.Equal(t, 25, first.DurationMinutes)
	assert.Equal(t, LoginEmail, first.LoginType)
	assert.Equal(t, map[string]int{"MOOD_UPDATE": 2}, first.ActionCounts)
	assert.Equal(t, []string{"lofi"}, first.SearchQueries)

	second := sessions[1]
	assert.Equal(t, t0.Add(56*time.Minute), second.SessionStart)
	assert.Equal(t, 4, second.DurationMinutes)
	assert.Empty(t, second.SearchQueries)
	assert.Equal(t, map[string]int{"QUICK_ACTION": 1}, second.ActionCounts)
}

func TestBuildSessions_Empty(t *testing.T) {
	assert.Nil(t, BuildSessions("u1", nil, SessionInactivityTimeout))
}

func TestBuildSessions_ExactTimeoutStaysInSession(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sessions := BuildSessions("u1", []ActivityEvent{
		{At: t0, Kind: ActivityAction, Action: "a"},
		{At: t0.Add(SessionInactivityTimeout), Kind: ActivityAction, Action: "a"},
	}, SessionInactivityTimeout)

	require.Len(t, sessions, 1)
	assert.Equal(t, 30, sessions[0].DurationMinutes)
}

func TestMostCommonAction(t *testing.T) {
	assert.Equal(t, "", MostCommonAction(nil))
	assert.Equal(t, "b", MostCommonAction(map[string]int{"a": 1, "b": 3}))
	assert.Equal(t, "a", MostCommonAction(map[string]int{"b": 2, "a": 2}))
}

func TestSummarizeDay(t *testing.T) {
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	day1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC)

	sessions := []SessionActivityLog{
		{SessionStart: day2, DurationMinutes: 5, ActionCounts: map[string]int{"play": 1}},
		{SessionStart: day1, DurationMinutes: 10, ActionCounts: map[string]int{"play": 1, "skip": 2}},
		{SessionStart: day1.Add(3 * time.Hour), DurationMinutes: 20, ActionCounts: map[string]int{"play": 2}},
	}

	got := SummarizeDay("u1", sessions, time.UTC, now)
	require.Len(t, got, 2)

	assert.Equal(t, "2025-06-01", got[0].Date)
	assert.Equal(t, 2, got[0].SessionCount)
	assert.Equal(t, 30, got[0].TotalMinutes)
	assert.Equal(t, "play", got[0].MostCommonAction)
	assert.Equal(t, now, got[0].UpdatedAt)
	assert.False(t, got[0].Synced)

	assert.Equal(t, "2025-06-02", got[1].Date)
	assert.Equal(t, 1, got[1].SessionCount)
}
