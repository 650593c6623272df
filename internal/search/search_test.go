package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/domain"
)

var base = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func queries(s []Suggestion) []string {
	out := make([]string, len(s))
	for i, sg := range s {
		out[i] = sg.Query
	}
	return out
}

func TestSuggest_PrefixAndRecency(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddAll([]Entry{
		{UserID: "u1", Query: "lofi beats", Timestamp: base},
		{UserID: "u1", Query: "calm piano", Timestamp: base.Add(time.Minute)},
		{UserID: "u1", Query: "Lofi Study", Timestamp: base.Add(2 * time.Minute)},
		{UserID: "u2", Query: "lofi jazz", Timestamp: base.Add(3 * time.Minute)},
	}))

	got, err := idx.Suggest(ctx, "u1", "LO", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lofi Study", "lofi beats"}, queries(got))
	assert.True(t, base.Add(2*time.Minute).Equal(got[0].LastUsed))

	// Word prefix inside the query.
	got, err = idx.Suggest(ctx, "u1", "pia", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"calm piano"}, queries(got))

	// Multi-word prefix matches the start of the query.
	got, err = idx.Suggest(ctx, "u1", "lofi  be", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"lofi beats"}, queries(got))

	got, err = idx.Suggest(ctx, "u1", "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lofi Study", "calm piano"}, queries(got))
}

func TestAdd_RepeatReplaces(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(Entry{UserID: "u1", Query: "rain sounds", Timestamp: base}))
	require.NoError(t, idx.Add(Entry{UserID: "u1", Query: "Rain  Sounds", Timestamp: base.Add(time.Hour)}))

	n, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := idx.Suggest(ctx, "u1", "rain", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Rain  Sounds", got[0].Query)
	assert.True(t, base.Add(time.Hour).Equal(got[0].LastUsed))
}

func TestDeleteUserAndBefore(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddAll([]Entry{
		{UserID: "u1", Query: "old", Timestamp: base},
		{UserID: "u1", Query: "new", Timestamp: base.Add(48 * time.Hour)},
		{UserID: "u2", Query: "other", Timestamp: base},
	}))

	n, err := idx.DeleteBefore(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := idx.Suggest(ctx, "u1", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, queries(got))

	n, err = idx.DeleteUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRebuild(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(Entry{UserID: "u1", Query: "stale", Timestamp: base}))

	history := []*domain.SearchHistoryEntry{
		{UserID: "u1", Query: "focus", Timestamp: base},
		{UserID: "u1", Query: "sleep", Timestamp: base.Add(time.Minute)},
	}
	require.NoError(t, idx.Rebuild(FromHistory(history)))

	got, err := idx.Suggest(ctx, "u1", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep", "focus"}, queries(got))
}

func TestNewIndex_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, idx.Add(Entry{UserID: "u1", Query: "ambient", Timestamp: base}))
	require.NoError(t, idx.Close())

	idx, err = NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer idx.Close()

	got, err := idx.Suggest(ctx, "u1", "amb", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ambient"}, queries(got))
}
