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

func TestWeather_RoundTripAndExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := &domain.WeatherCache{UserID: "u1", Temperature: 21.5, Description: "sunny", Latitude: 52.5, Longitude: 13.4}
	w.Stamp(baseTime)
	require.NoError(t, s.SaveWeather(ctx, w))

	got, err := s.GetWeather(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sunny", got.Description)
	assert.True(t, baseTime.Add(domain.WeatherTTL).Equal(got.ExpiresAt))
	assert.False(t, got.IsExpired(baseTime.Add(domain.WeatherTTL)))
	assert.True(t, got.IsExpired(baseTime.Add(domain.WeatherTTL+time.Millisecond)))
}

func TestLibrarySections_ReplaceAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func(idx int, title string) *domain.LibrarySection {
		sec := &domain.LibrarySection{UserID: "u1", SectionIndex: idx, Title: title,
			Tracks: []domain.TrackSnapshot{{ID: "t" + title, Title: title, Artist: "A"}}}
		sec.Stamp(baseTime)
		return sec
	}

	require.NoError(t, s.SaveLibrarySections(ctx, "u1", []*domain.LibrarySection{mk(1, "b"), mk(0, "a"), mk(2, "c")}))
	require.NoError(t, s.SaveLibrarySections(ctx, "u1", []*domain.LibrarySection{mk(0, "x")}))

	got, err := s.GetLibrarySections(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Title)
	assert.Equal(t, "tx", got[0].Tracks[0].ID)

	require.NoError(t, s.DeleteLibrarySections(ctx, "u1"))
	got, err = s.GetLibrarySections(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAIRecommendations_LRUEviction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"calm", "focus", "party"} {
		rec := &domain.AIRecommendation{InputKey: key, UserID: "u1", Queries: []string{key}, TrackIDs: []string{key + "-1"}}
		rec.Stamp(baseTime)
		require.NoError(t, s.SaveAIRecommendation(ctx, rec))
	}

	// Reading "calm" makes "focus" the least recently used entry.
	_, err := s.GetAIRecommendation(ctx, "calm")
	require.NoError(t, err)

	evicted, err := s.EvictAIRecommendations(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), evicted)

	_, err = s.GetAIRecommendation(ctx, "focus")
	assert.ErrorIs(t, err, store.ErrNotFound)

	calm, err := s.GetAIRecommendation(ctx, "calm")
	require.NoError(t, err)
	assert.Equal(t, []string{"calm-1"}, calm.TrackIDs)
	assert.Empty(t, calm.Tracks)

	require.NoError(t, s.DeleteAIRecommendations(ctx, "u1"))
	_, err = s.GetAIRecommendation(ctx, "party")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPurgeExpiredCaches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := &domain.WeatherCache{UserID: "u1", Description: "rain"}
	w.Stamp(baseTime)
	require.NoError(t, s.SaveWeather(ctx, w))

	rec := &domain.AIRecommendation{InputKey: "calm", UserID: "u1"}
	rec.Stamp(baseTime)
	require.NoError(t, s.SaveAIRecommendation(ctx, rec))

	sa := &domain.SessionActivityLog{UserID: "u1", SessionStart: baseTime, SessionEnd: baseTime}
	sa.Stamp(baseTime)
	require.NoError(t, s.UpsertSessionActivity(ctx, sa))

	// An hour later only the weather entry has expired.
	n, err := s.PurgeExpiredCaches(ctx, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetWeather(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetAIRecommendation(ctx, "calm")
	assert.NoError(t, err)

	n, err = s.PurgeExpiredCaches(ctx, baseTime.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
