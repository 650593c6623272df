package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_ExpiresAtMatchesTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry interface {
			Stamp(time.Time)
			IsExpired(time.Time) bool
		}
		ttl time.Duration
	}{
		{"weather", &WeatherCache{UserID: "u1"}, WeatherTTL},
		{"library section", &LibrarySection{UserID: "u1"}, LibrarySectionTTL},
		{"ai recommendation", &AIRecommendation{InputKey: "calm"}, AIRecommendationTTL},
		{"session activity", &SessionActivityLog{UserID: "u1"}, SessionActivityTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.entry.Stamp(now)

			assert.False(t, tt.entry.IsExpired(now))
			assert.False(t, tt.entry.IsExpired(now.Add(tt.ttl)), "boundary is still valid")
			assert.True(t, tt.entry.IsExpired(now.Add(tt.ttl+time.Millisecond)))
		})
	}
}

func TestWeatherCache_FiveMinuteLifetime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := &WeatherCache{UserID: "u1"}
	w.Stamp(now)

	assert.Equal(t, now.Add(5*time.Minute), w.ExpiresAt)
	assert.Equal(t, Fresh, w.Classify(now.Add(4*time.Minute)))
	assert.Equal(t, Expired, w.Classify(now.Add(6*time.Minute)))
}

func TestAIRecommendation_Classify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := &AIRecommendation{InputKey: "calm"}
	a.Stamp(now)

	tests := []struct {
		name string
		at   time.Time
		want Freshness
	}{
		{"just cached", now, Fresh},
		{"at freshness threshold", now.Add(AIRecommendationFreshFor), Fresh},
		{"past freshness threshold", now.Add(7 * time.Hour), Stale},
		{"just before expiry", now.Add(AIRecommendationTTL - time.Second), Stale},
		{"past expiry", now.Add(25 * time.Hour), Expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Classify(tt.at))
			assert.Equal(t, tt.want == Fresh, a.IsFresh(tt.at))
		})
	}
}

func TestSessionActivityLog_Classify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &SessionActivityLog{UserID: "u1"}
	s.Stamp(now)

	assert.Equal(t, Fresh, s.Classify(now.Add(30*time.Minute)))
	assert.Equal(t, Stale, s.Classify(now.Add(2*time.Hour)))
	assert.Equal(t, Expired, s.Classify(now.Add(SessionActivityTTL+time.Minute)))
}

func TestLibrarySectionKey(t *testing.T) {
	assert.Equal(t, "u1:0", LibrarySectionKey("u1", 0))
	assert.Equal(t, "u1:12", LibrarySectionKey("u1", 12))
}

func TestFreshness_String(t *testing.T) {
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "expired", Expired.String())
	assert.Equal(t, "unknown", Freshness(42).String())
}
