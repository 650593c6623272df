package domain

import (
	"strconv"
	"time"
)

// Cache lifetimes.
const (
	WeatherTTL          = 5 * time.Minute
	LibrarySectionTTL   = 15 * time.Minute
	SessionActivityTTL  = 24 * time.Hour
	AIRecommendationTTL = 24 * time.Hour

	// Freshness thresholds for stale-while-revalidate reads.
	// Past these the entry is still served but a refresh is triggered.
	AIRecommendationFreshFor = 6 * time.Hour
	SessionActivityFreshFor  = time.Hour
)

// Freshness classifies a cached entry at a point in time.
type Freshness int

const (
	// Fresh entries are served as-is.
	Fresh Freshness = iota
	// Stale entries are served while a background refresh runs.
	Stale
	// Expired entries must not be served.
	Expired
)

// String implements fmt.Stringer.
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// classify is shared by all cache types. freshFor of zero means the type
// has no freshness window and is fresh until it expires.
func classify(now, cachedAt, expiresAt time.Time, freshFor time.Duration) Freshness {
	if now.After(expiresAt) {
		return Expired
	}
	if freshFor > 0 && now.Sub(cachedAt) > freshFor {
		return Stale
	}
	return Fresh
}

// WeatherCache is the last weather reading for a user.
type WeatherCache struct {
	UserID      string    `json:"user_id"`
	Temperature float64   `json:"temperature"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CachedAt    time.Time `json:"cached_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CalculateExpiresAt returns now plus the weather TTL.
func (w *WeatherCache) CalculateExpiresAt(now time.Time) time.Time { return now.Add(WeatherTTL) }

// Stamp sets CachedAt and ExpiresAt from now.
func (w *WeatherCache) Stamp(now time.Time) {
	w.CachedAt = now
	w.ExpiresAt = w.CalculateExpiresAt(now)
}

// IsExpired reports whether now is past ExpiresAt.
func (w *WeatherCache) IsExpired(now time.Time) bool { return now.After(w.ExpiresAt) }

// Classify implements Cacheable.
func (w *WeatherCache) Classify(now time.Time) Freshness {
	return classify(now, w.CachedAt, w.ExpiresAt, 0)
}

// LibrarySection is one computed recommendation row on the library screen.
type LibrarySection struct {
	UserID       string          `json:"user_id"`
	SectionIndex int             `json:"section_index"`
	Title        string          `json:"title"`
	Tracks       []TrackSnapshot `json:"tracks"`
	CachedAt     time.Time       `json:"cached_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// TrackSnapshot is the minimal track shape kept in caches.
type TrackSnapshot struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ImageURL string `json:"image_url,omitempty"`
}

// LibrarySectionKey is the composite cache key for a section.
func LibrarySectionKey(userID string, index int) string {
	return userID + ":" + strconv.Itoa(index)
}

// CalculateExpiresAt returns now plus the library section TTL.
func (s *LibrarySection) CalculateExpiresAt(now time.Time) time.Time {
	return now.Add(LibrarySectionTTL)
}

// Stamp sets CachedAt and ExpiresAt from now.
func (s *LibrarySection) Stamp(now time.Time) {
	s.CachedAt = now
	s.ExpiresAt = s.CalculateExpiresAt(now)
}

// IsExpired reports whether now is past ExpiresAt.
func (s *LibrarySection) IsExpired(now time.Time) bool { return now.After(s.ExpiresAt) }

// Classify implements Cacheable.
func (s *LibrarySection) Classify(now time.Time) Freshness {
	return classify(now, s.CachedAt, s.ExpiresAt, 0)
}

// AIRecommendation caches the result of an AI-assisted recommendation.
// It is keyed by the normalized input text.
type AIRecommendation struct {
	InputKey  string          `json:"input_key"`
	UserID    string          `json:"user_id"`
	Queries   []string        `json:"queries"`
	TrackIDs  []string        `json:"track_ids"`
	Tracks    []TrackSnapshot `json:"tracks"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// CalculateExpiresAt returns now plus the AI recommendation TTL.
func (a *AIRecommendation) CalculateExpiresAt(now time.Time) time.Time {
	return now.Add(AIRecommendationTTL)
}

// Stamp sets CachedAt and ExpiresAt from now.
func (a *AIRecommendation) Stamp(now time.Time) {
	a.CachedAt = now
	a.ExpiresAt = a.CalculateExpiresAt(now)
}

// IsExpired reports whether now is past ExpiresAt.
func (a *AIRecommendation) IsExpired(now time.Time) bool { return now.After(a.ExpiresAt) }

// IsFresh reports whether the entry is younger than the freshness threshold.
func (a *AIRecommendation) IsFresh(now time.Time) bool { return a.Classify(now) == Fresh }

// Classify implements Cacheable.
func (a *AIRecommendation) Classify(now time.Time) Freshness {
	return classify(now, a.CachedAt, a.ExpiresAt, AIRecommendationFreshFor)
}

// CalculateExpiresAt returns now plus the session activity TTL.
func (s *SessionActivityLog) CalculateExpiresAt(now time.Time) time.Time {
	return now.Add(SessionActivityTTL)
}

// Stamp sets CachedAt and ExpiresAt from now.
func (s *SessionActivityLog) Stamp(now time.Time) {
	s.CachedAt = now
	s.ExpiresAt = s.CalculateExpiresAt(now)
}

// IsExpired reports whether now is past ExpiresAt.
func (s *SessionActivityLog) IsExpired(now time.Time) bool { return now.After(s.ExpiresAt) }

// IsFresh reports whether the entry is younger than the freshness threshold.
func (s *SessionActivityLog) IsFresh(now time.Time) bool { return s.Classify(now) == Fresh }

// Classify implements Cacheable.
func (s *SessionActivityLog) Classify(now time.Time) Freshness {
	return classify(now, s.CachedAt, s.ExpiresAt, SessionActivityFreshFor)
}

// Cacheable is implemented by every TTL-bearing entity.
type Cacheable interface {
	IsExpired(now time.Time) bool
	Classify(now time.Time) Freshness
}
