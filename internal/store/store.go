// Package store defines the persistence contracts of the sync engine.
// The sqlite subpackage implements them.
package store

import (
	"context"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
)

// Table names, also used as events.TableChanged subjects.
const (
	TableUsers             = "users"
	TableOutbox            = "outbox"
	TableInterests         = "user_interests"
	TableEmotionLogs       = "emotion_logs"
	TableLoginTelemetry    = "login_telemetry"
	TableSessionActivity   = "session_activity_logs"
	TableDailySummaries    = "daily_activity_summaries"
	TableLibrarySections   = "library_sections"
	TableAIRecommendations = "ai_recommendations"
	TableWeather           = "weather_cache"
	TableSearchHistory     = "search_history"
	TableAchievements      = "achievements"
)

// UserStore persists the locally cached account.
type UserStore interface {
	UpsertUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByLocalID(ctx context.Context, localID string) (*domain.User, error)
	ListLocalUsers(ctx context.Context) ([]*domain.User, error)
	// ReplaceUserID moves a user to a new primary id and rewrites user_id on
	// every owned table except the outbox, whose rows are immutable.
	ReplaceUserID(ctx context.Context, oldID string, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error
}

// OutboxStore is the durable queue of pending remote mutations.
type OutboxStore interface {
	Enqueue(ctx context.Context, op *domain.OutboxOperation) error
	// PendingOutbox returns up to limit unsynced rows below the attempt
	// ceiling, oldest first.
	PendingOutbox(ctx context.Context, limit int) ([]*domain.OutboxOperation, error)
	PoisonedOutbox(ctx context.Context, limit int) ([]*domain.OutboxOperation, error)
	// MarkOutboxSynced flips every id in one transaction. Idempotent.
	MarkOutboxSynced(ctx context.Context, ids []int64) error
	// RecordOutboxFailure charges one attempt and stores msg.
	RecordOutboxFailure(ctx context.Context, id int64, msg string) error
	// NoteOutboxError stores msg on unsynced rows without charging an
	// attempt.
	NoteOutboxError(ctx context.Context, ids []int64, msg string) error
	ResetOutboxAttempts(ctx context.Context, ids []int64) error
	// DeleteSyncedOutboxBefore never touches unsynced rows.
	DeleteSyncedOutboxBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountPendingOutbox(ctx context.Context) (int, error)
	PendingOutboxByType(ctx context.Context) (map[domain.OperationType]int, error)
	ListOutboxSince(ctx context.Context, userID string, since time.Time) ([]*domain.OutboxOperation, error)
}

// InterestsStore persists the versioned interest set.
type InterestsStore interface {
	GetInterests(ctx context.Context, userID string) (*domain.UserInterests, error)
	SaveInterests(ctx context.Context, interests *domain.UserInterests) error
	// ApplyResolution writes a conflict-resolution result only if the row
	// still has expectedVersion. It returns false when a newer local edit
	// landed in between; needs_sync is then left untouched.
	ApplyResolution(ctx context.Context, expectedVersion int, result *domain.UserInterests, resolution string) (bool, error)
}

// EmotionLogStore is the per-feature queue of emotion submissions.
type EmotionLogStore interface {
	InsertEmotionLog(ctx context.Context, log *domain.EmotionLog) error
	// UnsyncedEmotionLogs returns unsynced rows of userID below the attempt
	// ceiling, oldest first.
	UnsyncedEmotionLogs(ctx context.Context, userID string, limit int) ([]*domain.EmotionLog, error)
	// CountPoisonedEmotionLogs counts unsynced rows of userID at the ceiling.
	CountPoisonedEmotionLogs(ctx context.Context, userID string) (int, error)
	MarkEmotionLogsSynced(ctx context.Context, ids []int64) error
	RecordEmotionLogFailure(ctx context.Context, id int64, msg string) error
	NoteEmotionLogError(ctx context.Context, id int64, msg string) error
	// DeleteOldSyncedEmotionLogs never touches unsynced rows.
	DeleteOldSyncedEmotionLogs(ctx context.Context, cutoff time.Time) (int64, error)
	CountEmotionLogs(ctx context.Context, userID string) (int, error)
	CountUnsyncedEmotionLogs(ctx context.Context, userID string) (int, error)
}

// TelemetryStore is the queue of login attempts.
type TelemetryStore interface {
	InsertLoginTelemetry(ctx context.Context, t *domain.LoginTelemetry) error
	PendingTelemetry(ctx context.Context, limit int) ([]*domain.LoginTelemetry, error)
	MarkTelemetrySynced(ctx context.Context, ids []int64) error
	RecordTelemetryFailure(ctx context.Context, ids []int64) error
	ListLoginsSince(ctx context.Context, email string, since time.Time) ([]*domain.LoginTelemetry, error)
	DeleteSyncedTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityStore holds derived session logs and daily summaries.
type ActivityStore interface {
	UpsertSessionActivity(ctx context.Context, s *domain.SessionActivityLog) error
	LatestSessionActivity(ctx context.Context, userID string) (*domain.SessionActivityLog, error)
	ListSessionActivity(ctx context.Context, userID string, since time.Time) ([]*domain.SessionActivityLog, error)
	UpsertDailySummary(ctx context.Context, s *domain.DailyActivitySummary) error
	UnsyncedDailySummaries(ctx context.Context, userID string, limit int) ([]*domain.DailyActivitySummary, error)
	MarkSummariesSynced(ctx context.Context, ids []int64) error
	// DeleteSyncedSummariesBefore removes synced summaries dated before date (YYYY-MM-DD).
	DeleteSyncedSummariesBefore(ctx context.Context, date string) (int64, error)
}

// CacheStore holds the TTL-bearing cache tables.
type CacheStore interface {
	SaveWeather(ctx context.Context, w *domain.WeatherCache) error
	GetWeather(ctx context.Context, userID string) (*domain.WeatherCache, error)

	// SaveLibrarySections replaces every section of the user.
	SaveLibrarySections(ctx context.Context, userID string, sections []*domain.LibrarySection) error
	GetLibrarySections(ctx context.Context, userID string) ([]*domain.LibrarySection, error)
	DeleteLibrarySections(ctx context.Context, userID string) error

	SaveAIRecommendation(ctx context.Context, rec *domain.AIRecommendation) error
	// GetAIRecommendation also refreshes the entry's LRU position.
	GetAIRecommendation(ctx context.Context, inputKey string) (*domain.AIRecommendation, error)
	DeleteAIRecommendations(ctx context.Context, userID string) error
	// EvictAIRecommendations keeps the keep most recently used entries.
	EvictAIRecommendations(ctx context.Context, keep int) (int64, error)

	// PurgeExpiredCaches deletes every cache row whose expires_at is before now.
	PurgeExpiredCaches(ctx context.Context, now time.Time) (int64, error)
}

// SearchHistoryStore is the append-only search log.
type SearchHistoryStore interface {
	AddSearch(ctx context.Context, e *domain.SearchHistoryEntry) error
	RecentSearches(ctx context.Context, userID string, limit int) ([]*domain.SearchHistoryEntry, error)
	SearchesSince(ctx context.Context, userID string, since time.Time) ([]*domain.SearchHistoryEntry, error)
	ClearSearchHistory(ctx context.Context, userID string) error
	DeleteSearchHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AchievementStore records unlocked achievements.
type AchievementStore interface {
	GetAchievement(ctx context.Context, userID, achievementID string) (*domain.Achievement, error)
	// InsertAchievement returns ErrAlreadyExists if the pair was unlocked before.
	InsertAchievement(ctx context.Context, a *domain.Achievement) error
	ListAchievements(ctx context.Context, userID string) ([]*domain.Achievement, error)
	PendingAchievements(ctx context.Context, userID string) ([]*domain.Achievement, error)
	MarkAchievementsSynced(ctx context.Context, userID string, achievementIDs []string) error
}

// Tx is the write surface available inside InTx. Everything written
// through it commits or rolls back together.
type Tx interface {
	UpsertUser(ctx context.Context, user *domain.User) error
	Enqueue(ctx context.Context, op *domain.OutboxOperation) error
	SaveInterests(ctx context.Context, interests *domain.UserInterests) error
	InsertEmotionLog(ctx context.Context, log *domain.EmotionLog) error
	InsertAchievement(ctx context.Context, a *domain.Achievement) error
}

// Store is the full durable store.
type Store interface {
	UserStore
	OutboxStore
	InterestsStore
	EmotionLogStore
	TelemetryStore
	ActivityStore
	CacheStore
	SearchHistoryStore
	AchievementStore

	// InTx runs fn in one transaction. Change events are published only
	// after a successful commit.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
