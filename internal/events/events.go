// Package events is the in-process publish/subscribe bus. The store
// publishes table changes on it, workers publish sync completions and
// the notifier publishes user-facing notifications.
package events

import "time"

// EventType identifies what happened.
type EventType string

const (
	// EventTableChanged is published after any committed mutation of a table.
	EventTableChanged EventType = "table.changed"
	// EventSyncCompleted is published when a worker pushed rows to the remote.
	EventSyncCompleted EventType = "sync.completed"
	// EventAchievementUnlocked is published the first time a user earns an achievement.
	EventAchievementUnlocked EventType = "achievement.unlocked"
	// EventWorkerFinished is published after every scheduled worker run.
	EventWorkerFinished EventType = "worker.finished"
)

// Event is a single bus message. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType `json:"type"`
	Table     string    `json:"table,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncCompletedData describes a successful push.
type SyncCompletedData struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// AchievementData names the unlocked achievement.
type AchievementData struct {
	AchievementID string `json:"achievement_id"`
}

// WorkerFinishedData reports a worker run outcome.
type WorkerFinishedData struct {
	Worker   string        `json:"worker"`
	Result   string        `json:"result"`
	Duration time.Duration `json:"duration"`
}

// NewTableChangedEvent builds a table change notification.
func NewTableChangedEvent(table string) Event {
	return Event{Type: EventTableChanged, Table: table, Timestamp: time.Now()}
}

// NewSyncCompletedEvent builds a sync completion event.
func NewSyncCompletedEvent(userID, kind string, count int) Event {
	return Event{
		Type:      EventSyncCompleted,
		UserID:    userID,
		Data:      SyncCompletedData{Kind: kind, Count: count},
		Timestamp: time.Now(),
	}
}

// NewAchievementUnlockedEvent builds an achievement event.
func NewAchievementUnlockedEvent(userID, achievementID string) Event {
	return Event{
		Type:      EventAchievementUnlocked,
		UserID:    userID,
		Data:      AchievementData{AchievementID: achievementID},
		Timestamp: time.Now(),
	}
}

// NewWorkerFinishedEvent builds a worker outcome event.
func NewWorkerFinishedEvent(worker, result string, d time.Duration) Event {
	return Event{
		Type:      EventWorkerFinished,
		Data:      WorkerFinishedData{Worker: worker, Result: result, Duration: d},
		Timestamp: time.Now(),
	}
}
