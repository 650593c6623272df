package domain

import "time"

// SyncStatus tracks where a locally-owned row stands relative to the remote copy.
type SyncStatus string

const (
	// SyncStatusPending means the row has local changes the remote has not seen.
	SyncStatusPending SyncStatus = "PENDING_SYNC"
	// SyncStatusSynced means the remote acknowledged the latest local state.
	SyncStatusSynced SyncStatus = "SYNCED"
	// SyncStatusError means the last sync attempt failed permanently.
	SyncStatusError SyncStatus = "SYNC_ERROR"
	// SyncStatusConflict means local and remote diverged and need reconciliation.
	SyncStatusConflict SyncStatus = "CONFLICT"
)

// Valid reports whether s is one of the known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSynced, SyncStatusError, SyncStatusConflict:
		return true
	default:
		return false
	}
}

// MaxSyncAttempts is the poison-row ceiling shared by every queue.
// A row that failed this many times is left unsynced and skipped by
// automatic sync until its attempts are reset.
const MaxSyncAttempts = 3

// RetentionPeriod is how long synced rows are kept before cleanup.
const RetentionPeriod = 30 * 24 * time.Hour

// DefaultBatchSize bounds a single drain of any queue.
const DefaultBatchSize = 50

// RetentionCutoff returns the timestamp before which synced rows may be purged.
func RetentionCutoff(now time.Time) time.Time {
	return now.Add(-RetentionPeriod)
}
