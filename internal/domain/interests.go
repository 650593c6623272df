package domain

import (
	"slices"
	"time"
)

// UserInterests is the versioned interest set for one user.
type UserInterests struct {
	UserID       string    `json:"user_id"`
	Interests    []string  `json:"interests"`
	Version      int       `json:"version"`
	LastModified time.Time `json:"last_modified"`
	// ServerTimestamp is the remote modification time last seen; nil before the first sync.
	ServerTimestamp *time.Time `json:"server_timestamp,omitempty"`
	NeedsSync       bool       `json:"needs_sync"`
}

// Edit replaces the interest set and marks the row for sync.
func (u *UserInterests) Edit(interests []string, now time.Time) {
	u.Interests = slices.Clone(interests)
	u.Version++
	u.LastModified = now
	u.NeedsSync = true
}

// RemoteInterests is the remote view consulted during conflict resolution.
type RemoteInterests struct {
	Interests    []string
	LastModified time.Time
}

// Winner names the side selected by conflict resolution.
type Winner string

const (
	// RemoteWins means the remote copy overwrites local state.
	RemoteWins Winner = "remote"
	// LocalWins means local state is pushed to the remote.
	LocalWins Winner = "local"
)

// Resolution is the outcome of ResolveInterests.
type Resolution struct {
	Winner Winner
	// Tie is set when both timestamps were equal and local won by default.
	Tie bool
	// Result is the local row to persist after the winner was applied.
	Result UserInterests
}

// ResolveInterests applies Last-Write-Wins with a local bias.
// Only a strictly newer remote timestamp wins; equal timestamps keep local.
// The winner depends solely on the two timestamps.
func ResolveInterests(local UserInterests, remote *RemoteInterests, now time.Time) Resolution {
	result := local
	result.Interests = slices.Clone(local.Interests)

	if remote != nil && remote.LastModified.After(local.LastModified) {
		ts := remote.LastModified
		result.Interests = slices.Clone(remote.Interests)
		result.ServerTimestamp = &ts
		result.NeedsSync = false
		result.Version++
		return Resolution{Winner: RemoteWins, Result: result}
	}

	pushed := now
	result.ServerTimestamp = &pushed
	result.NeedsSync = false
	return Resolution{
		Winner: LocalWins,
		Tie:    remote != nil && remote.LastModified.Equal(local.LastModified),
		Result: result,
	}
}
