package domain

import (
	"strings"
	"time"
)

// LocalUserIDPrefix marks ids minted on-device before the remote id is known.
const LocalUserIDPrefix = "local"

// User is the locally cached account row.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	SyncStatus  SyncStatus `json:"sync_status"`
	// LocalID keeps the temporary id after reconciliation replaced ID.
	LocalID   string    `json:"local_id,omitempty"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLocalOnly reports whether the user still carries an on-device id.
func (u *User) IsLocalOnly() bool {
	return strings.HasPrefix(u.ID, LocalUserIDPrefix+"-")
}

// NormalizeEmail is the comparison form used when matching accounts.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Reconcile moves the user onto its authoritative remote id.
// The previous id is kept in LocalID so foreign rows can be rewritten.
func (u *User) Reconcile(remoteID string, now time.Time) {
	if u.ID != remoteID {
		u.LocalID = u.ID
		u.ID = remoteID
	}
	u.SyncStatus = SyncStatusSynced
	u.Version++
	u.UpdatedAt = now
}
