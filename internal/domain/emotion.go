package domain

import "time"

// CaptureSource is how an emotion was captured.
type CaptureSource string

const (
	// CaptureManual is a user-picked emotion.
	CaptureManual CaptureSource = "MANUAL"
	// CaptureCamera is an emotion derived from the camera classifier.
	CaptureCamera CaptureSource = "CAMERA"
)

// EmotionEntry is one emotion within a submission. Order is significant.
type EmotionEntry struct {
	EmotionID string        `json:"emotion_id" validate:"required"`
	Name      string        `json:"name" validate:"required"`
	Source    CaptureSource `json:"source" validate:"oneof=MANUAL CAMERA"`
}

// EmotionLog is one emotion submission waiting to reach the remote.
type EmotionLog struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
	// ClientID is the remote document id; it makes retried pushes idempotent.
	ClientID  string         `json:"client_id"`
	Timestamp time.Time      `json:"timestamp"`
	Emotions  []EmotionEntry `json:"emotions"`
	Synced    bool           `json:"synced"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"last_error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsPoisoned reports whether the log hit the attempt ceiling.
func (e *EmotionLog) IsPoisoned() bool {
	return !e.Synced && e.Attempts >= MaxSyncAttempts
}

// EmotionIDs returns the emotion ids in submission order.
func (e *EmotionLog) EmotionIDs() []string {
	ids := make([]string, 0, len(e.Emotions))
	for _, em := range e.Emotions {
		ids = append(ids, em.EmotionID)
	}
	return ids
}
