package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationType tags an outbox row with the remote mutation it represents.
type OperationType string

const (
	// OpProfileUpsert writes the user's profile document.
	OpProfileUpsert OperationType = "PROFILE_UPSERT"
	// OpInterestsUpsert writes the user's interest tags.
	OpInterestsUpsert OperationType = "INTERESTS_UPSERT"
	// OpTelemetry writes a generic telemetry event.
	OpTelemetry OperationType = "TELEMETRY"
	// OpQuickAction records a quick action taken from the home screen.
	OpQuickAction OperationType = "QUICK_ACTION"
	// OpMoodUpdate records the user's current mood.
	OpMoodUpdate OperationType = "MOOD_UPDATE"
	// OpEmotionLog mirrors an emotion submission into the outbox.
	OpEmotionLog OperationType = "EMOTION_LOG"
)

// AllOperationTypes lists every operation type. The outbox worker must
// register a handler for each of them.
func AllOperationTypes() []OperationType {
	return []OperationType{
		OpProfileUpsert,
		OpInterestsUpsert,
		OpTelemetry,
		OpQuickAction,
		OpMoodUpdate,
		OpEmotionLog,
	}
}

// OutboxOperation is one durable pending mutation.
// Only Synced, Attempts and LastError change after insert.
type OutboxOperation struct {
	ID             int64         `json:"id"`
	Type           OperationType `json:"type"`
	UserID         string        `json:"user_id"`
	IdempotencyKey string        `json:"idempotency_key"`
	Payload        []byte        `json:"payload"`
	CreatedAt      time.Time     `json:"created_at"`
	Synced         bool          `json:"synced"`
	Attempts       int           `json:"attempts"`
	LastError      string        `json:"last_error,omitempty"`
}

// IsPoisoned reports whether the row hit the attempt ceiling.
func (o *OutboxOperation) IsPoisoned() bool {
	return !o.Synced && o.Attempts >= MaxSyncAttempts
}

// Decode returns the typed payload of the row.
func (o *OutboxOperation) Decode() (Payload, error) {
	return DecodePayload(o.Type, o.Payload)
}

// Payload is the closed set of outbox payload shapes.
type Payload interface {
	OperationType() OperationType
	sealed()
}

// ProfileUpsertPayload carries the profile fields pushed to the remote user document.
type ProfileUpsertPayload struct {
	UserID      string `json:"user_id" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name"`
}

// InterestsUpsertPayload carries the full interest set at the time of the edit.
type InterestsUpsertPayload struct {
	UserID       string   `json:"user_id" validate:"required"`
	Interests    []string `json:"interests" validate:"dive,required"`
	Version      int      `json:"version" validate:"gte=1"`
	LastModified int64    `json:"last_modified" validate:"gt=0"`
}

// TelemetryPayload is a generic client event.
type TelemetryPayload struct {
	UserID     string            `json:"user_id" validate:"required"`
	Event      string            `json:"event" validate:"required"`
	Properties map[string]string `json:"properties,omitempty"`
	OccurredAt int64             `json:"occurred_at" validate:"gt=0"`
}

// QuickActionPayload records a tap on a quick action.
type QuickActionPayload struct {
	UserID     string `json:"user_id" validate:"required"`
	Action     string `json:"action" validate:"required"`
	Target     string `json:"target,omitempty"`
	OccurredAt int64  `json:"occurred_at" validate:"gt=0"`
}

// MoodUpdatePayload records the user's self-reported mood.
type MoodUpdatePayload struct {
	UserID     string `json:"user_id" validate:"required"`
	Mood       string `json:"mood" validate:"required"`
	Intensity  int    `json:"intensity" validate:"gte=0,lte=10"`
	OccurredAt int64  `json:"occurred_at" validate:"gt=0"`
}

// EmotionLogPayload mirrors an emotion log for the general outbox path.
type EmotionLogPayload struct {
	UserID    string         `json:"user_id" validate:"required"`
	ClientID  string         `json:"client_id" validate:"required,uuid"`
	Timestamp int64          `json:"timestamp" validate:"gt=0"`
	Emotions  []EmotionEntry `json:"emotions" validate:"min=1,dive"`
}

// OperationType implements Payload.
func (ProfileUpsertPayload) OperationType() OperationType { return OpProfileUpsert }

// OperationType implements Payload.
func (InterestsUpsertPayload) OperationType() OperationType { return OpInterestsUpsert }

// OperationType implements Payload.
func (TelemetryPayload) OperationType() OperationType { return OpTelemetry }

// OperationType implements Payload.
func (QuickActionPayload) OperationType() OperationType { return OpQuickAction }

// OperationType implements Payload.
func (MoodUpdatePayload) OperationType() OperationType { return OpMoodUpdate }

// OperationType implements Payload.
func (EmotionLogPayload) OperationType() OperationType { return OpEmotionLog }

func (ProfileUpsertPayload) sealed()   {}
func (InterestsUpsertPayload) sealed() {}
func (TelemetryPayload) sealed()       {}
func (QuickActionPayload) sealed()     {}
func (MoodUpdatePayload) sealed()      {}
func (EmotionLogPayload) sealed()      {}

// EncodePayload serializes a payload for storage in the outbox.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.OperationType(), err)
	}
	return data, nil
}

// DecodePayload turns a stored payload back into its typed form.
func DecodePayload(op OperationType, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch op {
	case OpProfileUpsert:
		p, err = decodeAs[ProfileUpsertPayload](data)
	case OpInterestsUpsert:
		p, err = decodeAs[InterestsUpsertPayload](data)
	case OpTelemetry:
		p, err = decodeAs[TelemetryPayload](data)
	case OpQuickAction:
		p, err = decodeAs[QuickActionPayload](data)
	case OpMoodUpdate:
		p, err = decodeAs[MoodUpdatePayload](data)
	case OpEmotionLog:
		p, err = decodeAs[EmotionLogPayload](data)
	default:
		return nil, fmt.Errorf("unknown operation type %q", op)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", op, err)
	}
	return p, nil
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
