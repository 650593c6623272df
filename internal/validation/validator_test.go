package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/domain"
	domainerrors "github.com/moodtune/moodtune-sync/internal/errors"
	"github.com/moodtune/moodtune-sync/internal/validation"
)

func TestValidator_ValidPayloads(t *testing.T) {
	v := validation.New()

	payloads := []any{
		domain.ProfileUpsertPayload{UserID: "u1", Email: "ana@example.com"},
		domain.InterestsUpsertPayload{UserID: "u1", Interests: []string{"jazz"}, Version: 1, LastModified: 100},
		domain.MoodUpdatePayload{UserID: "u1", Mood: "calm", Intensity: 3, OccurredAt: 100},
		domain.EmotionLogPayload{
			UserID:    "u1",
			ClientID:  "9b2d7c0e-3f4a-4b8e-8a1c-2d3e4f5a6b7c",
			Timestamp: 100,
			Emotions:  []domain.EmotionEntry{{EmotionID: "e1", Name: "joy", Source: domain.CaptureManual}},
		},
	}

	for _, p := range payloads {
		assert.NoError(t, v.Validate(p))
	}
}

func TestValidator_Errors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name    string
		payload any
		field   string
	}{
		{"missing user", domain.QuickActionPayload{Action: "play", OccurredAt: 1}, "user_id"},
		{"bad email", domain.ProfileUpsertPayload{UserID: "u1", Email: "nope"}, "email"},
		{"intensity out of range", domain.MoodUpdatePayload{UserID: "u1", Mood: "calm", Intensity: 11, OccurredAt: 1}, "intensity"},
		{
			"empty emotion list",
			domain.EmotionLogPayload{UserID: "u1", ClientID: "9b2d7c0e-3f4a-4b8e-8a1c-2d3e4f5a6b7c", Timestamp: 1},
			"emotions",
		},
		{
			"nested entry",
			domain.EmotionLogPayload{
				UserID:    "u1",
				ClientID:  "9b2d7c0e-3f4a-4b8e-8a1c-2d3e4f5a6b7c",
				Timestamp: 1,
				Emotions:  []domain.EmotionEntry{{EmotionID: "e1", Source: domain.CaptureCamera}},
			},
			"emotions[0].name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.payload)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.Contains(t, domainErr.Message, tt.field)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.field)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	err := validation.New().Validate(domain.ProfileUpsertPayload{UserID: "u1"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "email")
	assert.NotContains(t, err.Error(), "Email")
}
