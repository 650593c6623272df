package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/events"
)

func TestBusNotifier_Publishes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(logger, 8)
	defer bus.Close()
	sub := bus.Subscribe(events.EventSyncCompleted, events.EventAchievementUnlocked)

	n := NewBusNotifier(bus, logger)
	ctx := context.Background()
	n.SyncCompleted(ctx, "u1", "emotion_logs", 0)
	n.SyncCompleted(ctx, "u1", "emotion_logs", 3)
	n.AchievementUnlocked(ctx, "u1", "first_emotion_log")

	ev := <-sub.C
	require.Equal(t, events.EventSyncCompleted, ev.Type)
	assert.Equal(t, events.SyncCompletedData{Kind: "emotion_logs", Count: 3}, ev.Data)

	ev = <-sub.C
	require.Equal(t, events.EventAchievementUnlocked, ev.Type)
	assert.Equal(t, "u1", ev.UserID)
}

func TestBusNotifier_NilBus(t *testing.T) {
	n := NewBusNotifier(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NotPanics(t, func() {
		n.SyncCompleted(context.Background(), "u1", "x", 1)
		n.AchievementUnlocked(context.Background(), "u1", "y")
	})
}
