// Package notify fires user-facing notifications. Delivery is
// fire-and-forget: a notification never fails the action that caused it.
package notify

import (
	"context"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/events"
)

// Notifier receives the positive signals of the sync engine.
type Notifier interface {
	SyncCompleted(ctx context.Context, userID, kind string, n int)
	AchievementUnlocked(ctx context.Context, userID, achievementID string)
}

// BusNotifier publishes notifications on the event bus, where the platform
// layer (or the dev server's log) picks them up.
type BusNotifier struct {
	bus    *events.Bus
	logger *slog.Logger
}

// NewBusNotifier creates a notifier. A nil bus only logs.
func NewBusNotifier(bus *events.Bus, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{bus: bus, logger: logger}
}

// SyncCompleted announces that n rows of kind reached the remote.
func (n *BusNotifier) SyncCompleted(_ context.Context, userID, kind string, count int) {
	if count <= 0 {
		return
	}
	n.logger.Info("sync completed",
		slog.String("user_id", userID),
		slog.String("kind", kind),
		slog.Int("count", count),
	)
	if n.bus != nil {
		n.bus.Publish(events.NewSyncCompletedEvent(userID, kind, count))
	}
}

// AchievementUnlocked announces a first-time unlock.
func (n *BusNotifier) AchievementUnlocked(_ context.Context, userID, achievementID string) {
	n.logger.Info("achievement unlocked",
		slog.String("user_id", userID),
		slog.String("achievement_id", achievementID),
	)
	if n.bus != nil {
		n.bus.Publish(events.NewAchievementUnlockedEvent(userID, achievementID))
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) SyncCompleted(context.Context, string, string, int)  {}
func (Discard) AchievementUnlocked(context.Context, string, string) {}
