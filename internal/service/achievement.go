package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/errors"
	"github.com/moodtune/moodtune-sync/internal/notify"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// tenLogs is the emotion-log count behind AchievementTenEmotionLogs.
const tenLogs = 10

// AchievementService unlocks achievements once per user.
type AchievementService struct {
	store    store.Store
	notifier notify.Notifier
	logger   *slog.Logger
	clock    Clock
}

// NewAchievementService creates a new achievement service.
func NewAchievementService(st store.Store, notifier notify.Notifier, logger *slog.Logger, clock Clock) *AchievementService {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &AchievementService{store: st, notifier: notifier, logger: logger, clock: clock}
}

// Unlock records achievementID for userID. It reports true only for the
// first unlock; the notification fires only then.
func (s *AchievementService) Unlock(ctx context.Context, userID, achievementID string) (bool, error) {
	_, err := s.store.GetAchievement(ctx, userID, achievementID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("get achievement: %w", err)
	}

	a := &domain.Achievement{
		UserID:        userID,
		AchievementID: achievementID,
		UnlockedAt:    s.clock.now(),
		SyncStatus:    domain.SyncStatusPending,
	}
	if err := s.store.InsertAchievement(ctx, a); err != nil {
		// Lost a race with a concurrent unlock.
		if errors.Is(err, store.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("insert achievement: %w", err)
	}

	s.logger.Info("achievement unlocked", "user_id", userID, "achievement", achievementID)
	s.notifier.AchievementUnlocked(ctx, userID, achievementID)
	return true, nil
}

// EvaluateEmotionLogs unlocks the emotion-log milestones the user has reached.
func (s *AchievementService) EvaluateEmotionLogs(ctx context.Context, userID string) ([]string, error) {
	n, err := s.store.CountEmotionLogs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count emotion logs: %w", err)
	}
	var candidates []string
	if n >= 1 {
		candidates = append(candidates, domain.AchievementFirstEmotionLog)
	}
	if n >= tenLogs {
		candidates = append(candidates, domain.AchievementTenEmotionLogs)
	}
	return s.unlockAll(ctx, userID, candidates)
}

// EvaluateInterests unlocks interests_set once the user has any interest.
func (s *AchievementService) EvaluateInterests(ctx context.Context, userID string, interests []string) ([]string, error) {
	if len(interests) == 0 {
		return nil, nil
	}
	return s.unlockAll(ctx, userID, []string{domain.AchievementInterestsSet})
}

func (s *AchievementService) unlockAll(ctx context.Context, userID string, ids []string) ([]string, error) {
	var unlocked []string
	for _, achievementID := range ids {
		ok, err := s.Unlock(ctx, userID, achievementID)
		if err != nil {
			return unlocked, err
		}
		if ok {
			unlocked = append(unlocked, achievementID)
		}
	}
	return unlocked, nil
}

// List returns the user's achievements in unlock order.
func (s *AchievementService) List(ctx context.Context, userID string) ([]*domain.Achievement, error) {
	return s.store.ListAchievements(ctx, userID)
}
