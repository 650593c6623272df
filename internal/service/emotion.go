package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/errors"
	"github.com/moodtune/moodtune-sync/internal/id"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// EmotionService records emotion submissions.
type EmotionService struct {
	store        store.Store
	outbox       *OutboxService
	achievements *AchievementService
	syncer       SyncScheduler
	logger       *slog.Logger
	clock        Clock
}

// NewEmotionService creates a new emotion service. syncer may be nil, in
// which case submissions wait for the periodic emotion sync.
func NewEmotionService(st store.Store, outbox *OutboxService, achievements *AchievementService, syncer SyncScheduler, logger *slog.Logger, clock Clock) *EmotionService {
	return &EmotionService{
		store:        st,
		outbox:       outbox,
		achievements: achievements,
		syncer:       syncer,
		logger:       logger,
		clock:        clock,
	}
}

// Submit stores an emotion submission and its outbox mirror in one
// transaction, then evaluates achievements and attempts an immediate sync.
// Only the local write can fail the call.
func (s *EmotionService) Submit(ctx context.Context, userID string, entries []domain.EmotionEntry) (*domain.EmotionLog, error) {
	if userID == "" {
		return nil, errors.Precondition("no signed-in user")
	}

	now := s.clock.now()
	log := &domain.EmotionLog{
		UserID:    userID,
		ClientID:  id.ClientID(),
		Timestamp: now,
		Emotions:  entries,
		CreatedAt: now,
	}
	op, err := s.outbox.Build(userID, domain.EmotionLogPayload{
		UserID:    userID,
		ClientID:  log.ClientID,
		Timestamp: now.UnixMilli(),
		Emotions:  entries,
	})
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertEmotionLog(ctx, log); err != nil {
			return err
		}
		return tx.Enqueue(ctx, op)
	})
	if err != nil {
		return nil, fmt.Errorf("save emotion log: %w", err)
	}

	if s.achievements != nil {
		if _, err := s.achievements.EvaluateEmotionLogs(ctx, userID); err != nil {
			s.logger.Warn("achievement evaluation failed", "user_id", userID, "error", err)
		}
	}
	if s.syncer != nil {
		result := s.syncer.SyncEmotionsNow(ctx)
		s.logger.Debug("immediate emotion sync", "client_id", log.ClientID, "result", result.String())
	}
	return log, nil
}

// PendingCount returns how many of the user's logs still await the remote.
func (s *EmotionService) PendingCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnsyncedEmotionLogs(ctx, userID)
}
