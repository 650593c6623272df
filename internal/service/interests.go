package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/errors"
	"github.com/moodtune/moodtune-sync/internal/normalize"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// InterestsService edits the user's interest tags.
type InterestsService struct {
	store        store.Store
	outbox       *OutboxService
	achievements *AchievementService
	syncer       SyncScheduler
	logger       *slog.Logger
	clock        Clock
}

// NewInterestsService creates a new interests service.
func NewInterestsService(st store.Store, outbox *OutboxService, achievements *AchievementService, syncer SyncScheduler, logger *slog.Logger, clock Clock) *InterestsService {
	return &InterestsService{
		store:        st,
		outbox:       outbox,
		achievements: achievements,
		syncer:       syncer,
		logger:       logger,
		clock:        clock,
	}
}

// Get returns the user's interests, or an empty unversioned set.
func (s *InterestsService) Get(ctx context.Context, userID string) (*domain.UserInterests, error) {
	ui, err := s.store.GetInterests(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &domain.UserInterests{UserID: userID, Interests: []string{}}, nil
	}
	return ui, err
}

// UpdateInterests replaces the interest set. Tags are normalized and
// deduplicated in first-seen order. The new version and its outbox row are
// written together, then a one-shot interests sync is requested.
func (s *InterestsService) UpdateInterests(ctx context.Context, userID string, raw []string) (*domain.UserInterests, error) {
	if userID == "" {
		return nil, errors.Precondition("no signed-in user")
	}

	ui, err := s.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get interests: %w", err)
	}
	ui.Edit(normalize.Interests(raw), s.clock.now())

	op, err := s.outbox.Build(userID, domain.InterestsUpsertPayload{
		UserID:       userID,
		Interests:    ui.Interests,
		Version:      ui.Version,
		LastModified: ui.LastModified.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.SaveInterests(ctx, ui); err != nil {
			return err
		}
		return tx.Enqueue(ctx, op)
	})
	if err != nil {
		return nil, fmt.Errorf("save interests: %w", err)
	}

	s.logger.Info("interests updated", "user_id", userID, "version", ui.Version, "count", len(ui.Interests))

	if s.achievements != nil {
		if _, err := s.achievements.EvaluateInterests(ctx, userID, ui.Interests); err != nil {
			s.logger.Warn("achievement evaluation failed", "user_id", userID, "error", err)
		}
	}
	if s.syncer != nil {
		s.syncer.ScheduleInterestsSync()
	}
	return ui, nil
}
