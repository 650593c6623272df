package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/errors"
	"github.com/moodtune/moodtune-sync/internal/id"
	"github.com/moodtune/moodtune-sync/internal/store"
	"github.com/moodtune/moodtune-sync/internal/validation"
)

// poisonedBatch bounds one RetryPoisoned pass.
const poisonedBatch = 500

// OutboxService is the single way rows enter the outbox: every payload is
// validated, encoded and given an idempotency key here.
type OutboxService struct {
	store     store.Store
	validator *validation.Validator
	logger    *slog.Logger
	clock     Clock
}

// NewOutboxService creates a new outbox service.
func NewOutboxService(st store.Store, v *validation.Validator, logger *slog.Logger, clock Clock) *OutboxService {
	return &OutboxService{store: st, validator: v, logger: logger, clock: clock}
}

// Build validates p and turns it into an unsaved outbox row.
func (s *OutboxService) Build(userID string, p domain.Payload) (*domain.OutboxOperation, error) {
	if userID == "" {
		return nil, errors.Precondition("outbox row needs a user")
	}
	if err := s.validator.Validate(p); err != nil {
		return nil, err
	}
	data, err := domain.EncodePayload(p)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "encode payload")
	}
	return &domain.OutboxOperation{
		Type:           p.OperationType(),
		UserID:         userID,
		IdempotencyKey: id.IdempotencyKey(),
		Payload:        data,
		CreatedAt:      s.clock.now(),
	}, nil
}

// Enqueue validates and queues p on its own.
func (s *OutboxService) Enqueue(ctx context.Context, userID string, p domain.Payload) (*domain.OutboxOperation, error) {
	op, err := s.Build(userID, p)
	if err != nil {
		return nil, err
	}
	if err := s.store.Enqueue(ctx, op); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", op.Type, err)
	}
	s.logger.Debug("outbox row queued",
		"type", op.Type,
		"id", op.ID,
		"idempotency_key", op.IdempotencyKey,
	)
	return op, nil
}

// RecordQuickAction queues a quick action tap.
func (s *OutboxService) RecordQuickAction(ctx context.Context, userID, action, target string) (*domain.OutboxOperation, error) {
	return s.Enqueue(ctx, userID, domain.QuickActionPayload{
		UserID:     userID,
		Action:     action,
		Target:     target,
		OccurredAt: s.clock.now().UnixMilli(),
	})
}

// RecordMood queues a mood update.
func (s *OutboxService) RecordMood(ctx context.Context, userID, mood string, intensity int) (*domain.OutboxOperation, error) {
	return s.Enqueue(ctx, userID, domain.MoodUpdatePayload{
		UserID:     userID,
		Mood:       mood,
		Intensity:  intensity,
		OccurredAt: s.clock.now().UnixMilli(),
	})
}

// RecordEvent queues a generic telemetry event.
func (s *OutboxService) RecordEvent(ctx context.Context, userID, event string, props map[string]string) (*domain.OutboxOperation, error) {
	return s.Enqueue(ctx, userID, domain.TelemetryPayload{
		UserID:     userID,
		Event:      event,
		Properties: props,
		OccurredAt: s.clock.now().UnixMilli(),
	})
}

// RetryPoisoned gives rows that hit the attempt ceiling a fresh budget.
// It returns how many rows were reset.
func (s *OutboxService) RetryPoisoned(ctx context.Context) (int, error) {
	rows, err := s.store.PoisonedOutbox(ctx, poisonedBatch)
	if err != nil {
		return 0, fmt.Errorf("list poisoned rows: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, op := range rows {
		ids = append(ids, op.ID)
	}
	if err := s.store.ResetOutboxAttempts(ctx, ids); err != nil {
		return 0, fmt.Errorf("reset attempts: %w", err)
	}
	s.logger.Info("poisoned outbox rows reset", "count", len(ids))
	return len(ids), nil
}

// OutboxStats summarizes the queue.
type OutboxStats struct {
	Pending int                          `json:"pending"`
	ByType  map[domain.OperationType]int `json:"by_type"`
}

// Stats returns the pending count and its breakdown by type.
func (s *OutboxService) Stats(ctx context.Context) (*OutboxStats, error) {
	pending, err := s.store.CountPendingOutbox(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	byType, err := s.store.PendingOutboxByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	return &OutboxStats{Pending: pending, ByType: byType}, nil
}
