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

// SignUpRequest is the input of a local signup.
type SignUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// AccountService manages the locally cached account.
type AccountService struct {
	store     store.Store
	outbox    *OutboxService
	syncer    SyncScheduler
	validator *validation.Validator
	logger    *slog.Logger
	clock     Clock
}

// NewAccountService creates a new account service.
func NewAccountService(st store.Store, outbox *OutboxService, syncer SyncScheduler, v *validation.Validator, logger *slog.Logger, clock Clock) *AccountService {
	return &AccountService{
		store:     st,
		outbox:    outbox,
		syncer:    syncer,
		validator: v,
		logger:    logger,
		clock:     clock,
	}
}

// RecordLogin stores one login attempt for the telemetry worker. A nil
// loginErr marks the attempt successful.
func (s *AccountService) RecordLogin(ctx context.Context, email string, loginType domain.LoginType, loginErr error) error {
	t := &domain.LoginTelemetry{
		Email:     domain.NormalizeEmail(email),
		LoginType: loginType,
		Success:   loginErr == nil,
		Timestamp: s.clock.now(),
	}
	if loginErr != nil {
		t.ErrorMessage = loginErr.Error()
	}
	if err := s.store.InsertLoginTelemetry(ctx, t); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// SignUpLocal creates an account that exists only on this device until
// profile reconciliation moves it onto a remote id.
func (s *AccountService) SignUpLocal(ctx context.Context, req SignUpRequest) (*domain.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(req.Email)

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, errors.AlreadyExists("an account with this email already exists")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	userID, err := id.LocalUserID()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate local user id")
	}
	now := s.clock.now()
	user := &domain.User{
		ID:          userID,
		Email:       email,
		DisplayName: req.DisplayName,
		SyncStatus:  domain.SyncStatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	op, err := s.outbox.Build(userID, domain.ProfileUpsertPayload{
		UserID:      userID,
		Email:       email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.UpsertUser(ctx, user); err != nil {
			return err
		}
		return tx.Enqueue(ctx, op)
	})
	if err != nil {
		return nil, fmt.Errorf("save local user: %w", err)
	}

	if err := s.RecordLogin(ctx, email, domain.LoginSignup, nil); err != nil {
		s.logger.Warn("signup telemetry not recorded", "error", err)
	}
	if s.syncer != nil {
		s.syncer.ScheduleProfileReconciliation()
	}

	s.logger.Info("local account created", "user_id", userID)
	return user, nil
}

// Logout cancels all background work and removes the local user row.
// Queued outbox rows are kept and drain after the next sign-in.
func (s *AccountService) Logout(ctx context.Context, userID string) error {
	if s.syncer != nil {
		s.syncer.CancelAllWork()
	}
	if userID == "" {
		return nil
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("user logged out", "user_id", userID)
	return nil
}
