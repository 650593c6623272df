package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// ActivityService derives usage sessions from the local timeline.
type ActivityService struct {
	store    store.Store
	logger   *slog.Logger
	clock    Clock
	location *time.Location
}

// NewActivityService creates a new activity service. Daily summaries are
// bucketed by dates in loc; nil means UTC.
func NewActivityService(st store.Store, logger *slog.Logger, clock Clock, loc *time.Location) *ActivityService {
	if loc == nil {
		loc = time.UTC
	}
	return &ActivityService{store: st, logger: logger, clock: clock, location: loc}
}

// ComputeSessions merges successful logins, queued actions and searches
// since the given time into one timeline, splits it at 30 minutes of
// inactivity, caches every session and upserts the per-day summaries.
// email may be empty when the account has none.
func (s *ActivityService) ComputeSessions(ctx context.Context, userID, email string, since time.Time) ([]domain.SessionActivityLog, error) {
	timeline, err := s.timeline(ctx, userID, email, since)
	if err != nil {
		return nil, err
	}
	sessions := domain.BuildSessions(userID, timeline, domain.SessionInactivityTimeout)
	if len(sessions) == 0 {
		return nil, nil
	}

	now := s.clock.now()
	for i := range sessions {
		sessions[i].Stamp(now)
		if err := s.store.UpsertSessionActivity(ctx, &sessions[i]); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}
	for _, day := range domain.SummarizeDay(userID, sessions, s.location, now) {
		if err := s.store.UpsertDailySummary(ctx, &day); err != nil {
			return nil, fmt.Errorf("save daily summary %s: %w", day.Date, err)
		}
	}

	s.logger.Debug("sessions computed", "user_id", userID, "sessions", len(sessions), "events", len(timeline))
	return sessions, nil
}

func (s *ActivityService) timeline(ctx context.Context, userID, email string, since time.Time) ([]domain.ActivityEvent, error) {
	var events []domain.ActivityEvent

	if email != "" {
		logins, err := s.store.ListLoginsSince(ctx, email, since)
		if err != nil {
			return nil, fmt.Errorf("list logins: %w", err)
		}
		for _, l := range logins {
			if !l.Success {
				continue
			}
			events = append(events, domain.ActivityEvent{At: l.Timestamp, Kind: domain.ActivityLogin, LoginType: l.LoginType})
		}
	}

	ops, err := s.store.ListOutboxSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	for _, op := range ops {
		events = append(events, domain.ActivityEvent{At: op.CreatedAt, Kind: domain.ActivityAction, Action: actionName(op)})
	}

	searches, err := s.store.SearchesSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	for _, q := range searches {
		events = append(events, domain.ActivityEvent{At: q.Timestamp, Kind: domain.ActivitySearch, Query: q.Query})
	}
	return events, nil
}

// actionName names an outbox row in the action histogram. Quick actions
// count under their own action name.
func actionName(op *domain.OutboxOperation) string {
	if op.Type == domain.OpQuickAction {
		if p, err := op.Decode(); err == nil {
			if qa, ok := p.(domain.QuickActionPayload); ok && qa.Action != "" {
				return qa.Action
			}
		}
	}
	return strings.ToLower(string(op.Type))
}
