package domain

import (
	"slices"
	"time"
)

// SessionInactivityTimeout ends a session when no activity happened for this long.
const SessionInactivityTimeout = 30 * time.Minute

// SummaryDateLayout formats DailyActivitySummary.Date.
const SummaryDateLayout = "2006-01-02"

// ActivityKind is the source of a timeline event.
type ActivityKind string

const (
	// ActivityLogin comes from login telemetry.
	ActivityLogin ActivityKind = "login"
	// ActivityAction comes from the outbox (one per queued operation).
	ActivityAction ActivityKind = "action"
	// ActivitySearch comes from search history.
	ActivitySearch ActivityKind = "search"
)

// ActivityEvent is one point on the user's activity timeline.
type ActivityEvent struct {
	At        time.Time
	Kind      ActivityKind
	Action    string
	Query     string
	LoginType LoginType
}

// SessionActivityLog is a derived summary of one usage session.
type SessionActivityLog struct {
	ID              int64          `json:"id"`
	UserID          string         `json:"user_id"`
	SessionStart    time.Time      `json:"session_start"`
	SessionEnd      time.Time      `json:"session_end"`
	DurationMinutes int            `json:"duration_minutes"`
	LoginType       LoginType      `json:"login_type,omitempty"`
	ActionCounts    map[string]int `json:"action_counts"`
	SearchQueries   []string       `json:"search_queries"`
	CachedAt        time.Time      `json:"cached_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

// DailyActivitySummary rolls a day's sessions up for remote sync.
// (UserID, Date) is unique.
type DailyActivitySummary struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	Date             string    `json:"date"`
	SessionCount     int       `json:"session_count"`
	TotalMinutes     int       `json:"total_minutes"`
	MostCommonAction string    `json:"most_common_action,omitempty"`
	Synced           bool      `json:"synced"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BuildSessions splits a timeline into sessions separated by more than
// timeout of inactivity. Events need not be sorted.
func BuildSessions(userID string, events []ActivityEvent, timeout time.Duration) []SessionActivityLog {
	if len(events) == 0 {
		return nil
	}
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b ActivityEvent) int { return a.At.Compare(b.At) })

	var sessions []SessionActivityLog
	current := newSession(userID, sorted[0])
	for _, ev := range sorted[1:] {
		if ev.At.Sub(current.SessionEnd) > timeout {
			sessions = append(sessions, current.finish())
			current = newSession(userID, ev)
			continue
		}
		current.add(ev)
	}
	return append(sessions, current.finish())
}

func newSession(userID string, first ActivityEvent) SessionActivityLog {
	s := SessionActivityLog{
		UserID:       userID,
		SessionStart: first.At,
		SessionEnd:   first.At,
		ActionCounts: map[string]int{},
	}
	s.add(first)
	return s
}

func (s *SessionActivityLog) add(ev ActivityEvent) {
	if ev.At.After(s.SessionEnd) {
		s.SessionEnd = ev.At
	}
	switch ev.Kind {
	case ActivityLogin:
		if s.LoginType == "" {
			s.LoginType = ev.LoginType
		}
	case ActivityAction:
		s.ActionCounts[ev.Action]++
	case ActivitySearch:
		if ev.Query != "" {
			s.SearchQueries = append(s.SearchQueries, ev.Query)
		}
	}
}

func (s SessionActivityLog) finish() SessionActivityLog {
	s.DurationMinutes = int(s.SessionEnd.Sub(s.SessionStart).Minutes())
	return s
}

// MostCommonAction returns the most frequent action; ties go to the
// lexically smallest name so the result is stable.
func MostCommonAction(counts map[string]int) string {
	best, bestN := "", 0
	for action, n := range counts {
		if n > bestN || (n == bestN && action < best) {
			best, bestN = action, n
		}
	}
	return best
}

// SummarizeDay folds sessions into per-day summaries keyed by the session
// start date in loc.
func SummarizeDay(userID string, sessions []SessionActivityLog, loc *time.Location, now time.Time) []DailyActivitySummary {
	type acc struct {
		sessions int
		minutes  int
		actions  map[string]int
	}
	byDate := map[string]*acc{}
	var dates []string
	for _, s := range sessions {
		date := s.SessionStart.In(loc).Format(SummaryDateLayout)
		a, ok := byDate[date]
		if !ok {
			a = &acc{actions: map[string]int{}}
			byDate[date] = a
			dates = append(dates, date)
		}
		a.sessions++
		a.minutes += s.DurationMinutes
		for action, n := range s.ActionCounts {
			a.actions[action] += n
		}
	}
	slices.Sort(dates)

	out := make([]DailyActivitySummary, 0, len(dates))
	for _, date := range dates {
		a := byDate[date]
		out = append(out, DailyActivitySummary{
			UserID:           userID,
			Date:             date,
			SessionCount:     a.sessions,
			TotalMinutes:     a.minutes,
			MostCommonAction: MostCommonAction(a.actions),
			UpdatedAt:        now,
		})
	}
	return out
}
