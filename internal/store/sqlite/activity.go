package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

const sessionColumns = `id, user_id, session_start, session_end, duration_minutes, login_type,
	action_counts, search_queries, cached_at, expires_at`

func scanSession(scanner rowScanner) (*domain.SessionActivityLog, error) {
	var (
		s         domain.SessionActivityLog
		start     string
		end       string
		loginType sql.NullString
		actions   string
		queries   string
		cachedAt  int64
		expiresAt int64
	)
	err := scanner.Scan(&s.ID, &s.UserID, &start, &end, &s.DurationMinutes, &loginType,
		&actions, &queries, &cachedAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	if s.SessionStart, err = parseTime(start); err != nil {
		return nil, err
	}
	if s.SessionEnd, err = parseTime(end); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(actions), &s.ActionCounts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(queries), &s.SearchQueries); err != nil {
		return nil, err
	}
	s.LoginType = domain.LoginType(loginType.String)
	s.CachedAt = fromMillis(cachedAt)
	s.ExpiresAt = fromMillis(expiresAt)
	return &s, nil
}

// UpsertSessionActivity stores a session keyed by (user, start) and sets s.ID.
func (s *Store) UpsertSessionActivity(ctx context.Context, sa *domain.SessionActivityLog) error {
	actions := sa.ActionCounts
	if actions == nil {
		actions = map[string]int{}
	}
	queries := sa.SearchQueries
	if queries == nil {
		queries = []string{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return store.LocalWrite(err, "upsert session activity")
	}
	queriesJSON, err := json.Marshal(queries)
	if err != nil {
		return store.LocalWrite(err, "upsert session activity")
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO session_activity_logs (user_id, session_start, session_end, duration_minutes,
			login_type, action_counts, search_queries, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_start) DO UPDATE SET
			session_end = excluded.session_end,
			duration_minutes = excluded.duration_minutes,
			login_type = excluded.login_type,
			action_counts = excluded.action_counts,
			search_queries = excluded.search_queries,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
		RETURNING id`,
		sa.UserID, formatTime(sa.SessionStart), formatTime(sa.SessionEnd), sa.DurationMinutes,
		nullString(string(sa.LoginType)), string(actionsJSON), string(queriesJSON),
		millis(sa.CachedAt), millis(sa.ExpiresAt)).Scan(&sa.ID)
	if err != nil {
		return store.LocalWrite(err, "upsert session activity")
	}
	s.changed(store.TableSessionActivity)
	return nil
}

// LatestSessionActivity returns the most recently started session of userID.
func (s *Store) LatestSessionActivity(ctx context.Context, userID string) (*domain.SessionActivityLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM session_activity_logs
		WHERE user_id = ?
		ORDER BY session_start DESC
		LIMIT 1`, userID)
	sa, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return sa, err
}

// ListSessionActivity returns sessions of userID started at or after since.
func (s *Store) ListSessionActivity(ctx context.Context, userID string, since time.Time) ([]*domain.SessionActivityLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM session_activity_logs
		WHERE user_id = ? AND session_start >= ?
		ORDER BY session_start ASC`, userID, formatTime(since))
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanSession)
}

const summaryColumns = `id, user_id, date, session_count, total_minutes, most_common_action, synced, updated_at`

func scanSummary(scanner rowScanner) (*domain.DailyActivitySummary, error) {
	var (
		d         domain.DailyActivitySummary
		action    sql.NullString
		synced    int
		updatedAt string
	)
	err := scanner.Scan(&d.ID, &d.UserID, &d.Date, &d.SessionCount, &d.TotalMinutes, &action, &synced, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.MostCommonAction = action.String
	d.Synced = synced != 0
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpsertDailySummary stores the summary for (user, date). A changed summary
// becomes unsynced again.
func (s *Store) UpsertDailySummary(ctx context.Context, d *domain.DailyActivitySummary) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_activity_summaries (user_id, date, session_count, total_minutes,
			most_common_action, synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			session_count = excluded.session_count,
			total_minutes = excluded.total_minutes,
			most_common_action = excluded.most_common_action,
			synced = excluded.synced,
			updated_at = excluded.updated_at
		RETURNING id`,
		d.UserID, d.Date, d.SessionCount, d.TotalMinutes, nullString(d.MostCommonAction),
		boolToInt(d.Synced), formatTime(d.UpdatedAt)).Scan(&d.ID)
	if err != nil {
		return store.LocalWrite(err, "upsert daily summary")
	}
	s.changed(store.TableDailySummaries)
	return nil
}

// UnsyncedDailySummaries returns unsynced summaries of userID by date.
func (s *Store) UnsyncedDailySummaries(ctx context.Context, userID string, limit int) ([]*domain.DailyActivitySummary, error) {
	if limit <= 0 {
		limit = domain.DefaultBatchSize
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+` FROM daily_activity_summaries
		WHERE user_id = ? AND synced = 0
		ORDER BY date ASC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanSummary)
}

// MarkSummariesSynced flips every id in one transaction.
func (s *Store) MarkSummariesSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(q querier) error {
		_, err := updateByIDs(ctx, q, store.TableDailySummaries, map[string]any{"synced": 1}, ids)
		return err
	})
	if err != nil {
		return store.LocalWrite(err, "mark summaries synced")
	}
	s.changed(store.TableDailySummaries)
	return nil
}

// DeleteSyncedSummariesBefore removes synced summaries dated before date.
func (s *Store) DeleteSyncedSummariesBefore(ctx context.Context, date string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM daily_activity_summaries WHERE synced = 1 AND date < ?`, date)
	if err != nil {
		return 0, store.LocalWrite(err, "delete synced summaries")
	}
	n := rowsAffected(res)
	if n > 0 {
		s.changed(store.TableDailySummaries)
	}
	return n, nil
}
