package sqlite

import (
	"context"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

func scanSearch(scanner rowScanner) (*domain.SearchHistoryEntry, error) {
	var (
		e  domain.SearchHistoryEntry
		ts string
	)
	if err := scanner.Scan(&e.ID, &e.UserID, &e.Query, &ts); err != nil {
		return nil, err
	}
	var err error
	if e.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	return &e, nil
}

// AddSearch appends a query and sets e.ID.
func (s *Store) AddSearch(ctx context.Context, e *domain.SearchHistoryEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (user_id, query, timestamp) VALUES (?, ?, ?)`,
		e.UserID, e.Query, formatTime(e.Timestamp))
	if err != nil {
		return store.LocalWrite(err, "add search")
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return store.LocalWrite(err, "add search")
	}
	s.changed(store.TableSearchHistory)
	return nil
}

// RecentSearches returns the newest searches of userID first.
func (s *Store) RecentSearches(ctx context.Context, userID string, limit int) ([]*domain.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, query, timestamp FROM search_history
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanSearch)
}

// SearchesSince returns searches of userID at or after since, oldest first.
func (s *Store) SearchesSince(ctx context.Context, userID string, since time.Time) ([]*domain.SearchHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, query, timestamp FROM search_history
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC, id ASC`, userID, formatTime(since))
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanSearch)
}

// ClearSearchHistory deletes every search of userID.
func (s *Store) ClearSearchHistory(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM search_history WHERE user_id = ?`, userID); err != nil {
		return store.LocalWrite(err, "clear search history")
	}
	s.changed(store.TableSearchHistory)
	return nil
}

// DeleteSearchHistoryBefore removes searches older than cutoff.
func (s *Store) DeleteSearchHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_history WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, store.LocalWrite(err, "delete old searches")
	}
	n := rowsAffected(res)
	if n > 0 {
		s.changed(store.TableSearchHistory)
	}
	return n, nil
}
