package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/search"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// maxQueryLength truncates stored queries.
const maxQueryLength = 200

// recentScanLimit bounds the history scanned when no index is available.
const recentScanLimit = 200

// SearchHistoryService keeps the user's recent searches and suggests
// past queries. The store is the source of truth; the index only serves
// suggestions and may be nil.
type SearchHistoryService struct {
	store  store.Store
	index  *search.Index
	logger *slog.Logger
	clock  Clock
}

// NewSearchHistoryService creates a new search history service.
func NewSearchHistoryService(st store.Store, index *search.Index, logger *slog.Logger, clock Clock) *SearchHistoryService {
	return &SearchHistoryService{store: st, index: index, logger: logger, clock: clock}
}

// Record appends a search. Blank queries are ignored.
func (s *SearchHistoryService) Record(ctx context.Context, userID, query string) error {
	query = strings.TrimSpace(query)
	if query == "" || userID == "" {
		return nil
	}
	if len(query) > maxQueryLength {
		query = strings.ToValidUTF8(query[:maxQueryLength], "")
	}
	entry := &domain.SearchHistoryEntry{
		UserID:    userID,
		Query:     query,
		Timestamp: s.clock.now(),
	}
	if err := s.store.AddSearch(ctx, entry); err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.Add(search.Entry{UserID: userID, Query: query, Timestamp: entry.Timestamp}); err != nil {
			s.logger.Warn("failed to index search", "error", err)
		}
	}
	return nil
}

// Suggest returns past queries matching prefix, most recent first.
// Without an index it falls back to scanning recent history.
func (s *SearchHistoryService) Suggest(ctx context.Context, userID, prefix string, limit int) ([]search.Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}
	if s.index != nil {
		return s.index.Suggest(ctx, userID, prefix, limit)
	}

	recent, err := s.store.RecentSearches(ctx, userID, recentScanLimit)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(prefix))
	seen := make(map[string]bool)
	out := make([]search.Suggestion, 0, limit)
	for _, e := range recent {
		key := strings.ToLower(e.Query)
		if seen[key] || !strings.HasPrefix(key, want) {
			continue
		}
		seen[key] = true
		out = append(out, search.Suggestion{Query: e.Query, LastUsed: e.Timestamp})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Reindex rebuilds the suggestion index from the user's stored history.
// Run at startup, it also drops entries the cleanup job has since removed.
func (s *SearchHistoryService) Reindex(ctx context.Context, userID string) error {
	if s.index == nil {
		return nil
	}
	entries, err := s.store.SearchesSince(ctx, userID, time.Time{})
	if err != nil {
		return err
	}
	return s.index.Rebuild(search.FromHistory(entries))
}

// Recent returns the user's latest searches, newest first.
func (s *SearchHistoryService) Recent(ctx context.Context, userID string, limit int) ([]*domain.SearchHistoryEntry, error) {
	return s.store.RecentSearches(ctx, userID, limit)
}

// Clear removes the user's search history.
func (s *SearchHistoryService) Clear(ctx context.Context, userID string) error {
	if err := s.store.ClearSearchHistory(ctx, userID); err != nil {
		return err
	}
	if s.index != nil {
		if _, err := s.index.DeleteUser(ctx, userID); err != nil {
			s.logger.Warn("failed to clear search index", "error", err)
		}
	}
	return nil
}

// DeleteOlderThan removes every search before cutoff.
func (s *SearchHistoryService) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.DeleteSearchHistoryBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("old searches deleted", "count", n)
	}
	if s.index != nil {
		if _, err := s.index.DeleteBefore(ctx, cutoff); err != nil {
			s.logger.Warn("failed to prune search index", "error", err)
		}
	}
	return n, nil
}
