package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
)

// Entry is one indexed query. Repeating a query replaces the older entry.
type Entry struct {
	UserID    string
	Query     string
	Timestamp time.Time
}

// FromHistory converts stored search history entries.
func FromHistory(entries []*domain.SearchHistoryEntry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{UserID: e.UserID, Query: e.Query, Timestamp: e.Timestamp})
	}
	return out
}

// normalizeKey lowercases and collapses whitespace.
func normalizeKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// docID keys a query per user, so repeats collapse into one document.
func docID(userID, query string) string {
	return fmt.Sprintf("%s\x00%s", userID, normalizeKey(query))
}

func (e Entry) toMap() map[string]interface{} {
	return map[string]interface{}{
		fieldUserID:    e.UserID,
		fieldQuery:     e.Query,
		fieldKey:       normalizeKey(e.Query),
		fieldTimestamp: float64(e.Timestamp.UnixMilli()),
	}
}
