package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// batchSize bounds each index or delete batch.
const batchSize = 500

// Suggestion is a past query matching what the user is typing.
type Suggestion struct {
	Query    string    `json:"query"`
	LastUsed time.Time `json:"last_used"`
}

// Add indexes one search, replacing an earlier identical query.
func (s *Index) Add(e Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(docID(e.UserID, e.Query), e.toMap())
}

// AddAll indexes searches in a batch. Later entries win over earlier
// identical queries, so pass them oldest first.
func (s *Index) AddAll(entries []Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(entries)
}

func (s *Index) indexLocked(entries []Entry) error {
	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))

		batch := s.index.NewBatch()
		for _, e := range entries[i:end] {
			if err := batch.Index(docID(e.UserID, e.Query), e.toMap()); err != nil {
				return fmt.Errorf("batch index: %w", err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Suggest returns the user's past queries that start with prefix, or have
// a word that does, most recent first. An empty prefix returns the most
// recent queries.
func (s *Index) Suggest(ctx context.Context, userID, prefix string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(suggestQuery(userID, prefix), limit, 0, false)
	req.SortBy([]string{"-" + fieldTimestamp})
	req.Fields = []string{fieldQuery, fieldTimestamp}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := make([]Suggestion, 0, len(res.Hits))
	for _, hit := range res.Hits {
		sg := Suggestion{}
		if q, ok := hit.Fields[fieldQuery].(string); ok {
			sg.Query = q
		}
		if ms, ok := hit.Fields[fieldTimestamp].(float64); ok {
			sg.LastUsed = time.UnixMilli(int64(ms)).UTC()
		}
		out = append(out, sg)
	}
	return out, nil
}

func suggestQuery(userID, prefix string) query.Query {
	user := bleve.NewTermQuery(userID)
	user.SetField(fieldUserID)

	key := normalizeKey(prefix)
	if key == "" {
		return user
	}

	whole := bleve.NewPrefixQuery(key)
	whole.SetField(fieldKey)

	var word query.Query = whole
	// The simple analyzer splits on non-letters, so only a single-word
	// prefix can match a word term.
	if !strings.Contains(key, " ") {
		w := bleve.NewPrefixQuery(key)
		w.SetField(fieldQuery)
		word = bleve.NewDisjunctionQuery(whole, w)
	}

	return bleve.NewConjunctionQuery(user, word)
}

// DeleteUser removes every indexed query of a user.
func (s *Index) DeleteUser(ctx context.Context, userID string) (int, error) {
	q := bleve.NewTermQuery(userID)
	q.SetField(fieldUserID)
	return s.deleteMatching(ctx, q)
}

// DeleteBefore removes queries last used before cutoff.
func (s *Index) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	upper := float64(cutoff.UnixMilli())
	q := bleve.NewNumericRangeQuery(nil, &upper)
	q.SetField(fieldTimestamp)
	return s.deleteMatching(ctx, q)
}

func (s *Index) deleteMatching(ctx context.Context, q query.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deleted := 0
	for {
		res, err := s.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, batchSize, 0, false))
		if err != nil {
			return deleted, fmt.Errorf("find documents: %w", err)
		}
		if len(res.Hits) == 0 {
			return deleted, nil
		}

		batch := s.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := s.index.Batch(batch); err != nil {
			return deleted, fmt.Errorf("delete batch: %w", err)
		}
		deleted += len(res.Hits)
	}
}
