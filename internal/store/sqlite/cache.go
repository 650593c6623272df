package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// cacheTables carry an expires_at column in unix milliseconds.
var cacheTables = []string{
	store.TableWeather,
	store.TableLibrarySections,
	store.TableAIRecommendations,
	store.TableSessionActivity,
}

// SaveWeather replaces the user's weather snapshot.
func (s *Store) SaveWeather(ctx context.Context, w *domain.WeatherCache) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_cache (user_id, temperature, description, latitude, longitude, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			temperature = excluded.temperature,
			description = excluded.description,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		w.UserID, w.Temperature, w.Description, w.Latitude, w.Longitude, millis(w.CachedAt), millis(w.ExpiresAt))
	if err != nil {
		return store.LocalWrite(err, "save weather")
	}
	s.changed(store.TableWeather)
	return nil
}

// GetWeather returns the cached snapshot even when it has expired.
func (s *Store) GetWeather(ctx context.Context, userID string) (*domain.WeatherCache, error) {
	var (
		w                   domain.WeatherCache
		cachedAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, temperature, description, latitude, longitude, cached_at, expires_at
		FROM weather_cache WHERE user_id = ?`, userID).
		Scan(&w.UserID, &w.Temperature, &w.Description, &w.Latitude, &w.Longitude, &cachedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.CachedAt = fromMillis(cachedAt)
	w.ExpiresAt = fromMillis(expiresAt)
	return &w, nil
}

// SaveLibrarySections replaces every section of userID in one transaction.
func (s *Store) SaveLibrarySections(ctx context.Context, userID string, sections []*domain.LibrarySection) error {
	err := s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM library_sections WHERE user_id = ?`, userID); err != nil {
			return err
		}
		for _, sec := range sections {
			tracks, err := json.Marshal(nonNilTracks(sec.Tracks))
			if err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO library_sections (user_id, section_index, title, tracks, cached_at, expires_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				userID, sec.SectionIndex, sec.Title, string(tracks), millis(sec.CachedAt), millis(sec.ExpiresAt)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.LocalWrite(err, "save library sections")
	}
	s.changed(store.TableLibrarySections)
	return nil
}

// GetLibrarySections returns the user's sections ordered by index.
func (s *Store) GetLibrarySections(ctx context.Context, userID string) ([]*domain.LibrarySection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, section_index, title, tracks, cached_at, expires_at
		FROM library_sections WHERE user_id = ?
		ORDER BY section_index ASC`, userID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, func(scanner rowScanner) (*domain.LibrarySection, error) {
		var (
			sec                 domain.LibrarySection
			tracks              string
			cachedAt, expiresAt int64
		)
		if err := scanner.Scan(&sec.UserID, &sec.SectionIndex, &sec.Title, &tracks, &cachedAt, &expiresAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tracks), &sec.Tracks); err != nil {
			return nil, err
		}
		sec.CachedAt = fromMillis(cachedAt)
		sec.ExpiresAt = fromMillis(expiresAt)
		return &sec, nil
	})
}

// DeleteLibrarySections drops every section of userID.
func (s *Store) DeleteLibrarySections(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM library_sections WHERE user_id = ?`, userID); err != nil {
		return store.LocalWrite(err, "delete library sections")
	}
	s.changed(store.TableLibrarySections)
	return nil
}

// SaveAIRecommendation replaces the entry for rec.InputKey and marks it used.
func (s *Store) SaveAIRecommendation(ctx context.Context, rec *domain.AIRecommendation) error {
	queries, err := json.Marshal(nonNilStrings(rec.Queries))
	if err != nil {
		return store.LocalWrite(err, "save ai recommendation")
	}
	trackIDs, err := json.Marshal(nonNilStrings(rec.TrackIDs))
	if err != nil {
		return store.LocalWrite(err, "save ai recommendation")
	}
	tracks, err := json.Marshal(nonNilTracks(rec.Tracks))
	if err != nil {
		return store.LocalWrite(err, "save ai recommendation")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_recommendations (input_key, user_id, queries, track_ids, tracks, cached_at, expires_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(input_key) DO UPDATE SET
			user_id = excluded.user_id,
			queries = excluded.queries,
			track_ids = excluded.track_ids,
			tracks = excluded.tracks,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at,
			last_accessed_at = excluded.last_accessed_at`,
		rec.InputKey, rec.UserID, string(queries), string(trackIDs), string(tracks),
		millis(rec.CachedAt), millis(rec.ExpiresAt), s.accessStamp())
	if err != nil {
		return store.LocalWrite(err, "save ai recommendation")
	}
	s.changed(store.TableAIRecommendations)
	return nil
}

// GetAIRecommendation returns the entry for inputKey and bumps its LRU stamp.
// The bump is not published as a change.
func (s *Store) GetAIRecommendation(ctx context.Context, inputKey string) (*domain.AIRecommendation, error) {
	var (
		rec                       domain.AIRecommendation
		queries, trackIDs, tracks string
		cachedAt, expiresAt       int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT input_key, user_id, queries, track_ids, tracks, cached_at, expires_at
		FROM ai_recommendations WHERE input_key = ?`, inputKey).
		Scan(&rec.InputKey, &rec.UserID, &queries, &trackIDs, &tracks, &cachedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, field := range []struct {
		raw string
		dst any
	}{{queries, &rec.Queries}, {trackIDs, &rec.TrackIDs}, {tracks, &rec.Tracks}} {
		if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
			return nil, err
		}
	}
	rec.CachedAt = fromMillis(cachedAt)
	rec.ExpiresAt = fromMillis(expiresAt)

	if _, err := s.db.ExecContext(ctx,
		`UPDATE ai_recommendations SET last_accessed_at = ? WHERE input_key = ?`, s.accessStamp(), inputKey); err != nil {
		s.logger.Debug("lru touch failed", "input_key", inputKey, "error", err)
	}
	return &rec, nil
}

// accessStamp is a strictly increasing LRU stamp in nanoseconds.
func (s *Store) accessStamp() int64 {
	for {
		prev := s.lastAccess.Load()
		next := max(s.now().UnixNano(), prev+1)
		if s.lastAccess.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// DeleteAIRecommendations drops every entry of userID.
func (s *Store) DeleteAIRecommendations(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ai_recommendations WHERE user_id = ?`, userID); err != nil {
		return store.LocalWrite(err, "delete ai recommendations")
	}
	s.changed(store.TableAIRecommendations)
	return nil
}

// EvictAIRecommendations keeps the keep most recently used entries.
func (s *Store) EvictAIRecommendations(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM ai_recommendations WHERE input_key NOT IN (
			SELECT input_key FROM ai_recommendations
			ORDER BY last_accessed_at DESC, cached_at DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return 0, store.LocalWrite(err, "evict ai recommendations")
	}
	n := rowsAffected(res)
	if n > 0 {
		s.changed(store.TableAIRecommendations)
	}
	return n, nil
}

// PurgeExpiredCaches deletes rows of every cache table that expired before now.
func (s *Store) PurgeExpiredCaches(ctx context.Context, now time.Time) (int64, error) {
	var (
		total   int64
		touched []string
	)
	err := s.withTx(ctx, func(q querier) error {
		for _, table := range cacheTables {
			res, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at < ?`, millis(now))
			if err != nil {
				return err
			}
			if n := rowsAffected(res); n > 0 {
				total += n
				touched = append(touched, table)
			}
		}
		return nil
	})
	if err != nil {
		return 0, store.LocalWrite(err, "purge expired caches")
	}
	s.changed(touched...)
	return total, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilTracks(v []domain.TrackSnapshot) []domain.TrackSnapshot {
	if v == nil {
		return []domain.TrackSnapshot{}
	}
	return v
}
