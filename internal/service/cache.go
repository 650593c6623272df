package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/errors"
	"github.com/moodtune/moodtune-sync/internal/normalize"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// DefaultRefreshTimeout bounds one background cache refresh.
const DefaultRefreshTimeout = 30 * time.Second

// Loader produces a fresh value for a cache miss or refresh.
type Loader[T any] func(ctx context.Context) (T, error)

// CacheService serves the cache tables with stale-while-revalidate reads:
// fresh entries are returned as-is, stale ones are returned while a
// background refresh runs, expired or missing ones are loaded inline.
type CacheService struct {
	store          store.Store
	logger         *slog.Logger
	clock          Clock
	refreshTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewCacheService creates a new cache service.
func NewCacheService(st store.Store, logger *slog.Logger, clock Clock, refreshTimeout time.Duration) *CacheService {
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}
	return &CacheService{
		store:          st,
		logger:         logger,
		clock:          clock,
		refreshTimeout: refreshTimeout,
		inflight:       make(map[string]struct{}),
	}
}

// swr implements the read policy. lookup reports found=false for a miss;
// fill loads, stamps and persists a new value.
func swr[T any](ctx context.Context, s *CacheService, key string,
	lookup func(context.Context) (T, bool, error),
	classify func(T) domain.Freshness,
	fill func(context.Context) (T, error),
) (T, error) {
	cached, found, err := lookup(ctx)
	if err != nil {
		s.logger.Warn("cache read failed, loading", "key", key, "error", err)
		found = false
	}
	if found {
		switch classify(cached) {
		case domain.Fresh:
			return cached, nil
		case domain.Stale:
			s.refresh(key, func(ctx context.Context) error {
				_, err := fill(ctx)
				return err
			})
			return cached, nil
		}
	}
	return fill(ctx)
}

// refresh runs fn in the background unless a refresh of key is already running.
func (s *CacheService) refresh(key string, fn func(context.Context) error) {
	s.mu.Lock()
	if _, busy := s.inflight[key]; busy {
		s.mu.Unlock()
		return
	}
	s.inflight[key] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("background cache refresh failed", "key", key, "error", err)
		}
	}()
}

// Wait blocks until every background refresh has finished.
func (s *CacheService) Wait() {
	s.wg.Wait()
}

func notFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// GetWeather returns the user's weather reading.
func (s *CacheService) GetWeather(ctx context.Context, userID string, load Loader[*domain.WeatherCache]) (*domain.WeatherCache, error) {
	return swr(ctx, s, "weather:"+userID,
		func(ctx context.Context) (*domain.WeatherCache, bool, error) {
			w, err := s.store.GetWeather(ctx, userID)
			if notFound(err) {
				return nil, false, nil
			}
			return w, err == nil, err
		},
		func(w *domain.WeatherCache) domain.Freshness { return w.Classify(s.clock.now()) },
		func(ctx context.Context) (*domain.WeatherCache, error) {
			w, err := load(ctx)
			if err != nil {
				return nil, fmt.Errorf("load weather: %w", err)
			}
			w.UserID = userID
			w.Stamp(s.clock.now())
			if err := s.store.SaveWeather(ctx, w); err != nil {
				return nil, err
			}
			return w, nil
		})
}

// GetLibrarySections returns the user's library rows. The set is
// classified by its least fresh section.
func (s *CacheService) GetLibrarySections(ctx context.Context, userID string, load Loader[[]*domain.LibrarySection]) ([]*domain.LibrarySection, error) {
	return swr(ctx, s, "library:"+userID,
		func(ctx context.Context) ([]*domain.LibrarySection, bool, error) {
			secs, err := s.store.GetLibrarySections(ctx, userID)
			return secs, err == nil && len(secs) > 0, err
		},
		func(secs []*domain.LibrarySection) domain.Freshness {
			now := s.clock.now()
			worst := domain.Fresh
			for _, sec := range secs {
				worst = max(worst, sec.Classify(now))
			}
			return worst
		},
		func(ctx context.Context) ([]*domain.LibrarySection, error) {
			secs, err := load(ctx)
			if err != nil {
				return nil, fmt.Errorf("load library sections: %w", err)
			}
			now := s.clock.now()
			for i, sec := range secs {
				sec.UserID = userID
				sec.SectionIndex = i
				sec.Stamp(now)
			}
			if err := s.store.SaveLibrarySections(ctx, userID, secs); err != nil {
				return nil, err
			}
			return secs, nil
		})
}

// GetAIRecommendation returns the recommendation for input. Inputs that
// normalize to the same prompt key share one entry.
func (s *CacheService) GetAIRecommendation(ctx context.Context, userID, input string, load Loader[*domain.AIRecommendation]) (*domain.AIRecommendation, error) {
	key := normalize.PromptKey(input)
	if key == "" {
		return nil, errors.Validation("recommendation input is empty")
	}
	return swr(ctx, s, "ai:"+key,
		func(ctx context.Context) (*domain.AIRecommendation, bool, error) {
			rec, err := s.store.GetAIRecommendation(ctx, key)
			if notFound(err) {
				return nil, false, nil
			}
			return rec, err == nil, err
		},
		func(rec *domain.AIRecommendation) domain.Freshness { return rec.Classify(s.clock.now()) },
		func(ctx context.Context) (*domain.AIRecommendation, error) {
			rec, err := load(ctx)
			if err != nil {
				return nil, fmt.Errorf("load recommendation: %w", err)
			}
			rec.InputKey = key
			rec.UserID = userID
			rec.Stamp(s.clock.now())
			if err := s.store.SaveAIRecommendation(ctx, rec); err != nil {
				return nil, err
			}
			return rec, nil
		})
}

// GetSessionActivity returns the user's latest session summary.
func (s *CacheService) GetSessionActivity(ctx context.Context, userID string, load Loader[*domain.SessionActivityLog]) (*domain.SessionActivityLog, error) {
	return swr(ctx, s, "session:"+userID,
		func(ctx context.Context) (*domain.SessionActivityLog, bool, error) {
			sa, err := s.store.LatestSessionActivity(ctx, userID)
			if notFound(err) {
				return nil, false, nil
			}
			return sa, err == nil, err
		},
		func(sa *domain.SessionActivityLog) domain.Freshness { return sa.Classify(s.clock.now()) },
		func(ctx context.Context) (*domain.SessionActivityLog, error) {
			sa, err := load(ctx)
			if err != nil {
				return nil, fmt.Errorf("load session activity: %w", err)
			}
			sa.UserID = userID
			sa.Stamp(s.clock.now())
			if err := s.store.UpsertSessionActivity(ctx, sa); err != nil {
				return nil, err
			}
			return sa, nil
		})
}

// InvalidateUser drops the user's library sections and AI recommendations.
func (s *CacheService) InvalidateUser(ctx context.Context, userID string) error {
	if err := s.store.DeleteLibrarySections(ctx, userID); err != nil {
		return fmt.Errorf("delete library sections: %w", err)
	}
	if err := s.store.DeleteAIRecommendations(ctx, userID); err != nil {
		return fmt.Errorf("delete recommendations: %w", err)
	}
	return nil
}

// PurgeExpired deletes every expired cache row.
func (s *CacheService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredCaches(ctx, s.clock.now())
}
