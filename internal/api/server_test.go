package api

import (
	"log/slog"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/ratelimit"
	"github.com/moodtune/moodtune-sync/internal/remote/docstore"
)

const testKeyHex = "707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f"

type testServer struct {
	server *Server
	api    humatest.TestAPI
	docs   *docstore.Store
}

type testOption func(*testConfig)

type testConfig struct {
	tokens  *auth.TokenService
	limiter *ratelimit.KeyedRateLimiter
	origins []string
}

func withTokens(tokens *auth.TokenService) testOption {
	return func(c *testConfig) { c.tokens = tokens }
}

func withOrigins(origins ...string) testOption {
	return func(c *testConfig) { c.origins = origins }
}

func withLimiter(l *ratelimit.KeyedRateLimiter) testOption {
	return func(c *testConfig) { c.limiter = l }
}

// setupTestServer creates a server over an in-memory docstore.
func setupTestServer(t *testing.T, opts ...testOption) *testServer {
	t.Helper()

	var cfg testConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	docs, err := docstore.OpenInMemory(slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	if cfg.limiter != nil {
		t.Cleanup(cfg.limiter.Stop)
	}

	server := NewServer(docs, cfg.tokens, cfg.limiter, slog.New(slog.DiscardHandler), WithCORSOrigins(cfg.origins...))
	return &testServer{
		server: server,
		api:    humatest.Wrap(t, server.api),
		docs:   docs,
	}
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(testKeyHex, time.Hour)
	require.NoError(t, err)
	return tokens
}
