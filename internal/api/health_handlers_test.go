package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/ratelimit"
)

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")

	assert.Equal(t, http.StatusOK, resp.Code)

	var healthResp HealthResponse
	err := json.Unmarshal(resp.Body.Bytes(), &healthResp)
	require.NoError(t, err)

	assert.Equal(t, "healthy", healthResp.Status)
	assert.Equal(t, "healthy", healthResp.Components["docstore"].Status)
	assert.Equal(t, "rate limiting disabled", healthResp.Components["ratelimit"].Message)
}

func TestHealthCheck_ReportsTrackedClients(t *testing.T) {
	ts := setupTestServer(t, withLimiter(ratelimit.New(100, 100)))

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var healthResp HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &healthResp))
	assert.Equal(t, "1 tracked client", healthResp.Components["ratelimit"].Message)
}

func TestHealthCheck_OpenWithoutToken(t *testing.T) {
	ts := setupTestServer(t, withTokens(newTestTokens(t)))

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestFormatClientCount(t *testing.T) {
	assert.Equal(t, "no tracked clients", formatClientCount(0))
	assert.Equal(t, "1 tracked client", formatClientCount(1))
	assert.Equal(t, "12 tracked clients", formatClientCount(12))
}
