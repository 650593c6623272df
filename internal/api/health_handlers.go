package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/moodtune/moodtune-sync/internal/remote"
)

// healthProbeCollection is read, never written, by the docstore check.
const healthProbeCollection = "_health"

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{tagHealth},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

// handleHealthCheck answers 503 when the docstore is unusable, so the
// connectivity probe sees the remote as down.
func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"docstore":  s.checkDocstore(ctx),
		"ratelimit": s.checkRateLimiter(),
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	if overall == "unhealthy" {
		return nil, huma.Error503ServiceUnavailable("docstore unavailable")
	}
	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkDocstore verifies badger answers a read.
func (s *Server) checkDocstore(ctx context.Context) ComponentHealth {
	if s.docs == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "docstore not configured",
		}
	}

	start := time.Now()
	_, err := s.docs.Get(ctx, healthProbeCollection, "probe")
	latency := time.Since(start)

	if err != nil && !remote.IsNotFound(err) {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "docstore read failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

func (s *Server) checkRateLimiter() ComponentHealth {
	if s.limiter == nil {
		return ComponentHealth{
			Status:  "healthy",
			Message: "rate limiting disabled",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: formatClientCount(s.limiter.Len()),
	}
}

func formatClientCount(count int) string {
	switch count {
	case 0:
		return "no tracked clients"
	case 1:
		return "1 tracked client"
	default:
		return strconv.Itoa(count) + " tracked clients"
	}
}
