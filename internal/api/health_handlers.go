package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
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

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"store":  s.checkStore(ctx),
		"model":  s.checkModel(),
		"search": s.checkSearchIndex(),
	}

	// The store is the only hard dependency; the model and search index
	// degrade single features.
	overall := statusHealthy
	for name, c := range components {
		switch {
		case c.Status == statusUnhealthy && name == "store":
			overall = statusUnhealthy
		case c.Status != statusHealthy && overall == statusHealthy:
			overall = statusDegraded
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkStore pings the record store.
func (s *Server) checkStore(ctx context.Context) ComponentHealth {
	if s.store == nil {
		return ComponentHealth{Status: statusUnhealthy, Message: "store not configured"}
	}

	start := time.Now()
	err := s.store.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: err.Error(),
		}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency.String()}
}

// checkModel reports whether genre classification is available.
func (s *Server) checkModel() ComponentHealth {
	info, ok := s.services.Patients.ModelInfo()
	if !ok {
		return ComponentHealth{Status: statusDegraded, Message: "classification model not loaded"}
	}
	return ComponentHealth{Status: statusHealthy, Message: info.Kind}
}

// checkSearchIndex verifies the catalog index answers.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.index == nil {
		return ComponentHealth{Status: statusDegraded, Message: "search index not configured"}
	}

	start := time.Now()
	count, err := s.index.DocumentCount()
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{Status: statusDegraded, Latency: latency.String(), Message: err.Error()}
	}
	if count == 0 {
		return ComponentHealth{Status: statusDegraded, Latency: latency.String(), Message: "index is empty"}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency.String()}
}
