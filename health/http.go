package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the process is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes.
// This runs all checks in the registry and reports the rolled-up status.
func ReadinessHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		agg := reg.CheckAll(ctx)

		w.Header().Set("Content-Type", "text/plain")

		switch agg.Status {
		case StatusHealthy:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		case StatusDegraded:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("DEGRADED"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNHEALTHY"))
		}
	}
}

// HealthResponse is the JSON response for the detailed health endpoint.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Summary   Summary                  `json:"summary"`
	Services  map[string]CheckResponse `json:"services,omitempty"`
}

// CheckResponse is the JSON response for a single service check.
type CheckResponse struct {
	Status       string                   `json:"status"`
	Message      string                   `json:"message,omitempty"`
	ResponseTime string                   `json:"response_time,omitempty"`
	Details      map[string]any           `json:"details,omitempty"`
	Dependencies map[string]CheckResponse `json:"dependencies,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

func toCheckResponse(result Result) CheckResponse {
	resp := CheckResponse{
		Status:       result.Status.String(),
		Message:      result.Message,
		ResponseTime: result.ResponseTime.String(),
		Details:      result.Details,
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	if len(result.Dependencies) > 0 {
		resp.Dependencies = make(map[string]CheckResponse, len(result.Dependencies))
		for name, dep := range result.Dependencies {
			resp.Dependencies[name] = toCheckResponse(dep)
		}
	}
	return resp
}

// DetailedHandler returns an HTTP handler that provides detailed health
// information for every registered service, dependencies included.
func DetailedHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		agg := reg.CheckAll(ctx)

		response := HealthResponse{
			Status:    agg.Status.String(),
			Timestamp: agg.Timestamp.UTC().Format(time.RFC3339),
			Summary:   agg.Summary,
			Services:  make(map[string]CheckResponse, len(agg.Services)),
		}
		for name, result := range agg.Services {
			response.Services[name] = toCheckResponse(result)
		}

		w.Header().Set("Content-Type", "application/json")

		switch agg.Status {
		case StatusHealthy:
			w.WriteHeader(http.StatusOK)
		case StatusDegraded:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// ServiceHandler returns an HTTP handler for checking a single service.
func ServiceHandler(reg *Registry, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := reg.Check(ctx, name)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": err.Error(),
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")

		switch result.Status {
		case StatusHealthy:
			w.WriteHeader(http.StatusOK)
		case StatusDegraded:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(toCheckResponse(result))
	}
}

// RegisterHandlers registers all health check handlers on the given mux.
func RegisterHandlers(mux *http.ServeMux, reg *Registry) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(reg))
	mux.HandleFunc("/health", DetailedHandler(reg))
}
