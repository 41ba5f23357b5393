// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idvgate/internal/transport/http/shared"
)

// HealthChecker reports the health of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Registrar registers feature routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the public endpoints: feature routes, health and metrics.
func NewRouter(registry *prometheus.Registry, features []Registrar, checks map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth(checks))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	for _, f := range features {
		f.Register(r)
	}
	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
			} else {
				result[name] = "ok"
			}
		}
		shared.WriteJSON(w, status, result)
	}
}
