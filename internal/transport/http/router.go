// Package httptransport assembles the HTTP surface: middleware chain,
// module routes, health, and metrics. Handlers stay thin; domain logic
// lives in the services they delegate to.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatewarden/internal/platform/metrics"
	"gatewarden/internal/platform/middleware"
	"gatewarden/internal/transport/http/shared"
)

// Registrar is implemented by each module's HTTP handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports the readiness of one backing dependency.
type HealthChecker func() error

// RouterConfig carries everything the router needs to assemble the surface.
type RouterConfig struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator middleware.JWTValidator

	// Handlers are registered inside the authenticated API group.
	Handlers []Registrar

	// Health checks run on /healthz; any failure turns the response 503.
	Health map[string]HealthChecker

	RequestTimeout time.Duration
}

// NewRouter builds the full HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		if cfg.Metrics != nil {
			r.Use(middleware.Latency(cfg.Metrics))
		}
		r.Use(middleware.RequireAuth(cfg.JWTValidator, cfg.Logger))
		for _, handler := range cfg.Handlers {
			handler.Register(r)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(); err != nil {
					resp.Checks[name] = err.Error()
					resp.Status = "degraded"
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[name] = "ok"
			}
		}
		shared.WriteJSON(w, status, resp)
	}
}
