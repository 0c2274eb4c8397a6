package httptransport

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verilink/internal/platform/metrics"
	"verilink/internal/platform/middleware"
	platformredis "verilink/internal/platform/redis"
	"verilink/internal/verification/handler"
	"verilink/pkg/platform/httputil"
)

const requestTimeout = 30 * time.Second

// Dependencies carries everything the router mounts. DB and Redis are
// optional; the health endpoint only probes what is wired.
type Dependencies struct {
	Verifications *handler.Handler
	Tokens        middleware.TokenValidator
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	DB            *sql.DB
	Redis         *platformredis.Client
}

// NewRouter assembles the full HTTP surface: customer link endpoints without
// auth, staff endpoints behind JWT auth, plus health and metrics.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", healthz(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Customer link flow: the token in the path is the only credential.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		deps.Verifications.RegisterPublic(r)
	})

	// Staff API.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireStaff(deps.Tokens, deps.Logger))
		deps.Verifications.Register(r)
	})

	return r
}

// healthz probes the wired backends with a short deadline. Memory-backed
// deployments report healthy with nothing to probe.
func healthz(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		healthy := true

		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				status["postgres"] = err.Error()
				healthy = false
			} else {
				status["postgres"] = "ok"
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Health(ctx); err != nil {
				status["redis"] = err.Error()
				healthy = false
			} else {
				status["redis"] = "ok"
			}
		}

		code := http.StatusOK
		if !healthy {
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, status)
	}
}
