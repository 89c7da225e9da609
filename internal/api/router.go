package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecgard/pasteagent/internal/auth"
	"github.com/alecgard/pasteagent/internal/metering"
	"github.com/alecgard/pasteagent/internal/metrics"
	"github.com/alecgard/pasteagent/internal/pastebin"
	"github.com/alecgard/pasteagent/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionStore persists the Pastebin session key across restarts.
type SessionStore interface {
	Save(key string) error
	Clear() error
}

// CallStore serves the call log.
type CallStore interface {
	GetSummary(ctx context.Context, q metering.UsageQuery) (*metering.UsageSummary, error)
	ListCalls(ctx context.Context, q metering.UsageQuery) ([]*metering.Call, string, error)
}

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router. Only Agent is
// required.
type RouterDeps struct {
	Agent          *pastebin.Agent
	Sessions       SessionStore
	Calls          CallStore
	DB             Pinger
	Metrics        *metrics.Metrics
	Verifier       *auth.Verifier
	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(slogRequestLogger)
	r.Use(secureHeaders)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	pastes := newPastesHandler(deps.Agent, deps.Sessions)
	calls := newCallsHandler(deps.Calls)

	r.Get("/health", healthHandler(deps.DB))

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	var authMetrics auth.Metrics
	if deps.Metrics != nil {
		authMetrics = deps.Metrics
	}

	r.Route("/api/v1", func(ar chi.Router) {
		// Preflights carry no token, so CORS runs ahead of auth.
		if len(deps.AllowedOrigins) > 0 {
			ar.Use(corsMiddleware(deps.AllowedOrigins))
		}
		ar.Use(auth.TokenMiddleware(deps.Verifier, authMetrics))
		ar.Use(ratelimit.Middleware(deps.Agent.Limiter()))

		if deps.Metrics != nil {
			ar.Get("/metrics", deps.Metrics.Handler())
		}

		// Session.
		ar.Post("/login", pastes.Login)
		ar.Post("/logout", pastes.Logout)
		ar.Get("/user", pastes.GetUser)

		// Pastes.
		ar.Post("/pastes", pastes.CreatePaste)
		ar.Get("/pastes", pastes.ListPastes)
		ar.Delete("/pastes/{key}", pastes.DeletePaste)
		ar.Get("/pastes/{key}/raw", pastes.RawPaste)

		ar.Get("/limiter", pastes.GetLimiter)

		// Call log.
		ar.Get("/calls", calls.ListCalls)
		ar.Get("/calls/summary", calls.GetSummary)
	})

	return r
}

// healthHandler reports liveness and, when a database is configured, whether
// it answers a ping.
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok", "database": "disabled"}
		status := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["database"] = "unreachable"
				status = http.StatusServiceUnavailable
			} else {
				body["database"] = "connected"
			}
		}
		writeJSON(w, status, body)
	}
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
