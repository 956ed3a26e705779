package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/bher20/utilityrates/internal/api/swagger"
	"github.com/bher20/utilityrates/internal/auth"
	"github.com/bher20/utilityrates/internal/metrics"
	"github.com/bher20/utilityrates/internal/rates"
	"github.com/bher20/utilityrates/internal/storage"
	"github.com/bher20/utilityrates/internal/ui"
)

// Deps are the collaborators the HTTP layer is wired with.
type Deps struct {
	Rates *rates.Service
	Store storage.Storage
	// Auth may be nil, in which case every endpoint is open.
	Auth        *auth.Service
	RequireAuth bool
	Log         logrus.FieldLogger
}

type server struct {
	Deps
}

// NewHandler constructs the HTTP handler: demo page, JSON API, metrics,
// health endpoints and docs, wrapped in request logging and metrics.
func NewHandler(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	s := &server{Deps: d}
	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("GET /metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /livez", s.handleLive)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Web UI
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleSubmit)
	mux.Handle("GET /static/", http.StripPrefix("/static/", ui.Handler()))

	mux.Handle("GET /docs/", http.StripPrefix("/docs", swagger.Handler("/docs/openapi.yaml")))

	// JSON API
	mux.Handle("GET /api/v1/utility-rates", s.guard("rates", "read", s.handleUtilityRates))
	mux.Handle("GET /api/v1/submissions", s.guard("submissions", "read", s.handleListSubmissions))
	mux.Handle("POST /api/v1/submissions", s.guard("submissions", "write", s.handleCreateSubmission))
	mux.Handle("POST /api/v1/submissions/{id}/refresh", s.guard("rates", "write", s.handleRefreshSubmission))
	mux.Handle("GET /api/v1/users", s.guard("users", "read", s.handleListUsers))
	mux.Handle("POST /api/v1/users", s.guard("users", "write", s.handleCreateUser))
	mux.Handle("GET /api/v1/jobs/{name}", s.guard("jobs", "read", s.handleGetJob))
	mux.Handle("PUT /api/v1/settings/refresh-interval", s.guard("settings", "write", s.handleSetRefreshInterval))

	return s.instrument(mux)
}

// guard applies bearer-token auth and a casbin permission check when auth is
// configured. Reads stay anonymous unless RequireAuth is set.
func (s *server) guard(obj, act string, h http.HandlerFunc) http.Handler {
	if s.Auth == nil {
		return h
	}
	return s.Auth.Middleware(s.Auth.RequirePermission(obj, act, !s.RequireAuth, h))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveRequest(path, rec.status, start)

		entry := s.Log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
		if rec.status >= 500 {
			entry.Warn("request failed")
		} else {
			entry.Debug("request handled")
		}
	})
}
