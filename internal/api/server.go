// Package api provides the HTTP server for Glow: enrollment, sessions,
// glow-card reveals, the token ledger, achievements and notifications.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/glow-labs/glow/internal/app/engagement"
	"github.com/glow-labs/glow/internal/domain"
	"github.com/glow-labs/glow/internal/health"
)

// Server is the Glow HTTP API server.
type Server struct {
	svc            *engagement.Service
	version        string
	checker        *health.Checker
	metricsEnabled bool
	auth           *Authenticator
	limiter        *RateLimiter
	timeout        time.Duration
	log            *zap.Logger
}

// NewServer creates a new API server.
func NewServer(svc *engagement.Service, version string) *Server {
	return &Server{svc: svc, version: version, timeout: 30 * time.Second, log: zap.NewNop()}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthChecker makes /health report the checker's latest results.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// SetAuthenticator requires a bearer token on per-user routes.
func (s *Server) SetAuthenticator(a *Authenticator) { s.auth = a }

// SetRateLimiter throttles API requests per client.
func (s *Server) SetRateLimiter(l *RateLimiter) { s.limiter = l }

// SetLogger sets the request and error logger.
func (s *Server) SetLogger(l *zap.Logger) { s.log = l }

// SetTimeout bounds each request.
func (s *Server) SetTimeout(d time.Duration) { s.timeout = d }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Post("/rewards/preview", s.handlePreview)

		r.Route("/users/{userID}", func(r chi.Router) {
			if s.auth != nil {
				r.Use(s.auth.Middleware)
			}
			r.Put("/", s.handleEnroll)
			r.Get("/", s.handleProgression)
			r.Post("/sessions", s.handleRecordSession)
			r.Post("/cards/reveal", s.handleRevealCard)
			r.Get("/ledger", s.handleLedger)
			r.Get("/achievements", s.handleAchievements)
			r.Get("/notifications", s.handleNotifications)
			r.Post("/notifications/{id}/shown", s.handleNotificationShown)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.checker.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.checker.Statuses(),
	})
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnauthorized, http.StatusForbidden:
		return "unauthorized"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadGateway:
		return "upstream_failure"
	}
	return "error"
}

// writeServiceError maps domain errors onto HTTP statuses. Store failures
// get a generic retry message; the cause is only logged.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "something went wrong, please try again")
	}
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
