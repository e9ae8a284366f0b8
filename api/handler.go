package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"tesouro-scraper/models"
	"tesouro-scraper/utils"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (*models.RunResult, *models.ReconciliationReport, error)
}

// Server exposes the pipeline trigger over HTTP.
type Server struct {
	runner  Runner
	guard   *utils.RunGuard
	limiter *rate.Limiter
	logger  *utils.Logger
}

// NewServer creates a Server allowing perMinute triggers per minute, with
// a burst of one. perMinute <= 0 disables the limit.
func NewServer(runner Runner, guard *utils.RunGuard, perMinute int, logger *utils.Logger) *Server {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Server{
		runner:  runner,
		guard:   guard,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Handler returns the routes of the trigger API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/runs", s.rateLimit(http.HandlerFunc(s.handleRuns)))
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !s.limiter.Allow() {
			s.logger.Warn("[api] Rate limit exceeded: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			s.logEncode(WriteTooManyRequests(w, r.URL.Path))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logEncode(WriteMethodNotAllowed(w, http.MethodPost, r.URL.Path))
		return
	}

	release, err := s.guard.TryAcquire()
	if err != nil {
		_, since := s.guard.Running()
		s.logger.Warn("[api] Run refused, another run started at %s", since.Format(time.RFC3339))
		s.logEncode(WriteConflict(w, err.Error(), r.URL.Path))
		return
	}
	defer release()

	s.logger.Info("[api] Run triggered from %s", r.RemoteAddr)
	result, _, err := s.runner.Run(r.Context())
	if err != nil {
		s.logger.Error("[api] Run failed: %v", err)
		found := 0
		if result != nil {
			found = result.RecordsFound
		}
		// A failed run persisted nothing.
		status, title, detail := http.StatusInternalServerError, "Internal Server Error", err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			status, title, detail = http.StatusGatewayTimeout, "Gateway Timeout", "Upstream page timed out: "+err.Error()
		}
		s.logEncode(WriteRunError(w, status, title, detail, r.URL.Path, found, 0))
		return
	}

	writeJSON(w, http.StatusOK, result, s.logger)
}

type health struct {
	Status       string     `json:"status"`
	Running      bool       `json:"running"`
	RunStartedAt *time.Time `json:"run_started_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.logEncode(WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path))
		return
	}

	h := health{Status: "ok"}
	if running, since := s.guard.Running(); running {
		h.Running = true
		h.RunStartedAt = &since
	}
	writeJSON(w, http.StatusOK, h, s.logger)
}

func (s *Server) logEncode(err error) {
	if err != nil {
		s.logger.Error("[api] Error encoding problem response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *utils.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("[api] Error encoding response: %v", err)
	}
}
