// Package api exposes the search engine over HTTP as JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deidaraiorek/lifeline/internal/search"
)

const maxBodyBytes = 32 * 1024

// Engine is the slice of *search.Engine the handlers need.
type Engine interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
	Predict(ctx context.Context, prefix string) search.Prediction
	RecordFeedback(ctx context.Context, req search.FeedbackRequest) (search.FeedbackResponse, error)
	RecordInteraction(ctx context.Context, req search.InteractionRequest) (search.Accepted, error)
	LogSearch(ctx context.Context, req search.SearchLog) (search.Accepted, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	engine Engine
	health Pinger
	logger *slog.Logger
	router chi.Router
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthCheck makes /healthz report the store's reachability.
func WithHealthCheck(p Pinger) Option {
	return func(s *Server) { s.health = p }
}

func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearchQuery)
		r.Post("/search", s.handleSearchBody)
		r.Post("/search/log", s.handleSearchLog)
		r.Get("/predict", s.handlePredict)
		r.Post("/feedback", s.handleFeedback)
		r.Post("/analytics/log", s.handleInteraction)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := search.Request{
		Query: q.Get("q"),
		Mode:  q.Get("mode"),
		Limit: queryInt(r, "limit", 0),
	}
	s.search(w, r, req)
}

func (s *Server) handleSearchBody(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if !decode(w, r, &req) {
		return
	}
	s.search(w, r, req)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, req search.Request) {
	req.ClientIP = clientIP(r)
	resp, err := s.engine.Search(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Predict(r.Context(), r.URL.Query().Get("q")))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req search.FeedbackRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.engine.RecordFeedback(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req search.InteractionRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.engine.RecordInteraction(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchLog(w http.ResponseWriter, r *http.Request) {
	var req search.SearchLog
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.engine.LogSearch(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

var badRequest = []error{
	search.ErrEmptyQuery,
	search.ErrInvalidMode,
	search.ErrInvalidFeedbackKind,
	search.ErrMissingTarget,
	search.ErrInvalidAction,
	search.ErrMissingSession,
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			jsonErr(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	jsonErr(w, "internal error", http.StatusInternalServerError)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
