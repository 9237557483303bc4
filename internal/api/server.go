package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/config"
	"github.com/JakeFAU/my-github-review/internal/dispatcher"
	"github.com/JakeFAU/my-github-review/internal/metrics"
	"github.com/JakeFAU/my-github-review/internal/profile"
)

const requestTimeout = 60 * time.Second

// Service is the dispatcher surface the HTTP layer depends on.
type Service interface {
	Submit(ctx context.Context, req dispatcher.SubmitRequest) (profile.State, error)
	Status(ctx context.Context, username string, year int) (profile.State, error)
	GetCompleted(ctx context.Context, username string, year int) (profile.CompletedContext, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the dispatcher.
type Server struct {
	router   chi.Router
	service  Service
	pinger   Pinger
	validate *validator.Validate
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service Service, pinger Pinger, auth config.AuthConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service:  service,
		pinger:   pinger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/profiles", func(r chi.Router) {
		if auth.Enabled {
			r.Use(apiKeyMiddleware(auth.APIKey))
		}
		r.Post("/", s.submitProfile)
		r.Route("/{username}/{year}", func(r chi.Router) {
			r.Get("/", s.getProfile)
			r.Get("/status", s.getStatus)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitRequest struct {
	Username    string `json:"username" validate:"required,max=80"`
	Year        int    `json:"year" validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
	Timezone    string `json:"timezone" validate:"required,timezone"`
}

type stateResponse struct {
	State     profile.State `json:"state"`
	StatusURL string        `json:"status_url,omitempty"`
	ResultURL string        `json:"result_url,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type profileResponse struct {
	Username  string          `json:"username"`
	Year      int             `json:"year"`
	CreatedAt time.Time       `json:"created_at"`
	Profile   json.RawMessage `json:"profile"`
}

func (s *Server) submitProfile(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{State: profile.StateInvalid, Error: "invalid JSON"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{State: profile.StateInvalid, Error: err.Error()})
		return
	}

	state, err := s.service.Submit(r.Context(), dispatcher.SubmitRequest{
		Username: req.Username,
		Year:     req.Year,
		Token:    req.AccessToken,
		Timezone: req.Timezone,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := stateResponse{State: state}
	switch state {
	case profile.StateDone:
		resp.ResultURL = profilePath(req.Username, req.Year)
		writeJSON(w, http.StatusOK, resp)
	default:
		resp.StatusURL = profilePath(req.Username, req.Year) + "/status"
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	username, year, ok := keyFromPath(w, r)
	if !ok {
		return
	}
	state, err := s.service.Status(r.Context(), username, year)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: state})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	username, year, ok := keyFromPath(w, r)
	if !ok {
		return
	}
	completed, err := s.service.GetCompleted(r.Context(), username, year)
	if err == nil {
		writeJSON(w, http.StatusOK, profileResponse{
			Username:  completed.Key.Username,
			Year:      completed.Key.Year,
			CreatedAt: completed.CreatedAt,
			Profile:   rawPayload(completed.Payload),
		})
		return
	}
	if !errors.Is(err, profile.ErrNotFound) {
		s.writeServiceError(w, err)
		return
	}

	state, err := s.service.Status(r.Context(), username, year)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if state == profile.StateWait {
		writeJSON(w, http.StatusAccepted, stateResponse{State: state})
		return
	}
	writeJSON(w, http.StatusNotFound, stateResponse{State: state, Error: "profile not requested"})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalidKey), errors.Is(err, profile.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, stateResponse{State: profile.StateInvalid, Error: err.Error()})
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, profile.ErrStoreUnavailable), errors.Is(err, profile.ErrQueueUnavailable):
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "service unavailable, retry later")
	default:
		s.logger.Error("unexpected request failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func keyFromPath(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	username := chi.URLParam(r, "username")
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{State: profile.StateInvalid, Error: "year must be an integer"})
		return "", 0, false
	}
	return username, year, true
}

func profilePath(username string, year int) string {
	return fmt.Sprintf("/v1/profiles/%s/%d", url.PathEscape(username), year)
}

// rawPayload embeds JSON payloads directly and quotes anything else.
func rawPayload(payload string) json.RawMessage {
	if json.Valid([]byte(payload)) {
		return json.RawMessage(payload)
	}
	quoted, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return quoted
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request completed",
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
