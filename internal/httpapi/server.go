package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/sahaleey/abhachat/internal/chat"
	"github.com/sahaleey/abhachat/internal/config"
	"github.com/sahaleey/abhachat/internal/observability"
)

// Fixed client-facing messages; internal detail is logged, never returned.
const (
	msgUpstreamRateLimited = "Rate limit exceeded: You have reached the free model request limit for today. Please try again later or consider adding credits."
	msgInternalError       = "An error occurred while processing your request."
)

type Server struct {
	cfg      config.Config
	chat     *chat.Service
	metrics  *observability.Metrics
	limiter  *ipRateLimiter
	upgrader websocket.Upgrader
	static   http.Handler
	logger   *slog.Logger
}

func New(cfg config.Config, svc *chat.Service, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		chat:    svc,
		metrics: metrics,
		limiter: newIPRateLimiter(cfg.RateLimitPerMinute),
		static:  newStaticHandler(),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				for _, allowed := range cfg.CORSOrigins {
					if strings.EqualFold(origin, allowed) {
						return true
					}
				}
				u, err := url.Parse(origin)
				if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(processTime)
	r.Use(middleware.Recoverer)
	r.Use(s.corsHandler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.With(s.rateLimit).Post("/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/sessions/{id}/history", s.handleSessionHistory)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	origins := s.cfg.CORSOrigins
	if s.cfg.AllowAnyOrigin {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": timestamp(time.Now()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.chat == nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "chat service not configured")
		return
	}
	completion := "openai"
	if s.cfg.UseMockCompleter() {
		completion = "mock"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"completion_mode":    completion,
		"serialize_sessions": s.cfg.SerializeSessions,
		"history_pairs":      s.cfg.HistoryPairs,
	})
}

type errorResponse struct {
	Detail    string `json:"detail"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, errorResponse{Detail: detail, Code: code, Timestamp: timestamp(time.Now())})
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// handlePerfLatency reports the rolling per-stage latency window.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	snap := observability.StageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []observability.StageStats{}}
	if s.metrics != nil {
		snap = s.metrics.SnapshotStages()
	}
	respondJSON(w, http.StatusOK, snap)
}
