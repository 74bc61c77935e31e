package httpadapter

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/supportchat/internal/adapters/wire"
	"github.com/PabloGalante/supportchat/internal/app/conversation"
	"github.com/PabloGalante/supportchat/internal/domain"
	"github.com/PabloGalante/supportchat/internal/observability"
)

// MaxBodyBytes bounds a request body. A message at the length cap is at most
// 40 KB of UTF-8, plus JSON escaping.
const MaxBodyBytes = 256 << 10

// ChatService is what the HTTP adapter needs from the orchestrator.
type ChatService interface {
	SendMessage(ctx context.Context, in conversation.SendMessageInput) (*conversation.SendMessageOutput, error)
	GetHistory(ctx context.Context, in conversation.GetHistoryInput) (*conversation.GetHistoryOutput, error)
}

type Server struct {
	svc    ChatService
	health domain.Pinger
}

// NewServer builds the router. health may be nil when the store has no
// connection to check.
func NewServer(svc ChatService, health domain.Pinger) http.Handler {
	s := &Server{svc: svc, health: health}
	r := chi.NewRouter()

	// Metrics first to capture all requests.
	r.Use(withMetrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(withLogging)
	r.Use(withRecovery)
	r.Use(withMaxBody(MaxBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, wire.NewRouteErrorEnvelope(http.StatusNotFound, "Not found."))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, wire.NewRouteErrorEnvelope(http.StatusMethodNotAllowed, "Method not allowed."))
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", s.handleSendMessage)
		r.Get("/history/{sessionId}", s.handleGetHistory)
	})

	return r
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := wire.DecodeSendRequest(r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.svc.SendMessage(r.Context(), req.Input())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.NewSendResponse(out))
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	req := wire.HistoryRequest{SessionID: chi.URLParam(r, "sessionId")}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, conversation.InvalidInput("The limit must be a whole number."))
			return
		}
		req.Limit = limit
	}

	out, err := s.svc.GetHistory(r.Context(), req.Input())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.NewHistoryResponse(out))
}

type healthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	Latency   string `json:"latency,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "healthy",
		Storage: "pass",
	}
	code := http.StatusOK

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		start := time.Now()
		if err := s.health.Ping(ctx); err != nil {
			observability.LoggerFromContext(r.Context()).Warn("storage health check failed", "error", err)
			resp.Status = "degraded"
			resp.Storage = "fail"
			code = http.StatusServiceUnavailable
		} else {
			resp.Latency = time.Since(start).String()
		}
	}

	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, code, resp)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(wire.Marshal(v))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, env := wire.NewErrorEnvelope(err)
	if env.Error.Retryable && status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, env)
}
