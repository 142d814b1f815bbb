// Package api implements the chat backend HTTP API: the four chat method endpoints with their
// streaming marker protocol, model listing, health checking, transcript export, and saved panel
// sessions.
package api

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"golang.org/x/time/rate"
)

// LLM represents a language model provider. Chat accepts a conversation and returns an iterator
// that yields response chunks and potential errors; Models lists what the provider can serve.
type LLM interface {
	Chat(ctx context.Context, messages []models.ChatMessage, opts models.ChatOptions) iter.Seq2[string, error]
	Models(ctx context.Context) ([]models.ModelInfo, error)
}

// Store defines the persistence needed by the sessions endpoints. The boolean return of Session
// reports existence so callers can answer 404 without inspecting error values.
type Store interface {
	SaveSession(ctx context.Context, session models.Session) (string, error)
	Session(ctx context.Context, id string) (models.Session, bool, error)
}

// Handler carries the backend API endpoints and their shared dependencies.
type Handler struct {
	llm   LLM
	store Store

	limiters *ipLimiters

	logger *slog.Logger
}

// RateLimit bounds how fast a single client may hit the chat endpoints.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// New creates a Handler around the given provider and store. A zero RateLimit disables limiting,
// which keeps tests and single-user deployments friction free.
func New(llm LLM, store Store, limit RateLimit, logger *slog.Logger) Handler {
	h := Handler{
		llm:    llm,
		store:  store,
		logger: logger.With(slog.String("module", "api")),
	}
	if limit.PerSecond > 0 {
		h.limiters = &ipLimiters{
			limit:    rate.Limit(limit.PerSecond),
			burst:    max(limit.Burst, 1),
			limiters: make(map[string]*rate.Limiter),
		}
	}
	return h
}

// Register mounts every backend endpoint on mux.
func (h Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat/{method}", h.rateLimited(h.HandleChat))
	mux.HandleFunc("GET /api/models", h.HandleModels)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("POST /api/export/pdf", h.HandleExport)
	mux.HandleFunc("POST /api/sessions", h.HandleSaveSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSession)
}

// HandleModels lists the provider's models.
func (h Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	infos, err := h.llm.Models(r.Context())
	if err != nil {
		h.logger.Error("Failed to list models", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.ModelsResponse{
		Models: infos,
		Count:  len(infos),
	})
}

// HandleHealth reports whether the provider is reachable. An unreachable provider yields 503 with
// the failure detail so the UI can show a meaningful banner.
func (h Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	infos, err := h.llm.Models(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":             "unhealthy",
			"provider_connected": false,
			"error":              err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"provider_connected": true,
		"available_models":   len(infos),
	})
}

func (h Handler) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	if h.limiters == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !h.limiters.get(host).Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

// ipLimiters hands out one token bucket per client address.
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	limit rate.Limit
	burst int
}

func (l *ipLimiters) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = lim
	}
	return lim
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
