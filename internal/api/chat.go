package api

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/MegaGrindStone/duo-chat-ui/internal/stream"
	"github.com/google/uuid"
)

// Per-method system prompts. The basic method sends the conversation bare.
var methodPrompts = map[models.Method]string{
	models.MethodTuning:    "You are a fine-tuned model optimized for specific tasks.",
	models.MethodRAG:       "You are a RAG-enabled assistant with access to additional context.",
	models.MethodWebSearch: "You are an assistant with web search capabilities.",
}

// HandleChat serves POST /api/chat/{method} for both exchange styles. A plain request produces a
// single ChatResponse JSON body; a request with stream set produces a raw text stream that the
// marker protocol terminates with either a metadata or an error marker.
func (h Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	method := models.Method(r.PathValue("method"))
	if !method.Valid() {
		writeJSONError(w, http.StatusNotFound, "unknown chat method")
		return
	}

	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	if req.Stream {
		h.streamChat(w, r, method, req)
		return
	}
	h.exchangeChat(w, r, method, req)
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (models.ChatRequest, bool) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return models.ChatRequest{}, false
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return models.ChatRequest{}, false
	}
	return req, true
}

// methodMessages builds the provider conversation, prepending the method's system prompt when the
// method has one.
func methodMessages(method models.Method, message string) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, 2)
	if prompt, ok := methodPrompts[method]; ok {
		msgs = append(msgs, models.ChatMessage{Role: models.RoleSystem, Content: prompt})
	}
	return append(msgs, models.ChatMessage{Role: models.RoleUser, Content: message})
}

// methodTag converts a method to its wire tag: basic responses carry no tag at all.
func methodTag(method models.Method) models.Method {
	if method == models.MethodBasic {
		return ""
	}
	return method
}

func (h Handler) streamChat(w http.ResponseWriter, r *http.Request, method models.Method, req models.ChatRequest) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable nginx buffering so chunks reach the client as they are produced.
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)

	start := time.Now()
	totalChars := 0

	for chunk, err := range h.llm.Chat(r.Context(), methodMessages(method, req.Message), chatOptions(req)) {
		if err != nil {
			h.logger.Error("Provider error during stream",
				slog.String("method", string(method)),
				slog.String("err", err.Error()))
			_ = stream.WriteError(w, "streaming failed: "+err.Error())
			return
		}

		if _, err := w.Write([]byte(chunk)); err != nil {
			// The client went away; there is nobody left to send a marker to.
			h.logger.Debug("Client disconnected mid-stream", slog.String("err", err.Error()))
			return
		}
		totalChars += len(chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}

	err := stream.WriteMeta(w, stream.Meta{
		ID:         uuid.New().String(),
		Method:     string(methodTag(method)),
		Timestamp:  time.Now().Format(time.RFC3339),
		TimeTaken:  roundHundredths(time.Since(start).Seconds()),
		TotalChars: totalChars,
	})
	if err != nil {
		h.logger.Error("Failed to finish stream", slog.String("err", err.Error()))
	}
}

func (h Handler) exchangeChat(w http.ResponseWriter, r *http.Request, method models.Method, req models.ChatRequest) {
	start := time.Now()

	var content []byte
	chunks := 0
	for chunk, err := range h.llm.Chat(r.Context(), methodMessages(method, req.Message), chatOptions(req)) {
		if err != nil {
			h.logger.Error("Provider error",
				slog.String("method", string(method)),
				slog.String("err", err.Error()))
			writeJSONError(w, http.StatusInternalServerError, "chat processing failed: "+err.Error())
			return
		}
		content = append(content, chunk...)
		chunks++
	}

	elapsed := time.Since(start).Seconds()
	var rate float64
	if elapsed > 0 {
		// One chunk approximates one token closely enough for a display-only rate.
		rate = roundHundredths(float64(chunks) / elapsed)
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		ID:              uuid.New().String(),
		Role:            models.RoleAssistant,
		Content:         string(content),
		Timestamp:       time.Now(),
		Method:          methodTag(method),
		Model:           req.Model,
		TokensPerSecond: rate,
	})
}

func chatOptions(req models.ChatRequest) models.ChatOptions {
	return models.ChatOptions{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

func roundHundredths(f float64) float64 {
	return math.Round(f*100) / 100
}
