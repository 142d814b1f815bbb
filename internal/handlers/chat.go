package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/duo-chat-ui/internal/chat"
	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// HandleChats accepts a user message through form data and starts a turn across both panels. The
// response body is intentionally empty: the user message, the loading placeholders, and every
// later update reach the page through the panel SSE topics, so both columns share one render path.
//
// A blank message and a message sent while a turn is still running are rejected without side
// effects, with 400 and 409 respectively.
func (m *Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")

	// The turn outlives this request, so it must not inherit the request context.
	err := m.chat.Send(context.Background(), msg)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	case errors.Is(err, chat.ErrTurnInFlight):
		http.Error(w, "A response is still being generated", http.StatusConflict)
		return
	case err != nil:
		m.logger.Error("Failed to start turn", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleMethod switches the advanced panel's technique through the "method" form field.
func (m *Main) HandleMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	method := models.Method(r.FormValue("method"))
	if err := m.chat.SelectMethod(method); err != nil {
		m.logger.Error("Rejected method selection", slog.String("method", string(method)))
		http.Error(w, "Unknown method", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleClear drops both panels and tells connected pages to empty their columns. Clearing while
// a turn is running is rejected so a half-finished response cannot be orphaned by accident.
func (m *Main) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.chat.Clear(); err != nil {
		if errors.Is(err, chat.ErrTurnInFlight) {
			http.Error(w, "A response is still being generated", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	e := &sse.Message{Type: clearSSEType}
	e.AppendData("cleared")
	for _, panel := range []chat.Panel{chat.PanelBasic, chat.PanelAdvanced} {
		if err := m.sseSrv.Publish(e, panelTopic(panel)); err != nil {
			m.logger.Error("Failed to publish clear",
				slog.String("panel", string(panel)),
				slog.String(errLoggerKey, err.Error()))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE upgrades the connection for one panel's event stream.
func (m *Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}
