package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/duo-chat-ui/internal/chat"
	"github.com/MegaGrindStone/duo-chat-ui/internal/client"
	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
)

// HandleSaveSession persists the current contents of both panels through the backend and returns
// the assigned session ID as JSON.
func (m *Main) HandleSaveSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := m.chat.Snapshot()
	if len(snap.Basic) == 0 && len(snap.Advanced) == 0 {
		http.Error(w, "Nothing to save", http.StatusBadRequest)
		return
	}

	id, err := m.api.SaveSession(r.Context(), snap)
	if err != nil {
		m.logger.Error("Failed to save session", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

// HandleLoadSession replaces both panels with a saved session and sends the browser back to the
// home page, which re-renders from the restored state.
func (m *Main) HandleLoadSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	session, err := m.api.Session(r.Context(), id)
	if err != nil {
		if errors.Is(err, client.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		m.logger.Error("Failed to load session",
			slog.String("sessionID", id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}

	if err := m.chat.Restore(session); err != nil {
		http.Error(w, "A response is still being generated", http.StatusConflict)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleExport downloads one panel's transcript as a print-ready document. The panel is chosen by
// the "panel" form field and defaults to the advanced column.
func (m *Main) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	panel := chat.PanelAdvanced
	if r.FormValue("panel") == string(chat.PanelBasic) {
		panel = chat.PanelBasic
	}

	msgs := m.chat.Messages(panel)
	if len(msgs) == 0 {
		http.Error(w, "Nothing to export", http.StatusBadRequest)
		return
	}

	data, filename, err := m.api.ExportPDF(r.Context(), models.ExportRequest{
		Title:    exportTitle(msgs),
		Messages: msgs,
	})
	if err != nil {
		m.logger.Error("Failed to export transcript", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Failed to export transcript", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}

// exportTitle derives a document title from the first user message.
func exportTitle(msgs []models.Message) string {
	for _, msg := range msgs {
		if msg.Role != models.RoleUser {
			continue
		}
		title := strings.TrimSpace(msg.Content)
		if len(title) > 60 {
			title = title[:60]
		}
		if title != "" {
			return title
		}
	}
	return "Chat transcript"
}
