package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/google/uuid"
)

// HandleSaveSession persists a snapshot of both panels and returns its ID.
func (h Handler) HandleSaveSession(w http.ResponseWriter, r *http.Request) {
	var session models.Session
	if err := decodeJSON(r, &session); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	id, err := h.store.SaveSession(r.Context(), session)
	if err != nil {
		h.logger.Error("Failed to save session", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// HandleSession loads a saved snapshot by ID.
func (h Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	session, found, err := h.store.Session(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session",
			slog.String("id", id),
			slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, session)
}
