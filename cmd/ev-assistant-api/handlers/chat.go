// Package handlers provides HTTP handlers for the EV assistant API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/spherical-ai/ev-assistant/internal/assistant"
	"github.com/spherical-ai/ev-assistant/internal/observability"
	"github.com/spherical-ai/ev-assistant/internal/session"
)

// ChatHandler serves chat sessions backed by the query engine.
type ChatHandler struct {
	logger   *observability.Logger
	engine   *assistant.Engine
	sessions *session.Store
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *observability.Logger, engine *assistant.Engine, sessions *session.Store) *ChatHandler {
	return &ChatHandler{
		logger:   logger.WithComponent("chat_handler"),
		engine:   engine,
		sessions: sessions,
	}
}

// ChatRequestDTO is the body of POST /chat.
type ChatRequestDTO struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

// ChatResponseDTO is the reply to one message.
type ChatResponseDTO struct {
	SessionID string `json:"sessionId"`
	Intent    string `json:"intent"`
	Reply     string `json:"reply"`
}

// SessionDTO identifies a session.
type SessionDTO struct {
	SessionID string `json:"sessionId"`
}

// TranscriptDTO lists the turns of a session in order.
type TranscriptDTO struct {
	SessionID string          `json:"sessionId"`
	Entries   []session.Entry `json:"entries"`
}

// CreateSession handles POST /sessions.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Create()
	h.logger.WithOperation("create_session").WithContext(r.Context()).Info().Str("session_id", id).Msg("Session created")
	writeJSON(w, h.logger, http.StatusCreated, SessionDTO{SessionID: id})
}

// Chat handles POST /chat. A session is opened when none is given.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithOperation("chat").WithContext(ctx)

	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "")
		return
	}

	id := req.SessionID
	if id == "" {
		id = h.sessions.Create()
	} else if !h.sessions.Exists(id) {
		writeError(w, http.StatusNotFound, "session not found", id)
		return
	}

	reply := h.engine.Answer(ctx, message)

	if err := h.sessions.Exchange(id, message, reply.Text); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found", id)
			return
		}
		logger.Error().Err(err).Msg("Failed to record exchange")
		writeError(w, http.StatusInternalServerError, "failed to record exchange", "")
		return
	}

	logger.WithSession(id).Debug().
		Str("intent", string(reply.Intent)).
		Bool("cached", reply.Cached).
		Msg("Message answered")

	writeJSON(w, h.logger, http.StatusOK, ChatResponseDTO{
		SessionID: id,
		Intent:    string(reply.Intent),
		Reply:     reply.Text,
	})
}

// Transcript handles GET /sessions/{sessionId}/transcript.
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	entries, err := h.sessions.Transcript(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found", id)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, TranscriptDTO{SessionID: id, Entries: entries})
}

// DeleteSession handles DELETE /sessions/{sessionId}.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	if err := h.sessions.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, "session not found", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
