package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/domain/chat"
)

// ChatService is the message lifecycle the handler delegates to.
type ChatService interface {
	HandleMessage(ctx context.Context, sessionID, message string) (*chat.Result, error)
	EndSession(ctx context.Context, sessionID string) error
}

// ChatHandler serves the chat and end-session endpoints.
type ChatHandler struct {
	service ChatService
	logger  *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(service ChatService, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{service: service, logger: logger}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	TraceID   string `json:"trace_id,omitempty"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

// Chat handles POST /chat: one user message in, one assistant reply out.
// Run failures return 500 with the session id so the caller can correlate.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := h.service.HandleMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.logger.Error("chat run failed", "session_id", req.SessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":      err.Error(),
			"session_id": req.SessionID,
		})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  res.Reply,
		SessionID: req.SessionID,
		TraceID:   res.TraceID,
	})
}

// EndSession handles POST /end-session. The store notification is
// best-effort: the session is ended from the caller's point of view even
// when the store is unreachable.
func (h *ChatHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := h.service.EndSession(r.Context(), req.SessionID); err != nil {
		h.logger.Warn("end-session notification failed", "session_id", req.SessionID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": req.SessionID,
		"status":     "ended",
	})
}
