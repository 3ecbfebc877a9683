package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

const maxTurnBodyBytes = 1 << 20

// Handler wires HTTP requests to the turn engine and the session service.
type Handler struct {
	service      Service
	orchestrator *Orchestrator
	logger       *logging.Logger
}

func NewHandler(service Service, orchestrator *Orchestrator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:      service,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Turn handles POST /v1/turns: a stateless turn where the caller threads
// history and slot state.
func (h *Handler) Turn(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator == nil {
		http.Error(w, "Turn engine not configured", http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTurnBodyBytes))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req, err := DecodeTurnRequest(body)
	if err != nil {
		h.logger.Warn("failed to decode turn request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.orchestrator.ProcessTurn(r.Context(), req)
	if r.Context().Err() != nil {
		h.logger.Info("turn abandoned by client", "conversation_id", req.ConversationID)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Start handles POST /v1/conversations.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxTurnBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.logger.Error("failed to decode start request", "error", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	resp, err := h.service.StartConversation(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, req.ConversationID, "failed to start conversation", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// Message handles POST /v1/conversations/{id}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTurnBodyBytes)).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.ConversationID = chi.URLParam(r, "id")

	resp, err := h.service.ProcessMessage(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, req.ConversationID, "failed to process message", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /v1/conversations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.service.GetConversation(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, "failed to load conversation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// End handles DELETE /v1/conversations/{id}.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.service.EndConversation(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, "failed to end conversation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, conversationID, msg string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "Conversation not found", http.StatusNotFound)
	case errors.Is(err, ErrConversationExists):
		http.Error(w, "Conversation already exists", http.StatusConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; nothing was saved and nobody is listening.
		h.logger.Info("turn abandoned by client", "conversation_id", conversationID, "error", err.Error())
	default:
		h.logger.Error(msg, "conversation_id", conversationID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

// DecodeTurnRequest reads the stateless turn payload. Only a body that is not
// a JSON object is rejected; individual fields decode leniently.
func DecodeTurnRequest(body []byte) (TurnRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return TurnRequest{}, err
	}
	req := TurnRequest{
		ConversationID: rawText(raw["conversationId"]),
		Utterance:      rawText(raw["utterance"]),
		Details:        appointment.ParseDetails(raw["appointmentDetails"]),
	}
	if req.Utterance == "" {
		req.Utterance = rawText(raw["message"])
	}
	if history, ok := raw["history"]; ok {
		req.History = ParseHistory(history)
	} else {
		req.History = ParseHistory(raw["conversationHistory"])
	}
	return req, nil
}

func rawText(v json.RawMessage) string {
	var s string
	if len(v) == 0 || json.Unmarshal(v, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
