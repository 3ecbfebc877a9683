package webchat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
	"golang.org/x/net/websocket"
)

const endTimeout = 5 * time.Second

// InboundMessage is what the client sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send back.
type OutboundMessage struct {
	Type      string               `json:"type"` // "session", "message", "pong", "error"
	Text      string               `json:"text,omitempty"`
	SessionID string               `json:"session_id,omitempty"`
	Details   *appointment.Details `json:"appointmentDetails,omitempty"`
	Stage     appointment.Stage    `json:"stage,omitempty"`
	Timestamp string               `json:"timestamp,omitempty"`
}

// Handler runs one conversation per websocket connection.
type Handler struct {
	service conversation.Service
	logger  *logging.Logger
}

func NewHandler(service conversation.Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("webchat: conversation service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn) {
	// The hijacked connection has no request context; closing the socket is
	// the only cancellation signal, so the reader goroutine owns cancel.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start, err := h.service.StartConversation(ctx, conversation.StartRequest{
		ConversationID: conn.Request().URL.Query().Get("session"),
		Source:         "websocket",
	})
	if errors.Is(err, conversation.ErrConversationExists) {
		h.logger.Warn("webchat: session already in progress", "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "This conversation is already in progress."})
		return
	}
	if err != nil {
		h.logger.Error("webchat: failed to start conversation", "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
		return
	}
	convID := start.ConversationID
	logger := h.logger.WithConversation(convID)
	defer h.end(convID)

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: convID})
	_ = websocket.JSON.Send(conn, h.reply(start))
	logger.Info("webchat: connection opened")

	inbound := make(chan InboundMessage)
	go func() {
		defer cancel()
		defer close(inbound)
		for {
			var msg InboundMessage
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				logger.Debug("webchat: connection closed", "error", err)
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for msg := range inbound {
		switch {
		case msg.Type == "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
		case msg.Type != "message" || strings.TrimSpace(msg.Text) == "":
			continue
		default:
			h.processMessage(ctx, conn, convID, msg.Text)
		}
	}
}

func (h *Handler) processMessage(ctx context.Context, conn *websocket.Conn, convID, text string) {
	resp, err := h.service.ProcessMessage(ctx, conversation.MessageRequest{
		ConversationID: convID,
		Message:        text,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Error("webchat: failed to process message", "conversation_id", convID, "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type: "error",
			Text: "Sorry, something went wrong. Please try again.",
		})
		return
	}
	_ = websocket.JSON.Send(conn, h.reply(resp))
}

func (h *Handler) reply(resp *conversation.Response) OutboundMessage {
	details := resp.Details
	return OutboundMessage{
		Type:      "message",
		Text:      resp.Message,
		Details:   &details,
		Stage:     resp.Stage,
		Timestamp: resp.Timestamp.Format(time.RFC3339),
	}
}

// end discards the session once the socket is gone.
func (h *Handler) end(convID string) {
	ctx, cancel := context.WithTimeout(context.Background(), endTimeout)
	defer cancel()
	if _, err := h.service.EndConversation(ctx, convID); err != nil {
		h.logger.Warn("webchat: failed to end conversation", "conversation_id", convID, "error", err)
	}
}
