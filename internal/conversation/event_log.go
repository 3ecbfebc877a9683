package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// ConversationEvent is one structured event in the dialogue lifecycle.
// All events share the same base fields for easy filtering:
//
//	grep '"event":"generation_fallback"' /var/log/app.log
//	grep '"conversation_id":"conv_abc"' /var/log/app.log
type ConversationEvent struct {
	Time           string         `json:"time"`
	Event          string         `json:"event"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

const (
	EventTurnProcessed       = "turn_processed"
	EventGenerationFallback  = "generation_fallback"
	EventSlotFilled          = "slot_filled"
	EventConversationStarted = "conversation_started"
	EventConversationEnded   = "conversation_ended"
)

// EventLogger emits conversation events as JSON lines.
type EventLogger struct {
	logger *logging.Logger
	now    func() time.Time
}

func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger, now: time.Now}
}

// Log emits a structured conversation event. A nil receiver is a no-op.
func (e *EventLogger) Log(_ context.Context, event, convID string, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	evt := ConversationEvent{
		Time:           e.now().UTC().Format(time.RFC3339Nano),
		Event:          event,
		ConversationID: convID,
		Data:           data,
	}
	b, _ := json.Marshal(evt)
	e.logger.Info(string(b))
}

func (e *EventLogger) TurnProcessed(ctx context.Context, convID string, strategy Strategy, stage string, latency time.Duration) {
	e.Log(ctx, EventTurnProcessed, convID, map[string]any{
		"strategy":   string(strategy),
		"stage":      stage,
		"latency_ms": latency.Milliseconds(),
	})
}

func (e *EventLogger) GenerationFallback(ctx context.Context, convID string, cause error) {
	data := map[string]any{}
	if cause != nil {
		data["error"] = cause.Error()
	}
	e.Log(ctx, EventGenerationFallback, convID, data)
}

// SlotFilled omits the value so patient names stay out of the event stream.
func (e *EventLogger) SlotFilled(ctx context.Context, convID, field string) {
	e.Log(ctx, EventSlotFilled, convID, map[string]any{"field": field})
}

func (e *EventLogger) ConversationStarted(ctx context.Context, convID, source string) {
	e.Log(ctx, EventConversationStarted, convID, map[string]any{"source": source})
}

func (e *EventLogger) ConversationEnded(ctx context.Context, convID string, turns int, confirmed bool) {
	e.Log(ctx, EventConversationEnded, convID, map[string]any{
		"turns":     turns,
		"confirmed": confirmed,
	})
}
