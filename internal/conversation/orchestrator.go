package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	"github.com/wolfman30/voice-appointment-confirm/internal/observability/metrics"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TurnRequest is one user utterance plus the state threaded in by the caller.
type TurnRequest struct {
	ConversationID string
	Utterance      string
	History        []Message
	Details        appointment.Details
}

// TurnResult is the outcome of a turn. Reply is never empty.
type TurnResult struct {
	Reply    string              `json:"response"`
	Details  appointment.Details `json:"appointmentDetails"`
	Stage    appointment.Stage   `json:"stage"`
	Strategy Strategy            `json:"strategy"`
}

// Orchestrator runs one dialogue turn: policy selection followed by slot
// extraction over the reply that goes back to the caller.
type Orchestrator struct {
	selector  *PolicySelector
	extractor *appointment.Extractor
	logger    *logging.Logger
	metrics   *metrics.TurnMetrics
	events    *EventLogger
	tracer    trace.Tracer
	now       func() time.Time
}

// OrchestratorOption configures optional collaborators.
type OrchestratorOption func(*Orchestrator)

// WithExtractor overrides the default extraction rule table.
func WithExtractor(extractor *appointment.Extractor) OrchestratorOption {
	return func(o *Orchestrator) {
		if extractor != nil {
			o.extractor = extractor
		}
	}
}

func WithTurnMetrics(m *metrics.TurnMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithEventLogger(events *EventLogger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.events = events
	}
}

func WithTracer(tracer trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func NewOrchestrator(selector *PolicySelector, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if selector == nil {
		panic("conversation: policy selector cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		selector:  selector,
		extractor: appointment.NewExtractor(),
		logger:    logger,
		tracer:    otel.Tracer("voiceconfirm.internal.conversation.orchestrator"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTurn never fails. Backend errors and panics inside the policies end
// in the scripted reply; the caller's Details are never modified.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (result TurnResult) {
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "conversation.process_turn")
	defer span.End()

	current := req.Details.Normalize()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("turn panicked, using scripted reply",
				"conversation_id", req.ConversationID,
				"panic", r,
			)
			reply := ScriptedReply(req.Utterance, current)
			details := appointment.Extract(req.Utterance, reply, current)
			result = TurnResult{
				Reply:    reply,
				Details:  details,
				Stage:    appointment.StageOf(details, req.Utterance),
				Strategy: StrategyFallback,
			}
		}
	}()

	stage := appointment.StageOf(current, req.Utterance)
	decision := o.selector.Select(ctx, TurnInput{
		ConversationID: req.ConversationID,
		Utterance:      req.Utterance,
		History:        NormalizeHistory(req.History),
		Details:        current,
		Stage:          stage,
	})
	reply := strings.TrimSpace(decision.Text)
	if reply == "" {
		reply = ScriptedReply(req.Utterance, current)
	}

	updated := o.extractor.Extract(req.Utterance, reply, current)
	next := appointment.StageOf(updated, req.Utterance)
	latency := o.now().Sub(start)

	if abandoned(ctx, decision.Cause) {
		o.logger.Debug("turn abandoned during generation", "conversation_id", req.ConversationID)
		return TurnResult{
			Reply:    reply,
			Details:  updated,
			Stage:    next,
			Strategy: decision.Strategy,
		}
	}

	if decision.Cause != nil {
		span.RecordError(decision.Cause)
		o.metrics.ObserveGenerationFailure()
		o.events.GenerationFallback(ctx, req.ConversationID, decision.Cause)
	}
	for _, field := range appointment.Filled(current, updated) {
		o.metrics.ObserveSlotFilled(string(field))
		o.events.SlotFilled(ctx, req.ConversationID, string(field))
	}
	o.metrics.ObserveTurn(string(decision.Strategy), string(next), latency.Seconds())
	o.events.TurnProcessed(ctx, req.ConversationID, decision.Strategy, string(next), latency)

	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("voiceconfirm.turn.strategy", string(decision.Strategy)),
			attribute.String("voiceconfirm.turn.stage", string(next)),
		)
	}
	o.logger.Debug("turn processed",
		"conversation_id", req.ConversationID,
		"strategy", string(decision.Strategy),
		"stage", string(next),
	)

	return TurnResult{
		Reply:    reply,
		Details:  updated,
		Stage:    next,
		Strategy: decision.Strategy,
	}
}
