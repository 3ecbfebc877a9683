package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultMaxTokens         = 150
	defaultTemperature       = 0.7
	defaultGenerationTimeout = 10 * time.Second

	clarificationReply = "I'm sorry, could you please repeat that?"
)

var policyTracer = otel.Tracer("voiceconfirm.internal.conversation.policy")

// TurnInput is everything a policy may look at to choose the next reply.
type TurnInput struct {
	ConversationID string
	Utterance      string
	History        []Message
	Details        appointment.Details
	Stage          appointment.Stage
}

// Policy chooses the next agent utterance.
type Policy interface {
	Respond(ctx context.Context, in TurnInput) (string, error)
}

// GenerationConfig bounds one generative call. A nil Temperature uses 0.7;
// an explicit zero is kept.
type GenerationConfig struct {
	Model       string
	MaxTokens   int32
	Temperature *float32
	Timeout     time.Duration
}

func (c GenerationConfig) withDefaults() GenerationConfig {
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature == nil {
		t := float32(defaultTemperature)
		c.Temperature = &t
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultGenerationTimeout
	}
	return c
}

// GenerativePolicy asks the generation backend for the reply.
type GenerativePolicy struct {
	client LLMClient
	cfg    GenerationConfig
}

func NewGenerativePolicy(client LLMClient, cfg GenerationConfig) *GenerativePolicy {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &GenerativePolicy{client: client, cfg: cfg.withDefaults()}
}

// Respond makes a single bounded attempt. Errors are returned untouched so
// the selector can fall back; a blank completion becomes a clarification.
func (p *GenerativePolicy) Respond(ctx context.Context, in TurnInput) (string, error) {
	ctx, span := policyTracer.Start(ctx, "conversation.generate")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	resp, err := p.client.Complete(callCtx, p.request(in))
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if span.IsRecording() {
		span.SetAttributes(
			attribute.Int("voiceconfirm.llm.output_tokens", int(resp.Usage.OutputTokens)),
			attribute.String("voiceconfirm.llm.stop_reason", resp.StopReason),
		)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return clarificationReply, nil
	}
	return strings.TrimSpace(resp.Text), nil
}

func (p *GenerativePolicy) request(in TurnInput) LLMRequest {
	history := NormalizeHistory(in.History)
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: in.Utterance})

	return LLMRequest{
		Model:       p.cfg.Model,
		System:      []string{BuildSystemPrompt(in.Details, in.Stage)},
		Messages:    messages,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: *p.cfg.Temperature,
	}
}

// Canned replies used when the generation backend is unavailable.
const (
	ScriptedProposalReply      = "Thank you! I have your appointment scheduled for next Tuesday, January 14th at 2:30 PM with Dr. Smith. Can you confirm this appointment?"
	ScriptedConfirmedReply     = "Perfect! Your appointment is confirmed for Tuesday, January 14th at 2:30 PM with Dr. Smith. We'll see you then. Have a great day!"
	ScriptedRescheduleReply    = "I understand. Would you like to reschedule your appointment? I can help you find a new time that works better for you."
	ScriptedConfirmPromptReply = "Thank you for that information. Can you confirm your appointment for next Tuesday at 2:30 PM?"
)

// ScriptedPolicy is the keyword driven fallback. It is total: every input,
// including the empty string, maps to a non-empty reply.
type ScriptedPolicy struct{}

func NewScriptedPolicy() *ScriptedPolicy {
	return &ScriptedPolicy{}
}

func (ScriptedPolicy) Respond(_ context.Context, in TurnInput) (string, error) {
	return ScriptedReply(in.Utterance, in.Details), nil
}

// ScriptedReply picks the canned reply for an utterance.
func ScriptedReply(utterance string, details appointment.Details) string {
	input := strings.ToLower(utterance)
	switch {
	case !details.HasName() && strings.Contains(input, "name"):
		return ScriptedProposalReply
	case strings.Contains(input, "yes") || strings.Contains(input, "confirm"):
		return ScriptedConfirmedReply
	case strings.Contains(input, "no") || strings.Contains(input, "cancel") || strings.Contains(input, "reschedule"):
		return ScriptedRescheduleReply
	default:
		return ScriptedConfirmPromptReply
	}
}
