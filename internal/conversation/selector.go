package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// Strategy records which policy produced a reply.
type Strategy string

const (
	StrategyGenerative Strategy = "generative"
	StrategyFallback   Strategy = "fallback"
)

// Decision is the selector's output for one turn. Cause is the primary
// failure that forced the fallback, if any.
type Decision struct {
	Text     string
	Strategy Strategy
	Cause    error
}

// PolicySelector tries the primary policy once per turn and falls back to
// the scripted policy on any failure. It keeps no state between turns.
type PolicySelector struct {
	primary  Policy
	fallback Policy
	logger   *logging.Logger
}

// NewPolicySelector wires the strategies. A nil primary means generation is
// disabled and every turn is scripted; a nil fallback uses ScriptedPolicy.
func NewPolicySelector(primary, fallback Policy, logger *logging.Logger) *PolicySelector {
	if fallback == nil {
		fallback = NewScriptedPolicy()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PolicySelector{primary: primary, fallback: fallback, logger: logger}
}

// Select always returns a non-empty reply.
func (s *PolicySelector) Select(ctx context.Context, in TurnInput) Decision {
	if s.primary == nil {
		return Decision{Text: s.fallbackReply(ctx, in), Strategy: StrategyFallback}
	}

	text, err := callPolicy(ctx, s.primary, in)
	if err == nil {
		return Decision{Text: text, Strategy: StrategyGenerative}
	}

	if abandoned(ctx, err) {
		s.logger.Debug("generation interrupted by caller",
			"conversation_id", in.ConversationID,
			"error", err.Error(),
		)
	} else {
		s.logger.Warn("generation failed, using scripted reply",
			"conversation_id", in.ConversationID,
			"stage", string(in.Stage),
			"error", err.Error(),
		)
	}
	return Decision{Text: s.fallbackReply(ctx, in), Strategy: StrategyFallback, Cause: err}
}

func (s *PolicySelector) fallbackReply(ctx context.Context, in TurnInput) string {
	text, err := callPolicy(ctx, s.fallback, in)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.logger.Error("fallback policy failed", "conversation_id", in.ConversationID, "error", err.Error())
		}
		return ScriptedReply(in.Utterance, in.Details)
	}
	return text
}

// callPolicy converts a panicking policy into an ordinary failure.
func callPolicy(ctx context.Context, p Policy, in TurnInput) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversation: policy panicked: %v", r)
		}
	}()
	return p.Respond(ctx, in)
}

// abandoned reports whether err is only the caller's own cancellation.
func abandoned(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
}
