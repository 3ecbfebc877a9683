package conversation

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

func TestPolicySelector_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := &stubPolicy{text: "Generated reply"}
	fallback := &stubPolicy{text: "Scripted reply"}
	sel := NewPolicySelector(primary, fallback, logging.Default())

	d := sel.Select(context.Background(), TurnInput{Utterance: "hi"})
	assert.Equal(t, Decision{Text: "Generated reply", Strategy: StrategyGenerative}, d)
	assert.Zero(t, fallback.calls)
}

func TestPolicySelector_FallsBackOnErrorAndLogs(t *testing.T) {
	var buf bytes.Buffer
	sel := NewPolicySelector(&stubPolicy{err: errBackendDown}, nil, logging.NewWithWriter("info", &buf))

	d := sel.Select(context.Background(), TurnInput{
		ConversationID: "conv-9",
		Utterance:      "name",
		Stage:          appointment.StageAwaitingName,
	})
	assert.Equal(t, ScriptedProposalReply, d.Text)
	assert.Equal(t, StrategyFallback, d.Strategy)
	assert.ErrorIs(t, d.Cause, errBackendDown)
	assert.Contains(t, buf.String(), `"conversation_id":"conv-9"`)
	assert.Contains(t, buf.String(), `"stage":"awaiting_name"`)
	assert.Contains(t, buf.String(), "backend unavailable")
}

func TestPolicySelector_CallerCancellationIsNotWarned(t *testing.T) {
	var buf bytes.Buffer
	sel := NewPolicySelector(&stubPolicy{err: context.Canceled}, nil, logging.NewWithWriter("info", &buf))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := sel.Select(ctx, TurnInput{ConversationID: "conv-3", Utterance: "yes"})
	assert.Equal(t, StrategyFallback, d.Strategy)
	assert.ErrorIs(t, d.Cause, context.Canceled)
	assert.NotContains(t, buf.String(), "generation failed")
}

func TestPolicySelector_RecoversPanickingPrimary(t *testing.T) {
	sel := NewPolicySelector(&stubPolicy{panicMsg: "boom"}, nil, logging.Default())
	d := sel.Select(context.Background(), TurnInput{Utterance: "yes"})
	assert.Equal(t, ScriptedConfirmedReply, d.Text)
	assert.Equal(t, StrategyFallback, d.Strategy)
	assert.ErrorContains(t, d.Cause, "boom")
}

func TestPolicySelector_NilPrimaryIsFallbackOnly(t *testing.T) {
	var buf bytes.Buffer
	sel := NewPolicySelector(nil, nil, logging.NewWithWriter("info", &buf))
	d := sel.Select(context.Background(), TurnInput{Utterance: "cancel"})
	assert.Equal(t, ScriptedRescheduleReply, d.Text)
	assert.Equal(t, StrategyFallback, d.Strategy)
	assert.NoError(t, d.Cause)
	assert.Empty(t, buf.String())
}

func TestPolicySelector_BrokenFallbackStillReplies(t *testing.T) {
	sel := NewPolicySelector(&stubPolicy{err: errBackendDown}, &stubPolicy{err: errBackendDown}, logging.Default())
	d := sel.Select(context.Background(), TurnInput{Utterance: ""})
	assert.Equal(t, ScriptedConfirmPromptReply, d.Text)

	sel = NewPolicySelector(&stubPolicy{err: errBackendDown}, &stubPolicy{text: "  "}, logging.Default())
	d = sel.Select(context.Background(), TurnInput{Utterance: "yes"})
	assert.Equal(t, ScriptedConfirmedReply, d.Text)
}

func TestPolicySelector_KeepsNoStateBetweenTurns(t *testing.T) {
	primary := &stubPolicy{err: errBackendDown}
	sel := NewPolicySelector(primary, nil, logging.Default())
	sel.Select(context.Background(), TurnInput{Utterance: "hi"})

	primary.err = nil
	primary.text = "back online"
	d := sel.Select(context.Background(), TurnInput{Utterance: "hi"})
	assert.Equal(t, StrategyGenerative, d.Strategy)
	assert.Equal(t, 2, primary.calls)
}
