package conversation

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

func newTestService(client LLMClient, opts ...ServiceOption) (*SessionService, *MemorySessionStore) {
	store := NewMemorySessionStore(time.Hour)
	return NewSessionService(store, newTestOrchestrator(client), logging.Default(), opts...), store
}

func TestSessionService_StartSeedsGreeting(t *testing.T) {
	svc, store := newTestService(nil)
	resp, err := svc.StartConversation(context.Background(), StartRequest{})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, DefaultGreeting, resp.Message)
	assert.Equal(t, appointment.StageAwaitingName, resp.Stage)

	session, err := store.Load(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, []Message{{Role: ChatRoleAssistant, Content: DefaultGreeting}}, session.History)
	assert.Equal(t, appointment.Details{}, session.Details)
}

func TestSessionService_CustomGreetingAndID(t *testing.T) {
	svc, _ := newTestService(nil, WithGreeting("Hi, this is Lakeside Clinic."))
	resp, err := svc.StartConversation(context.Background(), StartRequest{ConversationID: "call-42"})
	require.NoError(t, err)
	assert.Equal(t, "call-42", resp.ConversationID)
	assert.Equal(t, "Hi, this is Lakeside Clinic.", resp.Message)
}

func TestSessionService_StartRefusesLiveConversation(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()
	_, err := svc.StartConversation(ctx, StartRequest{ConversationID: "call-1"})
	require.NoError(t, err)
	_, err = svc.ProcessMessage(ctx, MessageRequest{ConversationID: "call-1", Message: "My name is John Smith"})
	require.NoError(t, err)

	_, err = svc.StartConversation(ctx, StartRequest{ConversationID: "call-1"})
	require.ErrorIs(t, err, ErrConversationExists)

	session, err := store.Load(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", session.Details.PatientName)
	assert.Equal(t, 1, session.Turns)
	assert.Len(t, session.History, 3)
}

func TestSessionService_StartReusesEndedID(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	_, err := svc.StartConversation(ctx, StartRequest{ConversationID: "call-7"})
	require.NoError(t, err)
	_, err = svc.EndConversation(ctx, "call-7")
	require.NoError(t, err)

	resp, err := svc.StartConversation(ctx, StartRequest{ConversationID: "call-7"})
	require.NoError(t, err)
	assert.Equal(t, "call-7", resp.ConversationID)
}

func TestSessionService_FullConversation(t *testing.T) {
	svc, _ := newTestService(&stubLLM{err: errBackendDown})
	ctx := context.Background()
	start, err := svc.StartConversation(ctx, StartRequest{})
	require.NoError(t, err)
	id := start.ConversationID

	resp, err := svc.ProcessMessage(ctx, MessageRequest{ConversationID: id, Message: "My name is John Smith"})
	require.NoError(t, err)
	assert.Equal(t, "John Smith", resp.Details.PatientName)
	assert.Equal(t, StrategyFallback, resp.Strategy)

	resp, err = svc.ProcessMessage(ctx, MessageRequest{ConversationID: id, Message: "Yes, that's correct"})
	require.NoError(t, err)
	assert.Equal(t, ScriptedConfirmedReply, resp.Message)
	assert.True(t, resp.Details.Confirmed)
	assert.Equal(t, appointment.StageConfirmed, resp.Stage)

	session, err := svc.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, session.Turns)
	require.Len(t, session.History, 5)
	assert.Equal(t, Message{Role: ChatRoleUser, Content: "Yes, that's correct"}, session.History[3])

	ended, err := svc.EndConversation(ctx, id)
	require.NoError(t, err)
	assert.True(t, ended.Details.Confirmed)

	_, err = svc.GetConversation(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_UnknownConversation(t *testing.T) {
	svc, _ := newTestService(nil)
	_, err := svc.ProcessMessage(context.Background(), MessageRequest{ConversationID: "nope", Message: "hi"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.EndConversation(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_AbandonedTurnIsNotSaved(t *testing.T) {
	llm := &blockingLLM{started: make(chan struct{})}
	svc, store := newTestService(llm)
	start, err := svc.StartConversation(context.Background(), StartRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-llm.started
		cancel()
	}()
	_, err = svc.ProcessMessage(ctx, MessageRequest{ConversationID: start.ConversationID, Message: "My name is Ann"})
	assert.ErrorIs(t, err, context.Canceled)

	session, err := store.Load(context.Background(), start.ConversationID)
	require.NoError(t, err)
	assert.Len(t, session.History, 1)
	assert.Empty(t, session.Details.PatientName)
	assert.Zero(t, session.Turns)
}

func TestSessionService_SerialisesTurnsPerConversation(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	start, err := svc.StartConversation(ctx, StartRequest{})
	require.NoError(t, err)

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessMessage(ctx, MessageRequest{ConversationID: start.ConversationID, Message: "hmm"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	session, err := svc.GetConversation(ctx, start.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, turns, session.Turns)
	assert.Len(t, session.History, 1+2*turns)
}

func TestSessionService_WaitingForLockHonoursContext(t *testing.T) {
	svc, _ := newTestService(nil)
	unlock, err := svc.locks.lock(context.Background(), "conv-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.ProcessMessage(ctx, MessageRequest{ConversationID: "conv-1", Message: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionService_EmitsLifecycleEvents(t *testing.T) {
	var buf bytes.Buffer
	events := NewEventLogger(logging.NewWithWriter("info", &buf))
	svc, _ := newTestService(nil, WithServiceEvents(events))
	ctx := context.Background()
	start, err := svc.StartConversation(ctx, StartRequest{Source: "websocket"})
	require.NoError(t, err)
	_, err = svc.EndConversation(ctx, start.ConversationID)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), EventConversationStarted)
	assert.Contains(t, buf.String(), EventConversationEnded)
	assert.Contains(t, buf.String(), "websocket")
}

func TestConversationLocks_ReleaseForgetsIdleKeys(t *testing.T) {
	locks := newConversationLocks()
	unlock, err := locks.lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()
	assert.Empty(t, locks.locks)
}
