package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// DefaultGreeting opens every conversation unless overridden.
const DefaultGreeting = "Hello! I'm calling from your medical clinic to confirm your upcoming appointment. May I have your name please?"

// ErrConversationExists is returned when a start names a live conversation.
var ErrConversationExists = errors.New("conversation: conversation already exists")

// Service describes the stateful conversation API used by transports that do
// not thread history and slot state themselves.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	GetConversation(ctx context.Context, conversationID string) (*Session, error)
	EndConversation(ctx context.Context, conversationID string) (*Session, error)
}

// StartRequest opens a conversation. ConversationID is optional.
type StartRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Source         string `json:"source,omitempty"`
}

// MessageRequest is a single user turn.
type MessageRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// Response is returned to the transport layer after every turn.
type Response struct {
	ConversationID string              `json:"conversationId"`
	Message        string              `json:"response"`
	Details        appointment.Details `json:"appointmentDetails"`
	Stage          appointment.Stage   `json:"stage"`
	Strategy       Strategy            `json:"strategy,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

// SessionService runs turns against stored sessions. Turns on the same
// conversation are serialised; different conversations run in parallel.
type SessionService struct {
	store        SessionStore
	orchestrator *Orchestrator
	logger       *logging.Logger
	events       *EventLogger
	greeting     string
	locks        *conversationLocks
	now          func() time.Time
}

var _ Service = (*SessionService)(nil)

// ServiceOption configures a SessionService.
type ServiceOption func(*SessionService)

// WithGreeting replaces the opening line.
func WithGreeting(greeting string) ServiceOption {
	return func(s *SessionService) {
		if strings.TrimSpace(greeting) != "" {
			s.greeting = strings.TrimSpace(greeting)
		}
	}
}

func WithServiceEvents(events *EventLogger) ServiceOption {
	return func(s *SessionService) {
		s.events = events
	}
}

func NewSessionService(store SessionStore, orchestrator *Orchestrator, logger *logging.Logger, opts ...ServiceOption) *SessionService {
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if orchestrator == nil {
		panic("conversation: orchestrator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &SessionService{
		store:        store,
		orchestrator: orchestrator,
		logger:       logger,
		greeting:     DefaultGreeting,
		locks:        newConversationLocks(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartConversation creates a session seeded with the greeting. A caller
// chosen id that is still live is refused with ErrConversationExists.
func (s *SessionService) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = uuid.NewString()
	}

	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	switch _, err := s.store.Load(ctx, id); {
	case err == nil:
		return nil, fmt.Errorf("conversation: start %s: %w", id, ErrConversationExists)
	case !errors.Is(err, ErrSessionNotFound):
		return nil, fmt.Errorf("conversation: start %s: %w", id, err)
	}

	now := s.now().UTC()
	session := Session{
		ID:        id,
		History:   []Message{{Role: ChatRoleAssistant, Content: s.greeting}},
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("conversation: start %s: %w", id, err)
	}

	source := req.Source
	if source == "" {
		source = "api"
	}
	s.events.ConversationStarted(ctx, id, source)
	return &Response{
		ConversationID: id,
		Message:        s.greeting,
		Stage:          appointment.StageAwaitingName,
		Timestamp:      now,
	}, nil
}

// ProcessMessage runs one turn. If ctx ends before the turn completes the
// result is dropped, the session is left untouched and ctx.Err() is returned.
func (s *SessionService) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	unlock, err := s.locks.lock(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.store.Load(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	result := s.orchestrator.ProcessTurn(ctx, TurnRequest{
		ConversationID: session.ID,
		Utterance:      req.Message,
		History:        session.History,
		Details:        session.Details,
	})
	if err := ctx.Err(); err != nil {
		s.logger.Info("turn abandoned", "conversation_id", session.ID, "error", err.Error())
		return nil, err
	}

	now := s.now().UTC()
	session.History = append(session.History,
		Message{Role: ChatRoleUser, Content: req.Message},
		Message{Role: ChatRoleAssistant, Content: result.Reply},
	)
	session.Details = result.Details
	session.Turns++
	session.UpdatedAt = now
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("conversation: save %s: %w", session.ID, err)
	}

	return &Response{
		ConversationID: session.ID,
		Message:        result.Reply,
		Details:        result.Details,
		Stage:          result.Stage,
		Strategy:       result.Strategy,
		Timestamp:      now,
	}, nil
}

func (s *SessionService) GetConversation(ctx context.Context, conversationID string) (*Session, error) {
	session, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// EndConversation discards the session and returns its final state.
func (s *SessionService) EndConversation(ctx context.Context, conversationID string) (*Session, error) {
	unlock, err := s.locks.lock(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("conversation: end %s: %w", conversationID, err)
	}
	s.events.ConversationEnded(ctx, conversationID, session.Turns, session.Details.Confirmed)
	return &session, nil
}

// conversationLocks hands out one lock per conversation id and forgets it
// once no caller holds or waits on it.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	sem  chan struct{}
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*conversationLock)}
}

func (l *conversationLocks) lock(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &conversationLock{sem: make(chan struct{}, 1)}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			l.release(id, entry)
		}, nil
	case <-ctx.Done():
		l.release(id, entry)
		return nil, ctx.Err()
	}
}

func (l *conversationLocks) release(id string, entry *conversationLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
}
