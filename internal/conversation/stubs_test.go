package conversation

import (
	"context"
	"errors"
	"sync"
)

var errBackendDown = errors.New("backend unavailable")

// stubLLM records requests and answers with a fixed reply or error.
type stubLLM struct {
	mu          sync.Mutex
	reply       string
	err         error
	panicMsg    string
	requests    []LLMRequest
	sawDeadline bool
}

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	_, s.sawDeadline = ctx.Deadline()
	s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.reply, StopReason: "stop"}, nil
}

func (s *stubLLM) lastRequest() LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return LLMRequest{}
	}
	return s.requests[len(s.requests)-1]
}

// blockingLLM waits until the caller's context ends.
type blockingLLM struct {
	started chan struct{}
}

func (b *blockingLLM) Complete(ctx context.Context, _ LLMRequest) (LLMResponse, error) {
	if b.started != nil {
		close(b.started)
	}
	<-ctx.Done()
	return LLMResponse{}, ctx.Err()
}

type stubPolicy struct {
	text     string
	err      error
	panicMsg string
	calls    int
}

func (p *stubPolicy) Respond(_ context.Context, _ TurnInput) (string, error) {
	p.calls++
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	return p.text, p.err
}
