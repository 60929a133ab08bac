package providers

import (
	"context"
	"strings"
	"sync"
)

// Mock is a scriptable LLM for tests and mock runs. Responses are served in
// order; when the script runs out it falls back to Handler, and with neither
// it echoes the last user message.
type Mock struct {
	mu sync.Mutex

	// Responses are consumed one per GetCompletion/GetCompletionStream call.
	Responses []Message

	// Handler, when set, computes the response for calls past the script.
	Handler func(req Request) Message

	// Calls records every request received, in order.
	Calls []Request
}

var _ LLM = (*Mock)(nil)

// NewMock returns a mock that echoes user messages.
func NewMock() *Mock { return &Mock{} }

// NewMockScript returns a mock that replies with the given contents in order.
func NewMockScript(contents ...string) *Mock {
	m := &Mock{}
	for _, c := range contents {
		m.Responses = append(m.Responses, Message{Role: RoleAssistant, Content: c})
	}
	return m
}

// QueueFunctionCall appends a scripted tool-call response.
func (m *Mock) QueueFunctionCall(name, arguments string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, Message{
		Role:         RoleAssistant,
		FunctionCall: &FunctionCall{Name: name, Arguments: arguments},
	})
}

func (m *Mock) next(req Request) Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp
	}
	if m.Handler != nil {
		return m.Handler(req)
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return Message{Role: RoleAssistant, Content: req.Messages[i].Content}
		}
	}
	return Message{Role: RoleAssistant, Content: "mock response"}
}

// GetCompletion implements LLM.
func (m *Mock) GetCompletion(_ context.Context, req Request) (Message, error) {
	return m.next(req), nil
}

// GetCompletionStream implements LLM. The scripted content is split on
// whitespace so consumers see multiple chunks.
func (m *Mock) GetCompletionStream(ctx context.Context, req Request) (<-chan string, func() error, error) {
	resp := m.next(req)
	chunks := make(chan string)
	var streamErr error
	go func() {
		defer close(chunks)
		words := strings.SplitAfter(resp.Content, " ")
		for _, w := range words {
			if w == "" {
				continue
			}
			select {
			case chunks <- w:
			case <-ctx.Done():
				streamErr = ctx.Err()
				return
			}
		}
		select {
		case chunks <- EndOfStream:
		case <-ctx.Done():
			streamErr = ctx.Err()
		}
	}()
	return chunks, func() error { return streamErr }, nil
}
