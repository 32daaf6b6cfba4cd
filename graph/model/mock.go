package model

import (
	"context"
	"sync"
)

// MockChatModel is a deterministic ChatModel for tests and offline runs.
//
//	mock := &MockChatModel{Responses: []ChatOut{{Text: "brief"}, {Text: "draft"}}}
//
// Responses are served in order and the last one repeats. Respond, when set,
// computes each answer from the messages instead. Err fails every call.
type MockChatModel struct {
	Responses []ChatOut
	Respond   func(messages []Message) (ChatOut, error)
	Err       error

	// Calls records every invocation, failed ones included.
	Calls []MockChatCall

	mu   sync.Mutex
	next int
}

// MockChatCall is one recorded invocation.
type MockChatCall struct {
	Messages []Message
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return ChatOut{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{Messages: messages})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if m.Respond != nil {
		return m.Respond(messages)
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	out := m.Responses[min(m.next, len(m.Responses)-1)]
	if m.next < len(m.Responses) {
		m.next++
	}
	return out, nil
}

// Reset forgets recorded calls and rewinds Responses.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.next = 0
}

// CallCount returns the number of recorded calls.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
