package tool

import (
	"context"
	"sync"
)

// MockTool is a scripted Tool for tests.
//
//	mock := &MockTool{ToolName: "weather", Err: errors.New("lookup failed")}
type MockTool struct {
	ToolName string

	// Responses are returned in order; the last one repeats.
	Responses []map[string]interface{}

	// Err, if set, is returned instead of a response.
	Err error

	// Calls records every input received, including failed calls.
	Calls []map[string]interface{}

	mu   sync.Mutex
	next int
}

func (m *MockTool) Name() string { return m.ToolName }

func (m *MockTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, input)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return map[string]interface{}{}, nil
	}

	out := m.Responses[min(m.next, len(m.Responses)-1)]
	if m.next < len(m.Responses) {
		m.next++
	}
	return out, nil
}

// CallCount returns the number of calls so far.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
