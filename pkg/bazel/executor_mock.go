package bazel

import (
	"context"
	"fmt"
	"sync"
)

// MockExecutor is a mock implementation of Executor for testing.
// Query responses are keyed by query expression; other commands by their first argument.
type MockExecutor struct {
	Responses map[string][]byte
	Errors    map[string]error
	MockError error

	mu    sync.Mutex
	calls [][]string
}

func (m *MockExecutor) Run(ctx context.Context, workspace string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.mu.Unlock()

	if m.MockError != nil {
		return nil, m.MockError
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments")
	}
	key := args[0]
	if key == "query" && len(args) > 1 {
		key = args[1]
	}
	if err, ok := m.Errors[key]; ok {
		return nil, err
	}
	if out, ok := m.Responses[key]; ok {
		return out, nil
	}
	return nil, fmt.Errorf("%w: unexpected command %q", ErrQueryFailed, key)
}

// Calls returns the argument lists of every Run call so far
func (m *MockExecutor) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}
