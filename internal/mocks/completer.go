package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/gitsong/internal/generation"
)

// MockCompleter implements generation.Completer for testing.
type MockCompleter struct {
	// CompleteFn allows test cases to mock the Complete behavior.
	CompleteFn func(ctx context.Context, p generation.Prompt, opts generation.Options) (string, error)

	// Default response values
	Text string
	Err  error

	mu      sync.Mutex
	prompts []generation.Prompt
	options []generation.Options
}

var _ generation.Completer = (*MockCompleter)(nil)

// Complete implements generation.Completer.
func (m *MockCompleter) Complete(ctx context.Context, p generation.Prompt, opts generation.Options) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	m.options = append(m.options, opts)
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, p, opts)
	}
	return m.Text, m.Err
}

// Calls returns the number of Complete calls.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns every prompt received, in call order.
func (m *MockCompleter) Prompts() []generation.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Prompt(nil), m.prompts...)
}

// Options returns every option set received, in call order.
func (m *MockCompleter) Options() []generation.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Options(nil), m.options...)
}
