package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/gitsong/internal/generation"
)

// MockEmbedder implements generation.Embedder for testing. Without EmbedFn
// every text embeds to Dim copies of its length.
type MockEmbedder struct {
	EmbedFn func(ctx context.Context, texts []string, task generation.EmbedTask) ([][]float32, error)
	Dim     int

	mu    sync.Mutex
	calls int
}

var _ generation.Embedder = (*MockEmbedder)(nil)

// Embed implements generation.Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string, task generation.EmbedTask) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.EmbedFn != nil {
		return m.EmbedFn(ctx, texts, task)
	}
	dim := m.Dim
	if dim <= 0 {
		dim = 4
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(len(t) + j)
		}
		out[i] = v
	}
	return out, nil
}

// Calls returns the number of Embed calls.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
