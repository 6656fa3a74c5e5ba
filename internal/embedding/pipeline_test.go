package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/generation"
	"github.com/phrazzld/gitsong/internal/platform/logger"
)

// fakeEmbedder embeds text as letter frequencies unless EmbedFn is set.
type fakeEmbedder struct {
	EmbedFn func(ctx context.Context, texts []string, task generation.EmbedTask) ([][]float32, error)

	mu       sync.Mutex
	calls    int
	tasks    []generation.EmbedTask
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, task generation.EmbedTask) ([][]float32, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls++
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()

	if f.EmbedFn != nil {
		return f.EmbedFn(ctx, texts, task)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = letterVector(text)
	}
	return out, nil
}

func letterVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func TestPipeline_IndexAndQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	emb := &fakeEmbedder{}
	buf, log := logger.NewTestLogger(t)
	p := NewPipeline(store, emb, PipelineConfig{EmbeddingModel: "m", MaxChunkTokens: 2, BatchSize: 2, Concurrency: 2}, log)

	docs := []Document{
		{ID: "aaa", Text: strings.Repeat("a", 20), Metadata: map[string]string{"repo": "o/r"}},
		{ID: "bbb", Text: strings.Repeat("b", 16)},
		{ID: "mix", Text: "abababab"},
	}
	report, err := p.Index(ctx, "commits", docs)
	require.NoError(t, err)
	assert.Equal(t, IndexReport{Documents: 3, Chunks: 3 + 2 + 1}, report)
	assert.Equal(t, 6, store.Count("commits"))
	logger.AssertLogContains(t, buf, "indexed documents")

	matches, err := p.Query(ctx, "commits", "aaaa", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, []string{"aaa#0", "aaa#1", "aaa#2"}, []string{matches[0].ID, matches[1].ID, matches[2].ID})
	assert.Equal(t, "aaa", matches[0].Metadata[MetaSourceID])
	assert.Equal(t, "o/r", matches[0].Metadata["repo"])
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
	assert.Equal(t, generation.EmbedTaskQuery, emb.tasks[len(emb.tasks)-1])
	assert.LessOrEqual(t, emb.peak.Load(), int32(2))
}

func TestPipeline_ReindexOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	p := NewPipeline(store, &fakeEmbedder{}, PipelineConfig{EmbeddingModel: "m", MaxChunkTokens: 2}, logger.Discard())

	doc := []Document{{ID: "d", Text: strings.Repeat("z", 24)}}
	_, err := p.Index(ctx, "c", doc)
	require.NoError(t, err)
	_, err = p.Index(ctx, "c", doc)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Count("c"))
}

func TestPipeline_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("embedding backend down")

	t.Run("embed failure", func(t *testing.T) {
		t.Parallel()
		emb := &fakeEmbedder{EmbedFn: func(context.Context, []string, generation.EmbedTask) ([][]float32, error) {
			return nil, boom
		}}
		store := NewMemoryStore()
		p := NewPipeline(store, emb, PipelineConfig{EmbeddingModel: "m", MaxChunkTokens: 1, BatchSize: 1, Concurrency: 4}, logger.Discard())
		_, err := p.Index(ctx, "c", []Document{{ID: "d", Text: strings.Repeat("q", 40)}})
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, store.Count("c"))
	})

	t.Run("vector count mismatch", func(t *testing.T) {
		t.Parallel()
		emb := &fakeEmbedder{EmbedFn: func(context.Context, []string, generation.EmbedTask) ([][]float32, error) {
			return [][]float32{}, nil
		}}
		p := NewPipeline(NewMemoryStore(), emb, PipelineConfig{EmbeddingModel: "m"}, logger.Discard())
		_, err := p.Index(ctx, "c", []Document{{ID: "d", Text: "text"}})
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
		_, err = p.Query(ctx, "c", "text", 1)
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})

	t.Run("model mismatch", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStore()
		require.NoError(t, store.EnsureCollection(ctx, "c", "other"))
		p := NewPipeline(store, &fakeEmbedder{}, PipelineConfig{EmbeddingModel: "m"}, logger.Discard())
		_, err := p.Index(ctx, "c", nil)
		assert.ErrorIs(t, err, ErrCollectionMismatch)
	})

	t.Run("empty query", func(t *testing.T) {
		t.Parallel()
		p := NewPipeline(NewMemoryStore(), &fakeEmbedder{}, PipelineConfig{EmbeddingModel: "m"}, logger.Discard())
		_, err := p.Query(ctx, "c", "  ", 1)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown collection", func(t *testing.T) {
		t.Parallel()
		p := NewPipeline(NewMemoryStore(), &fakeEmbedder{}, PipelineConfig{EmbeddingModel: "m"}, logger.Discard())
		_, err := p.Query(ctx, "nope", "text", 1)
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})
}
