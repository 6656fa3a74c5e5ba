package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/generation"
)

// Metadata keys written for every chunk.
const (
	MetaSourceID   = "source_id"
	MetaChunkIndex = "chunk_index"
	MetaByteStart  = "byte_start"
	MetaByteEnd    = "byte_end"
)

const defaultBatchSize = 16

// Document is a unit of source text to index.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// IndexReport summarises one Index call.
type IndexReport struct {
	Documents int
	Chunks    int
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// EmbeddingModel names the model that produced the vectors; a collection
	// is bound to one model.
	EmbeddingModel string
	// MaxChunkTokens bounds chunk size.
	MaxChunkTokens int
	// Concurrency bounds parallel embedding batches.
	Concurrency int
	// BatchSize is the number of chunks per embedding request.
	BatchSize int
}

// Pipeline chunks, embeds and stores documents, and answers similarity
// queries against the stored vectors.
type Pipeline struct {
	store       VectorStore
	embedder    generation.Embedder
	chunker     *Chunker
	model       string
	concurrency int
	batchSize   int
	logger      *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(store VectorStore, embedder generation.Embedder, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Pipeline{
		store:       store,
		embedder:    embedder,
		chunker:     NewChunker(cfg.MaxChunkTokens),
		model:       cfg.EmbeddingModel,
		concurrency: cfg.Concurrency,
		batchSize:   cfg.BatchSize,
		logger:      logger.With("component", "embedding_pipeline"),
	}
}

// Index ensures the collection exists, then chunks, embeds and upserts every
// document. Re-indexing a document overwrites its chunks.
func (p *Pipeline) Index(ctx context.Context, collection string, docs []Document) (IndexReport, error) {
	report := IndexReport{Documents: len(docs)}

	if err := p.store.EnsureCollection(ctx, collection, p.model); err != nil {
		return report, fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	var chunks []domain.ContentChunk
	var meta []map[string]string
	for _, d := range docs {
		for _, c := range p.chunker.Chunk(d.ID, d.Text) {
			chunks = append(chunks, c)
			meta = append(meta, chunkMetadata(d, c))
		}
	}
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		return report, nil
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for start := 0; start < len(chunks); start += p.batchSize {
		end := min(start+p.batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}
			vs, err := p.embedder.Embed(gctx, texts, generation.EmbedTaskDocument)
			if err != nil {
				return err
			}
			if len(vs) != len(texts) {
				return fmt.Errorf("%w: expected %d vectors, got %d",
					generation.ErrInvalidResponse, len(texts), len(vs))
			}
			copy(vectors[start:end], vs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("failed to embed chunks: %w", err)
	}

	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{
			ID:       c.ID(),
			Vector:   vectors[i],
			Document: c.Text,
			Metadata: meta[i],
		}
	}
	if err := p.store.Upsert(ctx, collection, records); err != nil {
		return report, fmt.Errorf("failed to upsert chunks into %s: %w", collection, err)
	}

	p.logger.InfoContext(ctx, "indexed documents",
		"collection", collection,
		"documents", report.Documents,
		"chunks", report.Chunks)
	return report, nil
}

// Query embeds text and returns the k most similar chunks, best first.
func (p *Pipeline) Query(ctx context.Context, collection, text string, k int) ([]Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", domain.ErrValidation)
	}

	vs, err := p.embedder.Embed(ctx, []string{text}, generation.EmbedTaskQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", generation.ErrInvalidResponse, len(vs))
	}

	matches, err := p.store.Query(ctx, collection, vs[0], k)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return matches, nil
}

func chunkMetadata(d Document, c domain.ContentChunk) map[string]string {
	m := make(map[string]string, len(d.Metadata)+4)
	for k, v := range d.Metadata {
		m[k] = v
	}
	m[MetaSourceID] = c.SourceID
	m[MetaChunkIndex] = strconv.Itoa(c.Index)
	m[MetaByteStart] = strconv.Itoa(c.ByteStart)
	m[MetaByteEnd] = strconv.Itoa(c.ByteEnd)
	return m
}
