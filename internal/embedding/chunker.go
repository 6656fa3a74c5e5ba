package embedding

import (
	"unicode/utf8"

	"github.com/phrazzld/gitsong/internal/domain"
)

// DefaultCharsPerToken approximates how many characters make one token.
const DefaultCharsPerToken = 4

// DefaultMaxChunkTokens keeps chunks well inside embedding model input limits.
const DefaultMaxChunkTokens = 512

// Chunker splits text into consecutive, non-overlapping windows of at most
// MaxTokens*CharsPerToken runes.
type Chunker struct {
	MaxTokens     int
	CharsPerToken int
}

// NewChunker returns a Chunker with the default character ratio.
func NewChunker(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	return &Chunker{MaxTokens: maxTokens, CharsPerToken: DefaultCharsPerToken}
}

// MaxChunkRunes returns the largest chunk size in runes.
func (c *Chunker) MaxChunkRunes() int {
	cpt := c.CharsPerToken
	if cpt <= 0 {
		cpt = DefaultCharsPerToken
	}
	size := c.MaxTokens * cpt
	if size <= 0 {
		size = DefaultMaxChunkTokens * DefaultCharsPerToken
	}
	return size
}

// Chunk splits text into ceil(runes/MaxChunkRunes) chunks in source order.
// Concatenating the chunk texts yields text exactly. Empty text yields no
// chunks.
func (c *Chunker) Chunk(sourceID, text string) []domain.ContentChunk {
	size := c.MaxChunkRunes()
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return nil
	}

	chunks := make([]domain.ContentChunk, 0, (total+size-1)/size)
	start, runes := 0, 0
	for i := range text {
		if runes == size {
			chunks = append(chunks, domain.ContentChunk{
				SourceID:  sourceID,
				Index:     len(chunks),
				Text:      text[start:i],
				ByteStart: start,
				ByteEnd:   i,
			})
			start, runes = i, 0
		}
		runes++
	}
	chunks = append(chunks, domain.ContentChunk{
		SourceID:  sourceID,
		Index:     len(chunks),
		Text:      text[start:],
		ByteStart: start,
		ByteEnd:   len(text),
	})
	return chunks
}
