// Package metadata stamps per-chunk sequence metadata.
package metadata

import (
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// Processor records each chunk's index, the document's chunk count and the
// chunk length in characters.
type Processor struct{}

// New creates a chunk metadata processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunk_metadata"
}

// Process stamps metadata on the chunks in place.
func (p *Processor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any)
		}
		chunks[i].Metadata[domain.MetaChunkIndex] = chunks[i].Position
		chunks[i].Metadata[domain.MetaTotalChunks] = len(chunks)
		chunks[i].Metadata[domain.MetaCharCount] = utf8.RuneCountInString(chunks[i].Text)
	}
	return chunks, nil
}
