package driven

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// PostProcessor is one stage of the text pipeline that turns a paper's
// page text into chunks.
type PostProcessor interface {
	// Name is the key the stage is registered and configured under.
	Name() string

	// Process receives the chunks produced by earlier stages, nil for the
	// first stage, and returns the chunks handed to the next one.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline produces the text chunks of a paper.
// Figure and equation chunks are built separately during ingestion.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
