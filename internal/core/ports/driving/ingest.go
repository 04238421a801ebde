package driving

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// IngestService turns domain folders of PDFs into vector collections.
type IngestService interface {
	// Ingest processes every domain in opts, skipping documents whose
	// filename is already present in the target collection. Per-document
	// failures are counted in the summary, not returned.
	Ingest(ctx context.Context, opts domain.IngestOptions) (*domain.IngestSummary, error)

	// IngestDocument processes one PDF into a domain collection and
	// returns the number of chunks added.
	IngestDocument(ctx context.Context, path string, d domain.KnowledgeDomain, multimodal bool) (int, error)

	// AlreadyIngested returns the filenames present in a domain collection.
	AlreadyIngested(ctx context.Context, d domain.KnowledgeDomain) (map[string]struct{}, error)

	// Stats reports per-domain collection counts without ingesting.
	Stats(ctx context.Context) ([]domain.CollectionStats, error)
}
