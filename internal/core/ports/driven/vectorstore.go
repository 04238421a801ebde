package driven

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// Collection describes a named set of records in a VectorStore.
type Collection struct {
	Name     string
	Metadata map[string]any
}

// Filter is an equality filter over record metadata. All keys must match.
type Filter map[string]any

// VectorStore persists (embedding, text, metadata) records partitioned into
// named collections and answers cosine nearest-neighbour queries.
//
// A store is a single-writer resource: callers serialise writes.
type VectorStore interface {
	// EnsureCollection creates the collection if missing. It is idempotent
	// and never replaces the metadata of an existing collection.
	EnsureCollection(ctx context.Context, name string, metadata map[string]any) (*Collection, error)

	// Collections lists every collection.
	Collections(ctx context.Context) ([]Collection, error)

	// Count returns the number of records in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// DistinctValues returns the distinct string values of one metadata key.
	DistinctValues(ctx context.Context, collection, key string) ([]string, error)

	// Add appends records. Returns domain.ErrDuplicateChunkID if any id
	// already exists; in that case nothing is written.
	Add(ctx context.Context, collection string, chunks []domain.Chunk) error

	// Query returns up to topK records closest to the embedding by cosine
	// distance, restricted by filter, nearest first.
	Query(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]domain.RetrievedChunk, error)

	// Get returns every record matching the filter without embeddings.
	Get(ctx context.Context, collection string, filter Filter) ([]domain.Chunk, error)

	// UpdateMetadata merges patch into the metadata of one record.
	// Returns domain.ErrNotFound if the id does not exist.
	UpdateMetadata(ctx context.Context, collection, id string, patch map[string]any) error

	// Close releases resources.
	Close() error
}
