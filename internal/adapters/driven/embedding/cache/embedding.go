// Package cache wraps an embedding service with an in-process LRU cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultSize is the number of vectors kept when no size is given.
const DefaultSize = 4096

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int
	Misses int
	Size   int
}

// EmbeddingService serves repeated texts from memory and delegates the rest.
// Keys include the model name so a cache is never shared across models.
type EmbeddingService struct {
	inner driven.EmbeddingService
	cache *lru.Cache[string, []float32]

	mu     sync.Mutex
	hits   int
	misses int
}

// New wraps inner with a cache of the given size.
func New(inner driven.EmbeddingService, size int) (*EmbeddingService, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedding cache: inner service is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &EmbeddingService{inner: inner, cache: c}, nil
}

func (s *EmbeddingService) key(text string) string {
	sum := sha256.Sum256([]byte(s.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (s *EmbeddingService) lookup(text string) ([]float32, bool) {
	v, ok := s.cache.Get(s.key(text))
	s.mu.Lock()
	if ok {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return clone(v), true
}

func (s *EmbeddingService) store(text string, vec []float32) {
	s.cache.Add(s.key(text), clone(vec))
}

// Embed returns the cached vector or asks the inner service.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.lookup(text); ok {
		return v, nil
	}
	v, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.store(text, v)
	return v, nil
}

// EmbedBatch sends only the uncached texts to the inner service, in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var positions []int
	for i, t := range texts {
		if v, ok := s.lookup(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		positions = append(positions, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := s.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedding cache: got %d vectors for %d inputs", len(vecs), len(missing))
	}
	for j, v := range vecs {
		out[positions[j]] = v
		s.store(missing[j], v)
	}
	return out, nil
}

// Stats returns hit and miss counters.
func (s *EmbeddingService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Hits: s.hits, Misses: s.misses, Size: s.cache.Len()}
}

// Dimensions returns the inner service's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the inner service's model name.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping delegates to the inner service.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close purges the cache and closes the inner service.
func (s *EmbeddingService) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
