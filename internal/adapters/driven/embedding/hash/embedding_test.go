package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbeddingService_Embed(t *testing.T) {
	s := NewEmbeddingService(0)
	ctx := context.Background()

	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.Equal(t, "hash-384", s.ModelName())

	a, err := s.Embed(ctx, "Ion selectivity in nanopores")
	require.NoError(t, err)
	require.Len(t, a, 384)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	again, err := s.Embed(ctx, "ion SELECTIVITY, in nanopores!")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	related, err := s.Embed(ctx, "selectivity of nanopores to ions")
	require.NoError(t, err)
	unrelated, err := s.Embed(ctx, "graphene supercapacitor electrodes")
	require.NoError(t, err)
	assert.Greater(t, cosine(a, related), cosine(a, unrelated))
}

func TestEmbeddingService_Embed_NoWords(t *testing.T) {
	s := NewEmbeddingService(16)
	v, err := s.Embed(context.Background(), " -- ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v)
	assert.Equal(t, "hash-16", s.ModelName())
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	s := NewEmbeddingService(64)
	ctx := context.Background()
	texts := []string{"debye length", "surface charge"}

	batch, err := s.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	for i, text := range texts {
		single, err := s.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.EmbedBatch(cancelled, texts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.Close())
}
