package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/postprocessors/chunker"
)

// registryMockProcessor is a simple mock for testing registry functionality.
type registryMockProcessor struct {
	name string
}

func (m *registryMockProcessor) Name() string { return m.name }
func (m *registryMockProcessor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	return chunks, nil
}

func TestRegistry_BuildWithConfig(t *testing.T) {
	r := NewRegistry()
	r.Register("test", func(cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &registryMockProcessor{name: name}, nil
	})

	require.True(t, r.Has("test"))
	proc, err := r.Build("test", map[string]any{"name": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", proc.Name())
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	_, err := NewRegistry().Build("nonexistent", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown processor")
}

func TestRegistry_Build_BuilderError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("bad config")
	r.Register("broken", func(_ map[string]any) (driven.PostProcessor, error) {
		return nil, boom
	})

	_, err := r.Build("broken", nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Names())

	RegisterDefaults(r)
	assert.Equal(t, []string{"chunk_metadata", "chunker"}, r.Names())
}

func TestBuildChunker(t *testing.T) {
	t.Run("with config", func(t *testing.T) {
		proc, err := buildChunker(map[string]any{"chunk_size": int64(300), "overlap": float64(30)})
		require.NoError(t, err)
		c := proc.(*chunker.Processor)
		for _, piece := range c.Split(longText(900)) {
			assert.LessOrEqual(t, len(piece), 300)
		}
	})

	t.Run("nil config keeps defaults", func(t *testing.T) {
		proc, err := buildChunker(nil)
		require.NoError(t, err)
		assert.Equal(t, "chunker", proc.Name())
		assert.Len(t, proc.(*chunker.Processor).Split(longText(900)), 1)
	})
}

func longText(n int) string {
	b := make([]byte, 0, n)
	for len(b) < n {
		b = append(b, "membrane "...)
	}
	return string(b[:n])
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      map[string]any
		key      string
		expected int
		ok       bool
	}{
		{"int value", map[string]any{"size": 100}, "size", 100, true},
		{"int64 value", map[string]any{"size": int64(200)}, "size", 200, true},
		{"float64 value", map[string]any{"size": float64(300)}, "size", 300, true},
		{"string value", map[string]any{"size": "400"}, "size", 0, false},
		{"missing key", map[string]any{"other": 100}, "size", 0, false},
		{"nil config", nil, "size", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := getIntFromConfig(tt.cfg, tt.key)
			assert.Equal(t, tt.expected, result)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
