package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrInvalidDomain", ErrInvalidDomain},
		{"ErrDuplicateChunkID", ErrDuplicateChunkID},
		{"ErrCollectionNotFound", ErrCollectionNotFound},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrVisionUnavailable", ErrVisionUnavailable},
		{"ErrRegistryUnavailable", ErrRegistryUnavailable},
		{"ErrUnknownTool", ErrUnknownTool},
		{"ErrMemoryDisabled", ErrMemoryDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrDuplicateChunkID_Wrapped(t *testing.T) {
	err := fmt.Errorf("add to biology_papers: %w", ErrDuplicateChunkID)

	assert.True(t, errors.Is(err, ErrDuplicateChunkID))
	assert.False(t, errors.Is(err, ErrNotFound))
}
