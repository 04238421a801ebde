package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsCmd_NotConfigured(t *testing.T) {
	for _, args := range [][]string{
		{"settings"},
		{"settings", "show"},
		{"settings", "embedding"},
		{"settings", "preset", "cost"},
	} {
		_, err := executeCommand(t, Services{}, "", args...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "settings service not configured")
	}
}

func TestSettingsShow(t *testing.T) {
	settings := newMockSettingsService()
	settings.settings.LLM.Provider = domain.AIProviderOpenAI
	settings.settings.LLM.Model = "gpt-4o-mini"
	settings.settings.LLM.APIKey = "sk-abcdefghijklmnop"

	out, err := executeCommand(t, Services{Settings: settings}, "", "settings", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "Provider: Feature hashing (offline)")
	assert.Contains(t, out, "Dimensions: 384")
	assert.Contains(t, out, "API Key: sk-a...mnop")
	assert.Contains(t, out, "[Memory]")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_ValidationWarning(t *testing.T) {
	settings := newMockSettingsService()
	settings.validateErr = errors.New("LLM provider not configured")

	out, err := executeCommand(t, Services{Settings: settings}, "", "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: LLM provider not configured")
}

func TestSettingsPreset(t *testing.T) {
	tests := []struct {
		arg     string
		want    domain.MemoryPreset
		wantErr bool
	}{
		{arg: "default", want: domain.MemoryPresetDefault},
		{arg: "COST", want: domain.MemoryPresetCost},
		{arg: "quality", want: domain.MemoryPresetQuality},
		{arg: "turbo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			settings := newMockSettingsService()
			out, err := executeCommand(t, Services{Settings: settings}, "", "settings", "preset", tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown preset")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, settings.preset)
			assert.Contains(t, out, "Memory preset applied: "+string(tt.want))
		})
	}
}

func TestSettingsEmbedding_LocalProvider(t *testing.T) {
	settings := newMockSettingsService()

	// Choice 1 is the hash embedder, and an empty model keeps the default.
	out, err := executeCommand(t, Services{Settings: settings}, "1\n\n", "settings", "embedding")
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderHash, settings.provider)
	assert.Equal(t, "hash-384", settings.model)
	assert.Empty(t, settings.apiKey)
	assert.Contains(t, out, "Validating configuration... OK")
}

func TestSettingsLLM_ValidationFails(t *testing.T) {
	settings := newMockSettingsService()
	settings.pingErr = errors.New("connection refused")

	out, err := executeCommand(t, Services{Settings: settings}, "1\nllama3.1\n", "settings", "llm")
	require.Error(t, err)

	assert.Equal(t, domain.AIProviderOllama, settings.provider)
	assert.Equal(t, "llama3.1", settings.model)
	assert.Contains(t, out, "FAILED: connection refused")
	assert.Contains(t, err.Error(), "LLM configuration validation failed")
}
