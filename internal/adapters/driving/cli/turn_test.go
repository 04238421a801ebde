package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
)

func TestTurnCmd_NotConfigured(t *testing.T) {
	_, err := executeCommand(t, Services{}, "", "turn", "--agent", "A", "--domain", "biology", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn service not configured")
}

func TestTurnCmd_PrintsValidatedUtterance(t *testing.T) {
	turn := &mockTurnService{result: &driving.TurnResult{
		Text:       "According to the retrieved papers, aquaporins pass water in single file.",
		ToolCalls:  []string{"query_knowledge_base", "recall_memory"},
		Validation: domain.ValidationOutcome{IsValid: true, Class: domain.ResponseSubstantive},
		Retries:    1,
	}}

	out, err := executeCommand(t, Services{Turn: turn}, "",
		"turn", "--agent", "Dr. Rivera", "--domain", "biology", "--round", "3", "How", "do", "aquaporins", "work?")
	require.NoError(t, err)

	assert.Equal(t, "How do aquaporins work?", turn.request.Prompt)
	assert.Equal(t, "Dr. Rivera", turn.request.Agent)
	assert.Equal(t, 3, turn.request.Round)
	assert.Contains(t, out, "aquaporins pass water in single file")
	assert.Contains(t, out, "Tools: query_knowledge_base, recall_memory | Class: substantive | Retries: 1")
	assert.Contains(t, out, "Grounded:")
}

func TestTurnCmd_NoTools(t *testing.T) {
	turn := &mockTurnService{result: &driving.TurnResult{
		Text:       "I agree.",
		Validation: domain.ValidationOutcome{IsValid: true, Class: domain.ResponseSimple},
	}}

	out, err := executeCommand(t, Services{Turn: turn}, "", "turn", "--agent", "A", "--domain", "nanofluidics", "Thoughts?")
	require.NoError(t, err)
	assert.Contains(t, out, "Tools: none | Class: simple | Retries: 0")
}

func TestTurnCmd_Failure(t *testing.T) {
	turn := &mockTurnService{err: errors.New("llm unavailable")}

	_, err := executeCommand(t, Services{Turn: turn}, "", "turn", "--agent", "A", "--domain", "biology", "Thoughts?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn failed: llm unavailable")
}
