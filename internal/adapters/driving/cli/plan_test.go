package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
)

func TestPlanCmd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		services Services
		args     []string
		wantErr  string
	}{
		{
			name:    "not configured",
			args:    []string{"plan", "--agent", "A", "--domain", "biology"},
			wantErr: "planning service not configured",
		},
		{
			name:     "missing agent",
			services: Services{Planning: &mockPlanningService{}},
			args:     []string{"plan", "--domain", "biology"},
			wantErr:  "--agent is required",
		},
		{
			name:     "missing domain",
			services: Services{Planning: &mockPlanningService{}},
			args:     []string{"plan", "--agent", "A"},
			wantErr:  "--domain is required",
		},
		{
			name:     "all rejected",
			services: Services{Planning: &mockPlanningService{}},
			args:     []string{"plan", "--agent", "A", "--domain", "all"},
			wantErr:  "an agent belongs to one domain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.services, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPlanCmd_PrintsPlan(t *testing.T) {
	planning := &mockPlanningService{result: domain.Ok(domain.ContributionPlan{
		MainPoints: []string{"EDL overlap"},
		Priority:   "high",
	})}

	out, err := executeCommand(t, Services{Planning: planning}, "",
		"plan", "--agent", "Dr. Chen", "--expertise", "EDL theory", "--domain", "electrochemistry",
		"--round", "2", "--agenda", "Ion selectivity", "-q", "How does pore size matter?", "-q", "What about pH?")
	require.NoError(t, err)

	assert.Equal(t, driving.PlanRequest{
		Agent:     "Dr. Chen",
		Expertise: "EDL theory",
		Round:     2,
		Agenda:    "Ion selectivity",
		Questions: []string{"How does pore size matter?", "What about pH?"},
	}, planning.request)
	assert.Equal(t, domain.DomainElectrochemistry, planning.session.Domain)
	assert.NotContains(t, out, "fallback")
	assert.Contains(t, out, `"main_points": [`)
	assert.Contains(t, out, `"priority": "high"`)
}

func TestPlanCmd_ReportsFallback(t *testing.T) {
	planning := &mockPlanningService{result: domain.Fallback(domain.DefaultPlan([]string{"q1"}), "no JSON object in response")}

	out, err := executeCommand(t, Services{Planning: planning}, "",
		"plan", "--agent", "A", "--domain", "biology", "-q", "q1")
	require.NoError(t, err)

	assert.Contains(t, out, "Plan built by fallback: no JSON object in response")
	assert.Equal(t, 1, planning.request.Round)
}
