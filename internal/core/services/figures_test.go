package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
)

func newTestAnalyzer(vision *mockVision) *FigureAnalyzer {
	a := NewFigureAnalyzer(vision)
	a.SetPromptStore(newMockPromptStore())
	return a
}

func TestFigureAnalyzer_Analyze(t *testing.T) {
	vision := reply(`Here is the analysis:
{"figure_type": "XY line plot", "description": "Conductance saturates at low concentration.",
 "key_insights": ["plateau below 1 mM"], "variables": ["c (mM)", "G (nS)"], "data_extractable": "yes"}`)

	res := newTestAnalyzer(vision).Analyze(context.Background(), pngBytes(60, 60), "image/png", "Figure 2: Conductance")
	require.True(t, res.IsOk())
	assert.Equal(t, domain.FigureAnalysis{
		FigureType:      "XY line plot",
		Description:     "Conductance saturates at low concentration.",
		KeyInsights:     domain.TextList{"plateau below 1 mM"},
		Variables:       `["c (mM)","G (nS)"]`,
		DataExtractable: true,
	}, res.Value)
	assert.True(t, res.Value.IsPlot())
	assert.Equal(t, []string{"Describe this figure.\n\nFigure caption: Figure 2: Conductance"}, vision.calls())
}

func TestFigureAnalyzer_Analyze_Fallbacks(t *testing.T) {
	tests := []struct {
		name       string
		analyzer   *FigureAnalyzer
		want       domain.FigureAnalysis
		wantReason string
	}{
		{
			name:       "prose answer",
			analyzer:   newTestAnalyzer(reply("A schematic of the nanofluidic cell.")),
			want:       domain.FigureAnalysis{FigureType: domain.UnknownValue, Description: "A schematic of the nanofluidic cell."},
			wantReason: "figure analysis was not JSON",
		},
		{
			name: "vision error",
			analyzer: newTestAnalyzer(&mockVision{respond: func(string) (string, error) {
				return "", errors.New("quota exceeded")
			}}),
			want:       domain.FigureAnalysis{FigureType: domain.UnknownValue, Description: "Analysis failed: quota exceeded"},
			wantReason: "quota exceeded",
		},
		{
			name:       "no vision",
			analyzer:   NewFigureAnalyzer(nil),
			want:       domain.FigureAnalysis{FigureType: domain.UnknownValue, Description: "Analysis failed: " + domain.ErrVisionUnavailable.Error()},
			wantReason: domain.ErrVisionUnavailable.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.analyzer.Analyze(context.Background(), pngBytes(60, 60), "image/png", "")
			assert.False(t, res.IsOk())
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.want, res.Value)
		})
	}
}

func TestFigureAnalyzer_Analyze_NoPromptStore(t *testing.T) {
	res := NewFigureAnalyzer(reply("{}")).Analyze(context.Background(), nil, "image/png", "")
	assert.False(t, res.IsOk())
	assert.Contains(t, res.Reason, "no prompt store configured")
}

func TestFigureAnalyzer_PlotData(t *testing.T) {
	vision := reply(`{"axis_info": "x: concentration (mM), y: conductance (nS)", "data_points": [[0.1, 2], [1, 2.4]], "trends": "plateau"}`)

	res := newTestAnalyzer(vision).PlotData(context.Background(), pngBytes(60, 60), "image/png")
	require.True(t, res.IsOk())
	assert.Equal(t, domain.PlotData{
		AxisInfo:   "x: concentration (mM), y: conductance (nS)",
		DataPoints: "[[0.1,2],[1,2.4]]",
		Trends:     "plateau",
	}, res.Value)
	assert.Equal(t, []string{"Extract the plot data."}, vision.calls())

	res = newTestAnalyzer(reply("no data")).PlotData(context.Background(), nil, "image/png")
	assert.False(t, res.IsOk())
	assert.Equal(t, "plot data was not JSON", res.Reason)
	assert.Equal(t, domain.PlotData{}, res.Value)

	res = NewFigureAnalyzer(nil).PlotData(context.Background(), nil, "image/png")
	assert.Equal(t, domain.ErrVisionUnavailable.Error(), res.Reason)
}
