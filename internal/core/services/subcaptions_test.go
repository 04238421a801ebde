package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSubCaptions(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		labels  []string
		want    map[string]string
	}{
		{
			name:    "parenthesised labels",
			caption: "Figure 2. (a) Conductance versus concentration. (b) Selectivity map (c) Schematic of the pore",
			labels:  []string{"a", "b", "c"},
			want: map[string]string{
				"a": "Conductance versus concentration.",
				"b": "Selectivity map",
				"c": "Schematic of the pore",
			},
		},
		{
			name:    "dotted labels",
			caption: "a. Ionic current traces b. Noise spectra",
			labels:  []string{"a", "b"},
			want:    map[string]string{"a": "Ionic current traces", "b": "Noise spectra"},
		},
		{
			name:    "colon labels",
			caption: "A: Device layout; B: Current response",
			labels:  []string{"A", "B"},
			want:    map[string]string{"A": "Device layout;", "B": "Current response"},
		},
		{
			name:    "panel prefix",
			caption: "Panel a shows the device. Panel b shows the data.",
			labels:  []string{"a", "b"},
			want:    map[string]string{"a": "shows the device", "b": "shows the data"},
		},
		{
			name:    "bare label",
			caption: "x increasing flux. y decreasing",
			labels:  []string{"y"},
			want:    map[string]string{"y": "decreasing"},
		},
		{
			name:    "unmatched label is absent",
			caption: "(a) Only one panel described",
			labels:  []string{"a", "z", ""},
			want:    map[string]string{"a": "Only one panel described"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchSubCaptions(tt.caption, tt.labels))
		})
	}
}

func TestMatchSubCaptions_Empty(t *testing.T) {
	assert.Empty(t, MatchSubCaptions("", []string{"a"}))
	assert.Empty(t, MatchSubCaptions("(a) text", nil))
}
