package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
)

var extractReq = ExtractRequest{Domain: domain.DomainNanofluidics, Stem: "paper", Multimodal: true}

func TestContentExtractor_Extract_Text(t *testing.T) {
	doc := &mockPDF{
		pages:     []string{"Page one.", "Page two.", "Page three.", "Page four."},
		panicPage: 2,
		textErrs:  map[int]error{4: errors.New("bad xref")},
		images:    map[int][]domain.ImageCandidate{1: {{Page: 1, Width: 200, Height: 150, Data: pngBytes(200, 150)}}},
	}
	e := NewContentExtractor(mockCodec{}, t.TempDir(), domain.ExtractionSettings{})
	e.SetVision(reply("{}"))

	req := extractReq
	req.Multimodal = false
	out, err := e.Extract(context.Background(), doc, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Page one.", "", "Page three.", ""}, out.Pages)
	assert.Equal(t, 2, out.Skipped)
	assert.Empty(t, out.Figures)
	assert.Empty(t, out.Equations)
}

func TestContentExtractor_Extract_Errors(t *testing.T) {
	e := NewContentExtractor(mockCodec{}, t.TempDir(), domain.ExtractionSettings{})

	_, err := e.Extract(context.Background(), nil, extractReq)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Extract(ctx, &mockPDF{pages: []string{"text"}}, extractReq)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContentExtractor_Extract_Figures(t *testing.T) {
	dir := t.TempDir()
	figure := pngBytes(200, 150)
	doc := &mockPDF{
		pages: []string{"Figure 1: Conductance versus concentration.\n\nBody text.", "No figures here."},
		images: map[int][]domain.ImageCandidate{
			1: {
				{Page: 1, Index: 0, Width: 200, Height: 150, Data: figure},
				{Page: 1, Index: 1, Width: 30, Height: 30, Data: pngBytes(30, 30)},
			},
			2: {{Page: 2, Index: 0, Width: 120, Height: 100, Data: pngBytes(120, 100), Ext: "jpeg"}},
		},
	}
	e := NewContentExtractor(mockCodec{}, dir, domain.ExtractionSettings{})
	e.SetVision(reply("{}"))

	out, err := e.Extract(context.Background(), doc, extractReq)
	require.NoError(t, err)
	require.Len(t, out.Figures, 2)

	first := out.Figures[0]
	assert.Equal(t, filepath.Join(dir, "nanofluidics", "paper_page1_img0.png"), first.Path)
	assert.Equal(t, "image/png", first.MIME)
	assert.Equal(t, "Figure 1: Conductance versus concentration.", first.Caption)
	written, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, figure, written)

	second := out.Figures[1]
	assert.Equal(t, filepath.Join(dir, "nanofluidics", "paper_page2_img0.jpeg"), second.Path)
	assert.Empty(t, second.Caption)
	assert.Zero(t, out.Skipped)
}

func TestContentExtractor_Extract_NoVisionSkipsFigures(t *testing.T) {
	doc := &mockPDF{
		pages:  []string{"Inline math $a + b$ here."},
		images: map[int][]domain.ImageCandidate{1: {{Page: 1, Width: 200, Height: 150, Data: pngBytes(200, 150)}}},
	}
	e := NewContentExtractor(mockCodec{}, t.TempDir(), domain.ExtractionSettings{})

	out, err := e.Extract(context.Background(), doc, extractReq)
	require.NoError(t, err)
	assert.Empty(t, out.Figures)
	require.Len(t, out.Equations, 1)
	assert.Equal(t, domain.Equation{
		ID: "paper_p1_tex1", Page: 1, LaTeX: "a + b", Type: domain.EquationInline, Confidence: 1,
	}, out.Equations[0])
}

const detectedRegions = `{"equations": [
  {"bbox": [100, 200, 300, 260], "latex": "", "type": "display", "number": "(2)", "confidence": 0.9},
  {"bbox": [1, 2, 3]},
  {"bbox": [50, 50, 50, 80], "latex": "x = y"}
]}`

func equationVision(detect func() (string, error)) *mockVision {
	return &mockVision{respond: func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Find the equations") {
			return detect()
		}
		return "```latex\n\\nabla \\cdot J = 0\n```", nil
	}}
}

func TestContentExtractor_Extract_VisualEquations(t *testing.T) {
	dir := t.TempDir()
	doc := &mockPDF{pages: []string{"We use $$E = mc^2$$ here.", "Plain page.", "Beyond the cap."}}
	vision := equationVision(func() (string, error) { return detectedRegions, nil })
	e := NewContentExtractor(mockCodec{}, dir, domain.ExtractionSettings{EquationPages: 2, RenderZoom: 2})
	e.SetVision(vision)
	e.SetRenderer(mockRenderer{})
	e.SetPromptStore(newMockPromptStore())

	out, err := e.Extract(context.Background(), doc, extractReq)
	require.NoError(t, err)
	require.Len(t, out.Equations, 2)
	assert.Equal(t, "paper_p1_tex1", out.Equations[0].ID)

	eq := out.Equations[1]
	assert.Equal(t, "paper_p2_eq1", eq.ID)
	assert.Equal(t, 2, eq.Page)
	assert.Equal(t, `\nabla \cdot J = 0`, eq.LaTeX)
	assert.Equal(t, domain.EquationDisplay, eq.Type)
	assert.Equal(t, "(2)", eq.Number)
	assert.InDelta(t, 0.9, eq.Confidence, 1e-9)
	assert.Equal(t, &domain.BBox{X0: 50, Y0: 100, X1: 150, Y1: 130}, eq.BBox)
	assert.Equal(t, filepath.Join(dir, "nanofluidics", "equations", "equation_paper_p2_eq1.png"), eq.ImagePath)

	crop, err := os.ReadFile(eq.ImagePath)
	require.NoError(t, err)
	img, _, err := mockCodec{}.Decode(crop)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())

	assert.Equal(t, []string{"Find the equations on this 600x800 page.", "Transcribe this equation."}, vision.calls())
	assert.Zero(t, out.Skipped)
}

func TestContentExtractor_Extract_EquationDetectionFailures(t *testing.T) {
	tests := []struct {
		name        string
		detect      func() (string, error)
		wantSkipped int
	}{
		{name: "vision error", detect: func() (string, error) { return "", errors.New("timeout") }, wantSkipped: 2},
		{name: "unparseable answer", detect: func() (string, error) { return "I see no equations.", nil }},
		{name: "detector panics", detect: func() (string, error) { panic("nil region") }, wantSkipped: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &mockPDF{pages: []string{"Plain.", "Plain too."}}
			e := NewContentExtractor(mockCodec{}, t.TempDir(), domain.ExtractionSettings{RenderZoom: 1})
			e.SetVision(equationVision(tt.detect))
			e.SetRenderer(mockRenderer{})
			e.SetPromptStore(newMockPromptStore())

			out, err := e.Extract(context.Background(), doc, extractReq)
			require.NoError(t, err)
			assert.Empty(t, out.Equations)
			assert.Equal(t, tt.wantSkipped, out.Skipped)
		})
	}
}
