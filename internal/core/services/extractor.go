package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure ContentExtractor can take custom prompts.
var _ driven.PromptStoreAware = (*ContentExtractor)(nil)

// ExtractRequest names the document being extracted.
type ExtractRequest struct {
	Domain domain.KnowledgeDomain
	// Stem is the PDF filename without extension, used for artifact names.
	Stem string
	// Multimodal enables figure and equation extraction.
	Multimodal bool
}

// detectedEquation is one region from the equation detection prompt.
type detectedEquation struct {
	BBox       []float64        `json:"bbox"`
	LaTeX      string           `json:"latex"`
	Type       string           `json:"type"`
	Number     domain.TextValue `json:"number"`
	Confidence float64          `json:"confidence"`
}

// ContentExtractor pulls page text, salient figures and equations out of
// an open PDF. A failing page, image or region is logged and skipped.
type ContentExtractor struct {
	codec    driven.ImageCodec
	vision   driven.VisionService
	renderer driven.PageRenderer
	prompts  driven.PromptStore

	figuresDir    string
	equationPages int
	zoom          float64
}

// NewContentExtractor creates an extractor that writes artifacts under
// figuresDir. Vision and rendering are optional and set separately.
func NewContentExtractor(codec driven.ImageCodec, figuresDir string, cfg domain.ExtractionSettings) *ContentExtractor {
	zoom := cfg.RenderZoom
	if zoom <= 0 {
		zoom = 2
	}
	return &ContentExtractor{
		codec:         codec,
		figuresDir:    figuresDir,
		equationPages: cfg.EquationPages,
		zoom:          zoom,
	}
}

// SetVision enables figure extraction and visual equation detection.
func (e *ContentExtractor) SetVision(vision driven.VisionService) {
	e.vision = vision
}

// SetRenderer enables page rendering for visual equation detection.
func (e *ContentExtractor) SetRenderer(renderer driven.PageRenderer) {
	e.renderer = renderer
}

// SetPromptStore sets the prompt store for the equation prompts.
func (e *ContentExtractor) SetPromptStore(store driven.PromptStore) {
	e.prompts = store
}

// Extract reads every page of doc. Text extraction always runs; figures
// and equations only when the request is multimodal.
func (e *ContentExtractor) Extract(ctx context.Context, doc driven.PDFDocument, req ExtractRequest) (*domain.Extraction, error) {
	if doc == nil {
		return nil, fmt.Errorf("extract: %w: nil document", domain.ErrInvalidInput)
	}
	out := &domain.Extraction{}
	n := doc.NumPages()

	for page := 1; page <= n; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var text string
		if err := guard(fmt.Sprintf("page %d", page), func() error {
			var err error
			text, err = doc.PageText(page)
			return err
		}); err != nil {
			logger.Warn("Skipping text of %s page %d: %v", req.Stem, page, err)
			out.Skipped++
			text = ""
		}
		out.Pages = append(out.Pages, text)
	}

	if !req.Multimodal {
		return out, nil
	}

	if e.vision != nil {
		e.extractFigures(ctx, doc, req, out)
	} else {
		logger.Debug("No vision service, skipping figures of %s", req.Stem)
	}
	e.extractEquations(ctx, doc, req, out)
	return out, nil
}

func (e *ContentExtractor) extractFigures(ctx context.Context, doc driven.PDFDocument, req ExtractRequest, out *domain.Extraction) {
	dir := filepath.Join(e.figuresDir, req.Domain.String())
	kept := 0

	for page := 1; page <= len(out.Pages); page++ {
		if ctx.Err() != nil {
			return
		}
		var candidates []domain.ImageCandidate
		if err := guard(fmt.Sprintf("images of page %d", page), func() error {
			var err error
			candidates, err = doc.PageImages(page)
			return err
		}); err != nil {
			logger.Warn("Skipping images of %s page %d: %v", req.Stem, page, err)
			out.Skipped++
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		caption := ""
		if captions := FindCaptions(out.Pages[page-1]); len(captions) > 0 {
			caption = captions[0]
		}

		for _, c := range candidates {
			if ok, reason := SalientImage(c); !ok {
				logger.Debug("Skipped %s page %d img %d: %s", req.Stem, page, c.Index, reason)
				continue
			}
			mime, ext := e.sniff(c)
			path := filepath.Join(dir, fmt.Sprintf("%s_page%d_img%d.%s", req.Stem, page, c.Index, ext))
			if err := writeArtifact(path, c.Data); err != nil {
				logger.Warn("Could not save image %d from %s page %d: %v", c.Index, req.Stem, page, err)
				out.Skipped++
				continue
			}
			out.Figures = append(out.Figures, domain.Figure{
				ImageCandidate: c,
				Path:           path,
				MIME:           mime,
				Caption:        caption,
			})
			kept++
		}
	}
	logger.Debug("Extracted %d figures from %s", kept, req.Stem)
}

func (e *ContentExtractor) sniff(c domain.ImageCandidate) (mime, ext string) {
	if e.codec != nil {
		mime, ext = e.codec.DetectMIME(c.Data)
	}
	if c.Ext != "" {
		ext = c.Ext
	}
	if ext == "" {
		ext = "bin"
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return mime, strings.TrimPrefix(ext, ".")
}

func (e *ContentExtractor) extractEquations(ctx context.Context, doc driven.PDFDocument, req ExtractRequest, out *domain.Extraction) {
	seen := make(map[string]struct{})
	withText := make(map[int]bool)
	for i, text := range out.Pages {
		page := i + 1
		eqs := TextEquations(page, text, seen)
		for j := range eqs {
			eqs[j].ID = fmt.Sprintf("%s_p%d_tex%d", req.Stem, page, j+1)
		}
		if len(eqs) > 0 {
			withText[page] = true
		}
		out.Equations = append(out.Equations, eqs...)
	}
	if len(out.Equations) > 0 {
		logger.Debug("Found %d equations in the text of %s", len(out.Equations), req.Stem)
	}

	if e.vision == nil || e.renderer == nil || e.codec == nil {
		return
	}

	last := len(out.Pages)
	if e.equationPages > 0 && e.equationPages < last {
		last = e.equationPages
	}
	counter := 0
	for page := 1; page <= last; page++ {
		if ctx.Err() != nil {
			return
		}
		if withText[page] {
			continue
		}
		if err := guard(fmt.Sprintf("equations of page %d", page), func() error {
			eqs, err := e.detectEquations(ctx, doc, req, page, &counter)
			if err != nil {
				return err
			}
			out.Equations = append(out.Equations, eqs...)
			return nil
		}); err != nil {
			logger.Warn("Skipping equation regions of %s page %d: %v", req.Stem, page, err)
			out.Skipped++
		}
	}
}

func (e *ContentExtractor) detectEquations(
	ctx context.Context,
	doc driven.PDFDocument,
	req ExtractRequest,
	page int,
	counter *int,
) ([]domain.Equation, error) {
	rendered, err := e.renderer.RenderPage(ctx, doc, page, e.zoom)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	bounds := rendered.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	png, err := e.codec.EncodePNG(rendered)
	if err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	prompt, err := renderPrompt(e.prompts, driven.PromptEquationDetection, w, h)
	if err != nil {
		return nil, err
	}
	resp, err := e.vision.Describe(ctx, png, "image/png", prompt)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	var result struct {
		Equations []detectedEquation `json:"equations"`
	}
	if err := decodeModelJSON(resp, &result); err != nil {
		logger.Debug("Could not parse equation detection for %s page %d", req.Stem, page)
		return nil, nil
	}

	pw, ph, err := doc.PageSize(page)
	if err != nil {
		pw, ph = float64(w)/e.zoom, float64(h)/e.zoom
	}

	dir := filepath.Join(e.figuresDir, req.Domain.String(), "equations")
	var eqs []domain.Equation
	for _, d := range result.Equations {
		if len(d.BBox) != 4 {
			continue
		}
		*counter++
		id := fmt.Sprintf("%s_p%d_eq%d", req.Stem, page, *counter)

		pixels := domain.BBox{
			X0: int(d.BBox[0]), Y0: int(d.BBox[1]),
			X1: int(d.BBox[2]), Y1: int(d.BBox[3]),
		}.Clamp(w, h)
		if pixels.Degenerate() {
			logger.Warn("Degenerate equation region %s: %v", id, d.BBox)
			continue
		}

		eq := domain.Equation{
			ID:         id,
			Page:       page,
			LaTeX:      cleanLaTeX(d.LaTeX),
			Type:       equationType(d.Type),
			Number:     strings.TrimSpace(string(d.Number)),
			Confidence: d.Confidence,
		}
		box := pixels.Scale(e.zoom).Clamp(int(pw), int(ph))
		eq.BBox = &box

		crop, err := e.codec.EncodePNG(e.codec.Crop(rendered, pixels))
		if err != nil {
			logger.Warn("Could not crop equation %s: %v", id, err)
		} else {
			path := filepath.Join(dir, "equation_"+id+".png")
			if err := writeArtifact(path, crop); err != nil {
				logger.Warn("Could not save equation %s: %v", id, err)
			} else {
				eq.ImagePath = path
			}
			if eq.LaTeX == "" {
				eq.LaTeX = e.transcribe(ctx, crop, id)
			}
		}

		if eq.LaTeX == "" {
			logger.Debug("Dropping equation %s without a transcription", id)
			continue
		}
		eqs = append(eqs, eq)
	}
	if len(eqs) > 0 {
		logger.Debug("Page %d of %s: %d equation region(s)", page, req.Stem, len(eqs))
	}
	return eqs, nil
}

func (e *ContentExtractor) transcribe(ctx context.Context, crop []byte, id string) string {
	prompt, err := renderPrompt(e.prompts, driven.PromptEquationOCR)
	if err != nil {
		logger.Warn("Equation OCR unavailable for %s: %v", id, err)
		return ""
	}
	resp, err := e.vision.Describe(ctx, crop, "image/png", prompt)
	if err != nil {
		logger.Warn("Equation OCR failed for %s: %v", id, err)
		return ""
	}
	return cleanLaTeX(resp)
}

func equationType(s string) domain.EquationType {
	if strings.EqualFold(strings.TrimSpace(s), string(domain.EquationInline)) {
		return domain.EquationInline
	}
	return domain.EquationDisplay
}
