package pdf

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// Ensure Renderer implements the interface.
var _ driven.PageRenderer = (*Renderer)(nil)

// maxRenderSide caps the longer side of a rendered page in pixels.
const maxRenderSide = 4096

// Renderer draws a page's text layout and ruled boxes onto a white canvas.
// Glyphs are approximated with Go Regular at each run's font size, which is
// enough to locate display equations and figure regions.
type Renderer struct {
	font *truetype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

// NewRenderer creates a page renderer.
func NewRenderer() (*Renderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load render font: %w", err)
	}
	return &Renderer{font: f, faces: make(map[float64]font.Face)}, nil
}

func (r *Renderer) face(size float64) font.Face {
	size = math.Max(1, math.Round(size*2)/2)
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(r.font, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
	r.faces[size] = f
	return f
}

// RenderPage rasterises page n at the given zoom (pixels per point).
func (r *Renderer) RenderPage(ctx context.Context, doc driven.PDFDocument, n int, zoom float64) (img image.Image, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := doc.(*Document)
	if !ok {
		return nil, fmt.Errorf("render page: %w: unsupported document type %T", domain.ErrInvalidInput, doc)
	}
	if zoom <= 0 {
		zoom = 1
	}
	defer recoverInto(&err, fmt.Sprintf("render page %d", n))

	w, h, err := d.PageSize(n)
	if err != nil {
		return nil, err
	}
	if side := math.Max(w, h) * zoom; side > maxRenderSide {
		zoom *= maxRenderSide / side
	}
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	content := p.Content()

	dc := gg.NewContext(int(math.Ceil(w*zoom)), int(math.Ceil(h*zoom)))
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(math.Max(1, zoom/2))
	for _, rect := range content.Rect {
		x0, y0 := rect.Min.X*zoom, (h-rect.Max.Y)*zoom
		dc.DrawRectangle(x0, y0, (rect.Max.X-rect.Min.X)*zoom, (rect.Max.Y-rect.Min.Y)*zoom)
		dc.Stroke()
	}

	for i, t := range content.Text {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if t.S == "" {
			continue
		}
		dc.SetFontFace(r.face(t.FontSize * zoom))
		// PDF user space has its origin bottom-left.
		dc.DrawString(t.S, t.X*zoom, (h-t.Y)*zoom)
	}
	return dc.Image(), nil
}
