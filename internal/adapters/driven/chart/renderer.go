// Package chart draws agent-requested plots and concept maps with gg.
package chart

import (
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// Ensure Renderer implements the interface.
var _ driven.ChartRenderer = (*Renderer)(nil)

// Canvas sizes in pixels.
const (
	plotWidth  = 1200
	plotHeight = 720
	mapWidth   = 1400
	mapHeight  = 1000
)

// palette cycles across series.
var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#17becf"}

// Renderer draws charts on a white canvas using the Go fonts.
type Renderer struct {
	regular *truetype.Font
	bold    *truetype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size float64
}

// NewRenderer creates a chart renderer.
func NewRenderer() (*Renderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load chart font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("load chart font: %w", err)
	}
	return &Renderer{regular: regular, bold: bold, faces: make(map[faceKey]font.Face)}, nil
}

func (r *Renderer) face(bold bool, size float64) font.Face {
	key := faceKey{bold: bold, size: size}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f
	}
	f := r.regular
	if bold {
		f = r.bold
	}
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	r.faces[key] = face
	return face
}

// plotArea is the data rectangle inside the axes.
type plotArea struct {
	left, top, right, bottom float64
	xMin, xMax, yMin, yMax   float64
}

func (a plotArea) px(x float64) float64 {
	return a.left + (x-a.xMin)/(a.xMax-a.xMin)*(a.right-a.left)
}

func (a plotArea) py(y float64) float64 {
	return a.bottom - (y-a.yMin)/(a.yMax-a.yMin)*(a.bottom-a.top)
}

// RenderPlot draws a line, bar or scatter plot with axes, ticks, a title
// and a legend when more than one series is labelled.
func (r *Renderer) RenderPlot(ctx context.Context, p domain.Plot) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown plot type %q (use line, bar or scatter)", domain.ErrInvalidInput, p.Kind)
	}
	if len(p.Series) == 0 {
		return nil, fmt.Errorf("%w: plot has no data", domain.ErrInvalidInput)
	}

	dc := gg.NewContext(plotWidth, plotHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	area := plotArea{left: 100, top: 80, right: plotWidth - 60, bottom: plotHeight - 90}
	if p.Kind == domain.PlotBar {
		area.xMin, area.xMax = 0, float64(barGroups(p))
	} else {
		area.xMin, area.xMax = xRange(p.Series)
	}
	area.yMin, area.yMax = yRange(p.Series, p.Kind == domain.PlotBar)

	r.drawAxes(dc, area, p)

	switch p.Kind {
	case domain.PlotLine:
		r.drawLines(dc, area, p.Series)
	case domain.PlotScatter:
		r.drawScatter(dc, area, p.Series)
	case domain.PlotBar:
		r.drawBars(dc, area, p)
	}

	if labelled(p.Series) {
		r.drawLegend(dc, area, p.Series, p.Kind)
	}
	return dc.Image(), nil
}

func barGroups(p domain.Plot) int {
	n := len(p.Categories)
	for _, s := range p.Series {
		n = max(n, len(s.Y))
	}
	return max(n, 1)
}

func xRange(series []domain.PlotSeries) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for i := range s.Y {
			x := float64(i)
			if i < len(s.X) {
				x = s.X[i]
			}
			lo, hi = math.Min(lo, x), math.Max(hi, x)
		}
	}
	return padRange(lo, hi)
}

func yRange(series []domain.PlotSeries, fromZero bool) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	if fromZero {
		lo, hi = 0, 0
	}
	for _, s := range series {
		for _, y := range s.Y {
			lo, hi = math.Min(lo, y), math.Max(hi, y)
		}
	}
	lo, hi = padRange(lo, hi)
	span := hi - lo
	if !fromZero || lo < 0 {
		lo -= span * 0.05
	}
	return lo, hi + span*0.05
}

func padRange(lo, hi float64) (float64, float64) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	if lo == hi {
		return lo - 1, hi + 1
	}
	return lo, hi
}

func labelled(series []domain.PlotSeries) bool {
	for _, s := range series {
		if s.Label != "" {
			return true
		}
	}
	return false
}

func (r *Renderer) drawAxes(dc *gg.Context, a plotArea, p domain.Plot) {
	dc.SetFontFace(r.face(true, 22))
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(p.Title, plotWidth/2, a.top/2, 0.5, 0.5)

	// Grid and y ticks.
	dc.SetFontFace(r.face(false, 14))
	const ticks = 5
	for i := 0; i <= ticks; i++ {
		v := a.yMin + (a.yMax-a.yMin)*float64(i)/ticks
		y := a.py(v)
		dc.SetRGBA(0, 0, 0, 0.12)
		dc.SetLineWidth(1)
		dc.DrawLine(a.left, y, a.right, y)
		dc.Stroke()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(tickLabel(v), a.left-10, y, 1, 0.5)
	}

	// X ticks.
	if p.Kind == domain.PlotBar {
		groups := barGroups(p)
		for i := 0; i < groups; i++ {
			label := strconv.Itoa(i + 1)
			if i < len(p.Categories) {
				label = p.Categories[i]
			}
			dc.DrawStringAnchored(label, a.px(float64(i)+0.5), a.bottom+18, 0.5, 0.5)
		}
	} else {
		for i := 0; i <= ticks; i++ {
			v := a.xMin + (a.xMax-a.xMin)*float64(i)/ticks
			dc.DrawStringAnchored(tickLabel(v), a.px(v), a.bottom+18, 0.5, 0.5)
		}
	}

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawLine(a.left, a.bottom, a.right, a.bottom)
	dc.DrawLine(a.left, a.top, a.left, a.bottom)
	dc.Stroke()

	dc.SetFontFace(r.face(false, 17))
	dc.DrawStringAnchored(p.XLabel, (a.left+a.right)/2, a.bottom+55, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(-math.Pi/2, 30, (a.top+a.bottom)/2)
	dc.DrawStringAnchored(p.YLabel, 30, (a.top+a.bottom)/2, 0.5, 0.5)
	dc.Pop()
}

func tickLabel(v float64) string {
	if math.Abs(v) < 1e-9 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func (r *Renderer) drawLines(dc *gg.Context, a plotArea, series []domain.PlotSeries) {
	for i, s := range series {
		dc.SetHexColor(palette[i%len(palette)])
		dc.SetLineWidth(3)
		for j, y := range s.Y {
			x := a.px(seriesX(s, j))
			if j == 0 {
				dc.MoveTo(x, a.py(y))
			} else {
				dc.LineTo(x, a.py(y))
			}
		}
		dc.Stroke()
		for j, y := range s.Y {
			dc.DrawCircle(a.px(seriesX(s, j)), a.py(y), 5)
			dc.Fill()
		}
	}
}

func (r *Renderer) drawScatter(dc *gg.Context, a plotArea, series []domain.PlotSeries) {
	for i, s := range series {
		c := palette[i%len(palette)]
		for j, y := range s.Y {
			dc.SetHexColor(c)
			dc.DrawCircle(a.px(seriesX(s, j)), a.py(y), 8)
			dc.Fill()
		}
	}
}

func seriesX(s domain.PlotSeries, i int) float64 {
	if i < len(s.X) {
		return s.X[i]
	}
	return float64(i)
}

func (r *Renderer) drawBars(dc *gg.Context, a plotArea, p domain.Plot) {
	n := float64(len(p.Series))
	width := 0.8 / n
	for i, s := range p.Series {
		dc.SetHexColor(palette[i%len(palette)])
		for g, y := range s.Y {
			x0 := a.px(float64(g) + 0.1 + width*float64(i))
			x1 := a.px(float64(g) + 0.1 + width*float64(i+1))
			top, base := a.py(math.Max(y, 0)), a.py(math.Min(y, 0))
			dc.DrawRectangle(x0, top, x1-x0-2, base-top)
			dc.Fill()
		}
	}
}

func (r *Renderer) drawLegend(dc *gg.Context, a plotArea, series []domain.PlotSeries, kind domain.PlotKind) {
	dc.SetFontFace(r.face(false, 14))
	const row = 22
	w := 0.0
	for _, s := range series {
		sw, _ := dc.MeasureString(s.Label)
		w = math.Max(w, sw)
	}
	x0, y0 := a.right-w-60, a.top+10
	dc.SetRGBA(1, 1, 1, 0.85)
	dc.DrawRectangle(x0, y0, w+50, float64(len(series))*row+10)
	dc.FillPreserve()
	dc.SetRGBA(0, 0, 0, 0.3)
	dc.SetLineWidth(1)
	dc.Stroke()
	for i, s := range series {
		y := y0 + 5 + float64(i)*row + row/2
		dc.SetHexColor(palette[i%len(palette)])
		if kind == domain.PlotBar {
			dc.DrawRectangle(x0+10, y-6, 20, 12)
		} else {
			dc.DrawCircle(x0+20, y, 6)
		}
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(s.Label, x0+40, y, 0, 0.5)
	}
}
