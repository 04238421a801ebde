package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ImageCandidate is a raw image pulled from a PDF page before filtering.
type ImageCandidate struct {
	// Page is the 1-based page number the image was found on.
	Page int

	// Index is the image's position among the page's images (0-based).
	Index int

	Width  int
	Height int

	// Data holds the encoded image bytes.
	Data []byte

	// Ext is the encoded format extension ("png", "jpeg").
	Ext string
}

// Area returns the pixel area of the image.
func (c ImageCandidate) Area() int {
	return c.Width * c.Height
}

// AspectRatio returns max(width,height)/min(width,height).
// A zero dimension yields 999 so degenerate images always fail the ratio checks.
func (c ImageCandidate) AspectRatio() float64 {
	lo, hi := c.Width, c.Height
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		return 999
	}
	return float64(hi) / float64(lo)
}

// Figure is a salient image accepted for description, with its caption.
type Figure struct {
	ImageCandidate

	// Path is where the image was written under the figures directory.
	Path string

	// MIME is the sniffed media type of Data.
	MIME string

	// Caption is the first figure caption found on the same page.
	Caption string
}

// FigureAnalysis is the structured description a vision model returns for a figure.
type FigureAnalysis struct {
	FigureType        string    `json:"figure_type"`
	Description       string    `json:"description"`
	KeyInsights       TextList  `json:"key_insights"`
	ApproximateValues TextValue `json:"approximate_values"`
	Variables         TextValue `json:"variables"`
	DataExtractable   FlexBool  `json:"data_extractable"`
}

// IsPlot reports whether the figure type names a chart worth extracting data from.
func (a FigureAnalysis) IsPlot() bool {
	t := strings.ToLower(a.FigureType)
	for _, kw := range []string{"xy", "line", "scatter", "plot", "graph", "curve"} {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// ChunkText renders the analysis as the text that gets embedded for a figure.
// Empty parts are left out.
func (a FigureAnalysis) ChunkText(caption, panelLabel string) string {
	parts := make([]string, 0, 6)
	if caption != "" {
		parts = append(parts, "Caption: "+caption)
	}
	if panelLabel != "" {
		parts = append(parts, "Panel: "+panelLabel)
	}
	if a.Description != "" {
		parts = append(parts, "Description: "+a.Description)
	}
	if len(a.KeyInsights) > 0 {
		parts = append(parts, "Key insights: "+strings.Join(a.KeyInsights, "; "))
	}
	if a.ApproximateValues != "" {
		parts = append(parts, "Values: "+string(a.ApproximateValues))
	}
	if a.Variables != "" {
		parts = append(parts, "Variables: "+string(a.Variables))
	}
	return strings.Join(parts, " | ")
}

// PlotData is the approximate data extracted from a plot figure.
type PlotData struct {
	AxisInfo   TextValue `json:"axis_info"`
	DataPoints TextValue `json:"data_points"`
	Trends     TextValue `json:"trends"`
}

// TextValue is a JSON field rendered as text whatever shape the model
// chose: strings are kept, anything else is compact JSON.
type TextValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *TextValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextValue(s)
		return nil
	}
	if string(data) == "null" {
		*v = ""
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*v = TextValue(buf.String())
	return nil
}

// TextList accepts either a JSON array or a single string.
type TextList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *TextList) UnmarshalJSON(data []byte) error {
	var items []TextValue
	if err := json.Unmarshal(data, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, it := range items {
			if it != "" {
				out = append(out, string(it))
			}
		}
		*l = out
		return nil
	}
	var one TextValue
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one == "" {
		*l = nil
		return nil
	}
	*l = TextList{string(one)}
	return nil
}

// FlexBool accepts true/false as well as "yes"/"no" strings.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = FlexBool(t)
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		*b = FlexBool(s == "yes" || s == "true" || s == "y")
	default:
		*b = false
	}
	return nil
}

// BBox is an axis-aligned pixel rectangle [X0,Y0]-[X1,Y1].
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Clamp returns the box clipped into [0,w]x[0,h].
func (b BBox) Clamp(w, h int) BBox {
	return BBox{
		X0: clampInt(b.X0, 0, w),
		Y0: clampInt(b.Y0, 0, h),
		X1: clampInt(b.X1, 0, w),
		Y1: clampInt(b.Y1, 0, h),
	}
}

// Degenerate reports whether the box has no area.
func (b BBox) Degenerate() bool {
	return b.X1 <= b.X0 || b.Y1 <= b.Y0
}

// Within reports whether the box lies inside a w x h image.
func (b BBox) Within(w, h int) bool {
	return b.X0 >= 0 && b.Y0 >= 0 && b.X1 <= w && b.Y1 <= h
}

// Scale divides every coordinate by factor.
func (b BBox) Scale(factor float64) BBox {
	if factor == 0 {
		return b
	}
	return BBox{
		X0: int(float64(b.X0) / factor),
		Y0: int(float64(b.Y0) / factor),
		X1: int(float64(b.X1) / factor),
		Y1: int(float64(b.Y1) / factor),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Panel is one sub-figure of a segmented figure.
type Panel struct {
	Label       string
	BBox        *BBox
	SubCaption  string
	Description string
	Type        string

	// IsPanel is false for the synthetic whole-image panel of a single-panel figure.
	IsPanel bool

	// Path is where the cropped panel image was written, if any.
	Path string

	// Data is the PNG-encoded crop. It is nil for the whole-image panel.
	Data []byte
}

// Segmentation is the result of decomposing a figure into panels.
type Segmentation struct {
	IsMultiPanel bool
	Layout       string
	Panels       []Panel
}

// EquationType distinguishes display from inline math.
type EquationType string

// Equation types.
const (
	EquationDisplay EquationType = "display"
	EquationInline  EquationType = "inline"
)

// Equation is a LaTeX transcription found on a page.
type Equation struct {
	ID         string
	Page       int
	LaTeX      string
	Type       EquationType
	Number     string
	Confidence float64

	// BBox is set for visually detected equations, in page points.
	BBox *BBox

	// ImagePath is the cropped region image of a visually detected equation.
	ImagePath string
}

// ChunkText renders the equation as the text that gets embedded.
func (e Equation) ChunkText() string {
	var b strings.Builder
	b.WriteString("Equation (")
	b.WriteString(string(e.Type))
	b.WriteString(") on page ")
	b.WriteString(strconv.Itoa(e.Page))
	if e.Number != "" {
		b.WriteString(" [number ")
		b.WriteString(e.Number)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.LaTeX)
	return b.String()
}

// Extraction is everything the content extractor produced for one PDF.
type Extraction struct {
	Pages     []string
	Figures   []Figure
	Equations []Equation

	// Skipped counts units that failed and were skipped.
	Skipped int
}
