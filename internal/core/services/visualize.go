package services

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/logger"
)

// Default titles and labels of agent-requested figures.
const (
	DefaultPlotTitle       = "Comparison Plot"
	DefaultConceptMapTitle = "Concept Map"
	defaultAxisX           = "X"
	defaultAxisY           = "Y"
)

// Output folders under the results directory.
const (
	plotsDir       = "plots"
	conceptMapsDir = "concept_maps"
)

// VisualizationTools renders plots and concept maps requested by agents
// and saves them as PNG files under a results directory.
type VisualizationTools struct {
	charts driven.ChartRenderer
	codec  driven.ImageCodec
	dir    string
}

// NewVisualizationTools creates the visualization tool handlers.
func NewVisualizationTools(charts driven.ChartRenderer, codec driven.ImageCodec, resultsDir string) *VisualizationTools {
	return &VisualizationTools{charts: charts, codec: codec, dir: resultsDir}
}

// plotArgs are the create_plot arguments.
type plotArgs struct {
	PlotType string                     `json:"plot_type"`
	Data     map[string]json.RawMessage `json:"data"`
	Title    string                     `json:"title"`
	XLabel   string                     `json:"xlabel"`
	YLabel   string                     `json:"ylabel"`
	SavePath string                     `json:"save_path"`
}

// conceptMapArgs are the create_concept_map arguments.
type conceptMapArgs struct {
	Concepts      []string   `json:"concepts"`
	Relationships [][]string `json:"relationships"`
	Title         string     `json:"title"`
	SavePath      string     `json:"save_path"`
	Layout        string     `json:"layout"`
}

func plotSchema() map[string]any {
	kinds := make([]string, 0, 3)
	for _, k := range domain.AllPlotKinds() {
		kinds = append(kinds, string(k))
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plot_type": map[string]any{
				"type":        "string",
				"enum":        kinds,
				"description": "Type of plot to create",
			},
			"data": map[string]any{
				"type": "object",
				"description": `Data to plot. For line/scatter plots use {"x": [1,2,3], "y": [4,5,6], "label": "Series Name"}. ` +
					`For bar plots use {"labels": ["A","B","C"], "values": [10,20,30]}. ` +
					`For multiple series use {"Series1": [1,2,3], "Series2": [4,5,6]}`,
				"minProperties": 1,
			},
			"title":  map[string]any{"type": "string", "description": "Plot title", "default": DefaultPlotTitle},
			"xlabel": map[string]any{"type": "string", "description": "X-axis label", "default": defaultAxisX},
			"ylabel": map[string]any{"type": "string", "description": "Y-axis label", "default": defaultAxisY},
			"save_path": map[string]any{
				"type":        "string",
				"description": "Optional file name for the figure (derived from the title if not provided)",
			},
		},
		"required": []string{"plot_type", "data"},
	}
}

func conceptMapSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"concepts": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
				"description": `List of concept or theory names to include in the map (e.g., ["EDL", "Ion Selectivity", "Biological Channels"])`,
			},
			"relationships": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "array",
					"items":    map[string]any{"type": "string"},
					"minItems": 3,
					"maxItems": 3,
				},
				"description": `List of relationships as [source, target, label] arrays ` +
					`(e.g., [["EDL", "Selectivity", "controls"], ["Selectivity", "Ion Channels", "similar to"]])`,
			},
			"title": map[string]any{"type": "string", "description": "Title for the concept map", "default": DefaultConceptMapTitle},
			"save_path": map[string]any{
				"type":        "string",
				"description": "Optional file name for the figure (derived from the title if not provided)",
			},
			"layout": map[string]any{
				"type":        "string",
				"enum":        []string{string(domain.LayoutSpring), string(domain.LayoutCircular), string(domain.LayoutHierarchical)},
				"description": "Graph layout algorithm to use",
				"default":     string(domain.LayoutSpring),
			},
		},
		"required": []string{"concepts", "relationships"},
	}
}

// Register adds create_plot and create_concept_map to the registry.
func (v *VisualizationTools) Register(r *ToolRegistry) error {
	err := RegisterTool(r, domain.ToolCreatePlot,
		func(domain.KnowledgeDomain) string {
			return "Create data visualizations (line, bar, scatter plots) to compare values or show trends, " +
				"e.g. capacitance against pore size or selectivity ratios across fields."
		},
		plotSchema(),
		func(ctx context.Context, _ *domain.SymposiumSession, args plotArgs) (string, error) {
			return v.CreatePlot(ctx, args)
		})
	if err != nil {
		return err
	}
	return RegisterTool(r, domain.ToolCreateConceptMap,
		func(domain.KnowledgeDomain) string {
			return "Create visual concept maps showing relationships between theories, concepts, and domains. " +
				"Use this to map cross-domain connections discovered in the discussion."
		},
		conceptMapSchema(),
		func(ctx context.Context, _ *domain.SymposiumSession, args conceptMapArgs) (string, error) {
			return v.CreateConceptMap(ctx, args)
		})
}

// CreatePlot renders a plot and reports where it was saved.
func (v *VisualizationTools) CreatePlot(ctx context.Context, args plotArgs) (string, error) {
	plot := domain.Plot{
		Kind:   domain.PlotKind(args.PlotType),
		Title:  orDefault(args.Title, DefaultPlotTitle),
		XLabel: orDefault(args.XLabel, defaultAxisX),
		YLabel: orDefault(args.YLabel, defaultAxisY),
	}
	if !plot.Kind.IsValid() {
		return "", fmt.Errorf("%w: unknown plot type %q (use line, bar or scatter)", domain.ErrInvalidInput, args.PlotType)
	}
	categories, series, err := ParsePlotData(plot.Kind, args.Data)
	if err != nil {
		return "", err
	}
	plot.Categories, plot.Series = categories, series

	img, err := v.charts.RenderPlot(ctx, plot)
	if err != nil {
		return "", fmt.Errorf("plotting error: %w", err)
	}
	path, err := v.save(img, plotsDir, plot.Title, args.SavePath)
	if err != nil {
		return "", err
	}
	logger.Info("Created %s plot %q at %s", plot.Kind, plot.Title, path)
	return fmt.Sprintf("Plot created successfully!\nType: %s\nTitle: %s\nSaved to: %s\n", plot.Kind, plot.Title, path), nil
}

// CreateConceptMap renders a concept map and reports where it was saved.
func (v *VisualizationTools) CreateConceptMap(ctx context.Context, args conceptMapArgs) (string, error) {
	m := domain.ConceptMap{
		Title:    orDefault(args.Title, DefaultConceptMapTitle),
		Concepts: args.Concepts,
		Layout:   domain.ConceptLayout(orDefault(args.Layout, string(domain.LayoutSpring))),
	}
	for i, rel := range args.Relationships {
		if len(rel) != 3 {
			return "", fmt.Errorf("%w: relationship %d must be [source, target, label]", domain.ErrInvalidInput, i+1)
		}
		m.Relations = append(m.Relations, domain.ConceptRelation{Source: rel[0], Target: rel[1], Label: rel[2]})
	}

	img, err := v.charts.RenderConceptMap(ctx, m)
	if err != nil {
		return "", fmt.Errorf("concept mapping error: %w", err)
	}
	path, err := v.save(img, conceptMapsDir, m.Title, args.SavePath)
	if err != nil {
		return "", err
	}
	logger.Info("Created concept map %q at %s", m.Title, path)
	return fmt.Sprintf("Concept map created successfully!\nTitle: %s\nConcepts: %d\nRelationships: %d\nSaved to: %s\n",
		m.Title, len(args.Concepts), len(m.Relations), path), nil
}

// save writes the image as PNG. The file always lands in the tool's folder
// under the results directory; a requested path only contributes its base
// name.
func (v *VisualizationTools) save(img image.Image, sub, title, requested string) (string, error) {
	name := FigureFileName(title)
	if base := filepath.Base(strings.TrimSpace(requested)); requested != "" && base != "." && base != string(filepath.Separator) {
		name = base
		if !strings.EqualFold(filepath.Ext(name), ".png") {
			name += ".png"
		}
	}
	dir := filepath.Join(v.dir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := v.codec.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encode figure: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// FigureFileName derives a PNG file name from a title by lowercasing it
// and replacing spaces and slashes with underscores.
func FigureFileName(title string) string {
	name := strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(strings.ToLower(strings.TrimSpace(title)))
	if name == "" {
		name = "figure"
	}
	return name + ".png"
}

// ParsePlotData converts the loosely shaped data object of create_plot into
// categories and series:
//   - {"x": [...], "y": [...], "label": "..."} is one line or scatter series
//   - {"labels": [...], "values": [...]} is one bar series
//   - {"name": [...], ...} is one series per key, x being the index
//   - {"name": 280, ...} is one bar per key
//
// Keys are taken in sorted order.
func ParsePlotData(kind domain.PlotKind, data map[string]json.RawMessage) ([]string, []domain.PlotSeries, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: plot data is empty", domain.ErrInvalidInput)
	}

	if kind != domain.PlotBar {
		if rawX, ok := data["x"]; ok {
			if rawY, ok := data["y"]; ok {
				x, err := numbers("x", rawX)
				if err != nil {
					return nil, nil, err
				}
				y, err := numbers("y", rawY)
				if err != nil {
					return nil, nil, err
				}
				if len(x) != len(y) {
					return nil, nil, fmt.Errorf("%w: x has %d values but y has %d", domain.ErrInvalidInput, len(x), len(y))
				}
				label := "Data"
				if raw, ok := data["label"]; ok {
					_ = json.Unmarshal(raw, &label)
				}
				return nil, []domain.PlotSeries{{Label: label, X: x, Y: y}}, nil
			}
		}
	} else if rawLabels, ok := data["labels"]; ok {
		if rawValues, ok := data["values"]; ok {
			var labels []string
			if err := json.Unmarshal(rawLabels, &labels); err != nil {
				return nil, nil, fmt.Errorf("%w: labels must be a list of strings", domain.ErrInvalidInput)
			}
			values, err := numbers("values", rawValues)
			if err != nil {
				return nil, nil, err
			}
			if len(labels) != len(values) {
				return nil, nil, fmt.Errorf("%w: %d labels but %d values", domain.ErrInvalidInput, len(labels), len(values))
			}
			return labels, []domain.PlotSeries{{Y: values}}, nil
		}
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if kind == domain.PlotBar {
		if scalars, ok := scalarValues(keys, data); ok {
			return keys, []domain.PlotSeries{{Y: scalars}}, nil
		}
	}

	var series []domain.PlotSeries
	for _, k := range keys {
		y, err := numbers(k, data[k])
		if err != nil {
			return nil, nil, err
		}
		// A lone point cannot show a correlation.
		if kind == domain.PlotScatter && len(y) < 2 {
			continue
		}
		series = append(series, domain.PlotSeries{Label: k, Y: y})
	}
	if len(series) == 0 {
		return nil, nil, fmt.Errorf("%w: plot data has no plottable series", domain.ErrInvalidInput)
	}
	if kind != domain.PlotBar {
		return nil, series, nil
	}
	groups := 0
	for _, s := range series {
		groups = max(groups, len(s.Y))
	}
	categories := make([]string, groups)
	for i := range categories {
		categories[i] = strconv.Itoa(i + 1)
	}
	return categories, series, nil
}

func numbers(name string, raw json.RawMessage) ([]float64, error) {
	var out []float64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s must be a list of numbers", domain.ErrInvalidInput, name)
	}
	return out, nil
}

func scalarValues(keys []string, data map[string]json.RawMessage) ([]float64, bool) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		if err := json.Unmarshal(data[k], &out[i]); err != nil {
			return nil, false
		}
	}
	return out, true
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
