package domain

// PlotKind is the chart type of a plot.
type PlotKind string

// Supported plot kinds.
const (
	PlotLine    PlotKind = "line"
	PlotBar     PlotKind = "bar"
	PlotScatter PlotKind = "scatter"
)

// AllPlotKinds returns every plot kind.
func AllPlotKinds() []PlotKind {
	return []PlotKind{PlotLine, PlotBar, PlotScatter}
}

// IsValid reports whether the kind is supported.
func (k PlotKind) IsValid() bool {
	switch k {
	case PlotLine, PlotBar, PlotScatter:
		return true
	default:
		return false
	}
}

// PlotSeries is one named data series. For bar plots X is unused and Y
// holds one value per category.
type PlotSeries struct {
	Label string
	X     []float64
	Y     []float64
}

// Plot describes a chart requested by an agent.
type Plot struct {
	Kind   PlotKind
	Title  string
	XLabel string
	YLabel string

	// Categories labels the bar groups. Empty for line and scatter plots.
	Categories []string

	Series []PlotSeries
}

// ConceptLayout is the node placement algorithm of a concept map.
type ConceptLayout string

// Supported layouts.
const (
	LayoutSpring       ConceptLayout = "spring"
	LayoutCircular     ConceptLayout = "circular"
	LayoutHierarchical ConceptLayout = "hierarchical"
)

// ConceptRelation is a labelled, directed edge between two concepts.
type ConceptRelation struct {
	Source string
	Target string
	Label  string
}

// ConceptMap is a directed graph of concepts.
type ConceptMap struct {
	Title     string
	Concepts  []string
	Relations []ConceptRelation
	Layout    ConceptLayout
}

// Nodes returns the concepts followed by any relation endpoint that is not
// already listed, without duplicates and in first-seen order.
func (m ConceptMap) Nodes() []string {
	seen := make(map[string]bool, len(m.Concepts))
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, c := range m.Concepts {
		add(c)
	}
	for _, r := range m.Relations {
		add(r.Source)
		add(r.Target)
	}
	return out
}
