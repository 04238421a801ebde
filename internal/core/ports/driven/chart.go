package driven

import (
	"context"
	"image"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// ChartRenderer draws the figures agents ask for during a symposium.
type ChartRenderer interface {
	// RenderPlot draws a line, bar or scatter plot.
	RenderPlot(ctx context.Context, plot domain.Plot) (image.Image, error)

	// RenderConceptMap draws a directed concept graph.
	RenderConceptMap(ctx context.Context, m domain.ConceptMap) (image.Image, error)
}
