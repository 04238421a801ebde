package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// Ensure FigureAnalyzer can take custom prompts.
var _ driven.PromptStoreAware = (*FigureAnalyzer)(nil)

// FigureAnalyzer asks a vision model to describe figures and read plots.
type FigureAnalyzer struct {
	vision  driven.VisionService
	prompts driven.PromptStore
}

// NewFigureAnalyzer creates an analyzer around a vision service.
func NewFigureAnalyzer(vision driven.VisionService) *FigureAnalyzer {
	return &FigureAnalyzer{vision: vision}
}

// SetPromptStore sets the prompt store for the figure prompts.
func (a *FigureAnalyzer) SetPromptStore(store driven.PromptStore) {
	a.prompts = store
}

// Analyze describes one image. A response that is not JSON becomes the
// description of an "Unknown" figure; a failed call is recorded in the
// description so the figure still yields a chunk.
func (a *FigureAnalyzer) Analyze(ctx context.Context, image []byte, mime, caption string) domain.ParseResult[domain.FigureAnalysis] {
	if a.vision == nil {
		return domain.Fallback(failedAnalysis(domain.ErrVisionUnavailable), domain.ErrVisionUnavailable.Error())
	}

	prompt, err := renderPrompt(a.prompts, driven.PromptFigureAnalysis)
	if err != nil {
		return domain.Fallback(failedAnalysis(err), err.Error())
	}
	if caption != "" {
		prompt += "\n\nFigure caption: " + caption
	}

	resp, err := a.vision.Describe(ctx, image, mime, prompt)
	if err != nil {
		return domain.Fallback(failedAnalysis(err), err.Error())
	}

	var analysis domain.FigureAnalysis
	if err := decodeModelJSON(resp, &analysis); err != nil {
		return domain.Fallback(domain.FigureAnalysis{
			FigureType:  domain.UnknownValue,
			Description: resp,
		}, "figure analysis was not JSON")
	}
	return domain.Ok(analysis)
}

// PlotData extracts approximate series from a chart. It is only worth
// calling when the analysis marked the figure as an extractable plot.
func (a *FigureAnalyzer) PlotData(ctx context.Context, image []byte, mime string) domain.ParseResult[domain.PlotData] {
	if a.vision == nil {
		return domain.Fallback(domain.PlotData{}, domain.ErrVisionUnavailable.Error())
	}
	prompt, err := renderPrompt(a.prompts, driven.PromptPlotData)
	if err != nil {
		return domain.Fallback(domain.PlotData{}, err.Error())
	}
	resp, err := a.vision.Describe(ctx, image, mime, prompt)
	if err != nil {
		return domain.Fallback(domain.PlotData{}, err.Error())
	}
	var data domain.PlotData
	if err := decodeModelJSON(resp, &data); err != nil {
		return domain.Fallback(domain.PlotData{}, "plot data was not JSON")
	}
	return domain.Ok(data)
}

func failedAnalysis(err error) domain.FigureAnalysis {
	return domain.FigureAnalysis{
		FigureType:  domain.UnknownValue,
		Description: fmt.Sprintf("Analysis failed: %v", err),
	}
}
