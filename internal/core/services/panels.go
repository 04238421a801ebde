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

// Ensure PanelSegmenter can take custom prompts.
var _ driven.PromptStoreAware = (*PanelSegmenter)(nil)

// panelDetection is the vision model's answer to the panel prompt.
type panelDetection struct {
	IsMultiPanel domain.FlexBool `json:"is_multi_panel"`
	NumPanels    int             `json:"num_panels"`
	Layout       string          `json:"layout"`
	PanelLabels  domain.TextList `json:"panel_labels"`
	Panels       []struct {
		Label       domain.TextValue `json:"label"`
		BBox        []float64        `json:"bbox"`
		Description string           `json:"description"`
		Type        string           `json:"type"`
	} `json:"panels"`
}

// PanelSegmenter decomposes multi-panel figures into cropped sub-figures.
type PanelSegmenter struct {
	vision  driven.VisionService
	codec   driven.ImageCodec
	prompts driven.PromptStore
}

// NewPanelSegmenter creates a segmenter. Without a vision service every
// figure is treated as a single panel.
func NewPanelSegmenter(vision driven.VisionService, codec driven.ImageCodec) *PanelSegmenter {
	return &PanelSegmenter{vision: vision, codec: codec}
}

// SetPromptStore sets the prompt store for the panel detection prompt.
func (s *PanelSegmenter) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Segment detects panels in a figure, crops each one into outDir and
// matches sub-captions. Anything short of a parsed multi-panel answer
// yields the whole image as a single panel.
func (s *PanelSegmenter) Segment(ctx context.Context, fig domain.Figure, outDir string) domain.ParseResult[domain.Segmentation] {
	single := singlePanel(fig)
	if s.vision == nil {
		return domain.Fallback(single, domain.ErrVisionUnavailable.Error())
	}

	var img imageWithSize
	if err := guard("decode figure", func() error {
		var err error
		img, err = decodeSized(s.codec, fig.Data)
		return err
	}); err != nil {
		logger.Warn("Panel detection skipped for %s: %v", filepath.Base(fig.Path), err)
		return domain.Fallback(single, err.Error())
	}

	prompt, err := renderPrompt(s.prompts, driven.PromptPanelDetection, img.width, img.height)
	if err != nil {
		return domain.Fallback(single, err.Error())
	}
	if fig.Caption != "" {
		prompt += "\n\nFigure caption: " + fig.Caption
	}

	mime := fig.MIME
	if mime == "" {
		mime = img.mime
	}
	resp, err := s.vision.Describe(ctx, fig.Data, mime, prompt)
	if err != nil {
		logger.Warn("Panel detection failed for %s: %v", filepath.Base(fig.Path), err)
		return domain.Fallback(single, err.Error())
	}

	var det panelDetection
	if err := decodeModelJSON(resp, &det); err != nil {
		logger.Debug("Unparseable panel detection for %s: %v", filepath.Base(fig.Path), err)
		return domain.Fallback(single, "could not parse panel detection response")
	}
	if !det.IsMultiPanel {
		return domain.Ok(single)
	}

	layout := det.Layout
	if layout == "" {
		layout = "unknown"
	}
	logger.Debug("Multi-panel figure %s: %d panels, layout %s", filepath.Base(fig.Path), det.NumPanels, layout)

	seg := domain.Segmentation{IsMultiPanel: true, Layout: layout}
	base := strings.TrimSuffix(filepath.Base(fig.Path), filepath.Ext(fig.Path))
	for _, p := range det.Panels {
		label := string(p.Label)
		if label == "" {
			label = "unknown"
		}
		if len(p.BBox) != 4 {
			logger.Warn("Panel %s of %s has no usable bounding box", label, base)
			continue
		}
		box := domain.BBox{
			X0: int(p.BBox[0]), Y0: int(p.BBox[1]),
			X1: int(p.BBox[2]), Y1: int(p.BBox[3]),
		}.Clamp(img.width, img.height)
		if box.Degenerate() || !box.Within(img.width, img.height) {
			logger.Warn("Invalid bbox for panel %s of %s: %v", label, base, p.BBox)
			continue
		}

		path := filepath.Join(outDir, fmt.Sprintf("%s_panel_%s.png", base, fileSafe(label)))
		var data []byte
		if err := guard("crop panel", func() error {
			var err error
			data, err = s.codec.EncodePNG(s.codec.Crop(img.Image, box))
			if err != nil {
				return err
			}
			return writeArtifact(path, data)
		}); err != nil {
			logger.Warn("Could not crop panel %s of %s: %v", label, base, err)
			continue
		}

		kind := p.Type
		if kind == "" {
			kind = "unknown"
		}
		b := box
		seg.Panels = append(seg.Panels, domain.Panel{
			Label:       label,
			BBox:        &b,
			Description: p.Description,
			Type:        kind,
			IsPanel:     true,
			Path:        path,
			Data:        data,
		})
	}

	if len(seg.Panels) == 0 {
		logger.Warn("No panel of %s survived cropping, keeping the whole figure", base)
		return domain.Fallback(single, "no usable panels")
	}

	if fig.Caption != "" {
		labels := []string(det.PanelLabels)
		if len(labels) == 0 {
			for _, p := range seg.Panels {
				labels = append(labels, p.Label)
			}
		}
		subs := MatchSubCaptions(fig.Caption, labels)
		for i := range seg.Panels {
			seg.Panels[i].SubCaption = subs[seg.Panels[i].Label]
		}
	}
	return domain.Ok(seg)
}

func singlePanel(fig domain.Figure) domain.Segmentation {
	return domain.Segmentation{
		Layout: "single",
		Panels: []domain.Panel{{Label: "full", Path: fig.Path, IsPanel: false}},
	}
}

// fileSafe keeps a model-supplied label usable as a filename component.
func fileSafe(label string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, label)
}
