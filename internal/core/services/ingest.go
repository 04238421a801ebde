package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestConfig holds the filesystem layout and batching for ingestion.
type IngestConfig struct {
	// PDFRoot holds one folder of PDFs per domain.
	PDFRoot string
	// FiguresDir receives extracted images, one folder per domain.
	FiguresDir string
	// BatchSize is the number of chunk texts per embedding call.
	BatchSize int
	// EmbedRetries bounds retries of a failed embedding batch.
	EmbedRetries uint64
	// RetryBackoff is the base of the exponential backoff between retries.
	RetryBackoff time.Duration
}

// IngestService turns domain folders of PDFs into paper collections.
type IngestService struct {
	store     driven.VectorStore
	embedder  driven.EmbeddingService
	opener    driven.PDFOpener
	pipeline  driven.PostProcessorPipeline
	extractor *ContentExtractor
	citations *CitationResolver

	// Optional figure handling; without an analyzer figures produce no chunks.
	analyzer  *FigureAnalyzer
	segmenter *PanelSegmenter

	cfg IngestConfig

	// Store writes are serialised within the process.
	writeMu sync.Mutex
}

// NewIngestService creates an ingest service.
func NewIngestService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	opener driven.PDFOpener,
	pipeline driven.PostProcessorPipeline,
	extractor *ContentExtractor,
	citations *CitationResolver,
	cfg IngestConfig,
) *IngestService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &IngestService{
		store:     store,
		embedder:  embedder,
		opener:    opener,
		pipeline:  pipeline,
		extractor: extractor,
		citations: citations,
		cfg:       cfg,
	}
}

// SetFigureProcessing enables figure description and panel segmentation.
func (s *IngestService) SetFigureProcessing(analyzer *FigureAnalyzer, segmenter *PanelSegmenter) {
	s.analyzer = analyzer
	s.segmenter = segmenter
}

// Ingest processes every requested domain folder in order.
func (s *IngestService) Ingest(ctx context.Context, opts domain.IngestOptions) (*domain.IngestSummary, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	domains := opts.Domains
	if len(domains) == 0 {
		domains = domain.AllDomains()
	}

	summary := &domain.IngestSummary{}
	for _, d := range domains {
		if !d.IsValid() {
			return summary, fmt.Errorf("ingest: %w: %q", domain.ErrInvalidDomain, d)
		}
		ds, err := s.ingestDomain(ctx, d, opts.Multimodal)
		summary.Domains = append(summary.Domains, ds)
		if err != nil {
			return summary, err
		}
	}

	logger.Info("Ingestion complete: %d chunks added, %d errors", summary.TotalChunks(), summary.TotalErrors())
	return summary, nil
}

func (s *IngestService) ingestDomain(ctx context.Context, d domain.KnowledgeDomain, multimodal bool) (domain.DomainSummary, error) {
	ds := domain.DomainSummary{Domain: d, Failures: make(map[string]string)}

	files, err := s.domainPDFs(d)
	if err != nil {
		logger.Warn("Domain directory not readable for %s: %v", d, err)
		return ds, nil
	}
	if len(files) == 0 {
		logger.Warn("No PDF files found in %s/", d)
		return ds, nil
	}

	logger.Section(fmt.Sprintf("Processing %d PDFs from %s/", len(files), d))
	if _, err := s.ensureCollection(ctx, d); err != nil {
		return ds, err
	}
	done, err := s.AlreadyIngested(ctx, d)
	if err != nil {
		return ds, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return ds, err
		}
		ds.Seen++
		name := filepath.Base(path)
		if _, ok := done[name]; ok {
			logger.Debug("Already ingested: %s", name)
			ds.Skipped++
			continue
		}

		n, err := s.IngestDocument(ctx, path, d, multimodal)
		if err != nil {
			if ctx.Err() != nil {
				return ds, ctx.Err()
			}
			logger.Warn("Error processing %s: %v", name, err)
			ds.Errors++
			ds.Failures[name] = err.Error()
			continue
		}
		ds.Ingested++
		ds.ChunksAdded += n
		logger.Info("Ingested %s: %d chunks", name, n)
	}
	return ds, nil
}

func (s *IngestService) domainPDFs(d domain.KnowledgeDomain) ([]string, error) {
	dir := filepath.Join(s.cfg.PDFRoot, d.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (s *IngestService) ensureCollection(ctx context.Context, d domain.KnowledgeDomain) (*driven.Collection, error) {
	c, err := s.store.EnsureCollection(ctx, d.PapersCollection(), map[string]any{
		domain.MetaDomain: d.String(),
		"description":     d.Description(),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", d.PapersCollection(), err)
	}
	return c, nil
}

// AlreadyIngested returns the filenames present in the domain's collection.
// A collection that does not exist yet holds nothing.
func (s *IngestService) AlreadyIngested(ctx context.Context, d domain.KnowledgeDomain) (map[string]struct{}, error) {
	names, err := s.store.DistinctValues(ctx, d.PapersCollection(), domain.MetaFilename)
	if err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("list ingested files: %w", err)
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

// IngestDocument extracts, chunks, embeds and stores one PDF. Nothing is
// written unless every chunk was embedded.
func (s *IngestService) IngestDocument(ctx context.Context, path string, d domain.KnowledgeDomain, multimodal bool) (int, error) {
	if s.embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	if !d.IsValid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDomain, d)
	}

	var pdf driven.PDFDocument
	if err := guard("open "+filepath.Base(path), func() error {
		var err error
		pdf, err = s.opener.Open(path)
		return err
	}); err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer pdf.Close()

	doc := &domain.Document{Path: path, Domain: d}
	extraction, err := s.extractor.Extract(ctx, pdf, ExtractRequest{
		Domain:     d,
		Stem:       doc.Stem(),
		Multimodal: multimodal,
	})
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	doc.Pages = extraction.Pages

	var info map[string]string
	if err := guard("metadata", func() error {
		info = pdf.Info()
		return nil
	}); err != nil {
		logger.Warn("Could not read metadata of %s: %v", doc.Filename(), err)
	}
	doc.Citation = s.citations.Resolve(ctx, info, doc.Pages)

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("chunk text: %w", err)
	}
	logger.Debug("Extracted %d text chunks from %s", len(chunks), doc.Filename())

	if multimodal {
		chunks = append(chunks, s.mediaChunks(ctx, doc, extraction, len(chunks))...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		return 0, err
	}

	if _, err := s.ensureCollection(ctx, d); err != nil {
		return 0, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.store.Add(ctx, d.PapersCollection(), chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

// mediaChunks builds one chunk per figure panel and per equation,
// numbered after the text chunks.
func (s *IngestService) mediaChunks(ctx context.Context, doc *domain.Document, ex *domain.Extraction, offset int) []domain.Chunk {
	var chunks []domain.Chunk
	add := func(text string, extra map[string]any) {
		if strings.TrimSpace(text) == "" {
			return
		}
		pos := offset + len(chunks)
		meta := doc.BaseMetadata()
		for k, v := range extra {
			meta[k] = v
		}
		meta[domain.MetaChunkIndex] = pos
		meta[domain.MetaCharCount] = utf8.RuneCountInString(text)
		chunks = append(chunks, domain.Chunk{
			ID:       domain.ChunkID(doc.Domain.PapersCollection(), doc.Filename(), pos, text),
			Text:     text,
			Position: pos,
			Metadata: meta,
		})
	}

	if s.analyzer != nil {
		for _, fig := range ex.Figures {
			if ctx.Err() != nil {
				break
			}
			for _, fc := range s.describeFigure(ctx, doc, fig) {
				add(fc.text, fc.meta)
			}
		}
	}

	for _, eq := range ex.Equations {
		meta := map[string]any{
			domain.MetaContentType:  string(domain.ContentEquation),
			domain.MetaPage:         eq.Page,
			domain.MetaEquationType: string(eq.Type),
		}
		if eq.Number != "" {
			meta[domain.MetaEquationNumber] = eq.Number
		}
		if eq.ImagePath != "" {
			meta[domain.MetaImagePath] = eq.ImagePath
		}
		add(eq.ChunkText(), meta)
	}

	for i := range chunks {
		chunks[i].Metadata[domain.MetaTotalChunks] = offset + len(chunks)
	}
	return chunks
}

type figureChunk struct {
	text string
	meta map[string]any
}

// describeFigure analyses a figure, or each of its panels when the
// segmenter finds more than one.
func (s *IngestService) describeFigure(ctx context.Context, doc *domain.Document, fig domain.Figure) []figureChunk {
	panels := []domain.Panel{{Label: "full", Path: fig.Path}}
	if s.segmenter != nil {
		outDir := filepath.Join(s.cfg.FiguresDir, doc.Domain.String(), "panels")
		seg := s.segmenter.Segment(ctx, fig, outDir)
		if !seg.IsOk() {
			logger.Debug("Panel segmentation fell back for %s: %s", filepath.Base(fig.Path), seg.Reason)
		}
		if seg.Value.IsMultiPanel {
			panels = seg.Value.Panels
		}
	}

	var out []figureChunk
	for _, p := range panels {
		data, mime, caption := fig.Data, fig.MIME, fig.Caption
		if p.IsPanel {
			data, mime = p.Data, "image/png"
			if p.SubCaption != "" {
				caption = p.SubCaption
			}
		}

		res := s.analyzer.Analyze(ctx, data, mime, caption)
		if !res.IsOk() {
			logger.Warn("Figure analysis fell back for %s: %s", filepath.Base(fig.Path), res.Reason)
		}
		analysis := res.Value

		label := ""
		if p.IsPanel {
			label = p.Label
		}
		text := analysis.ChunkText(fig.Caption, label)

		if bool(analysis.DataExtractable) && analysis.IsPlot() {
			if plot := s.analyzer.PlotData(ctx, data, mime); plot.IsOk() {
				if plot.Value.Trends != "" {
					text += " | Trends: " + string(plot.Value.Trends)
				}
				if plot.Value.DataPoints != "" {
					text += " | Data points: " + string(plot.Value.DataPoints)
				}
			} else {
				logger.Warn("Could not extract plot data from %s: %s", filepath.Base(fig.Path), plot.Reason)
			}
		}

		path := fig.Path
		if p.IsPanel && p.Path != "" {
			path = p.Path
		}
		meta := map[string]any{
			domain.MetaContentType: string(domain.ContentFigure),
			domain.MetaPage:        fig.Page,
			domain.MetaImagePath:   path,
			domain.MetaFigureType:  analysis.FigureType,
		}
		if label != "" {
			meta[domain.MetaPanelLabel] = label
		}
		out = append(out, figureChunk{text: text, meta: meta})
	}
	return out
}

// embedChunks fills in embeddings batch by batch. A failing batch is
// retried with exponential backoff before the document is abandoned.
func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		var vectors [][]float32
		backoff := retry.WithMaxRetries(s.cfg.EmbedRetries, retry.NewExponential(s.cfg.RetryBackoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			v, err := s.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrInvalidInput) {
					return err
				}
				logger.Debug("Embedding batch %d-%d failed, retrying: %v", start, end, err)
				return retry.RetryableError(err)
			}
			vectors = v
			return nil
		})
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed chunks %d-%d: got %d vectors for %d texts", start, end, len(vectors), len(texts))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// Stats reports per-domain collection counts without ingesting.
func (s *IngestService) Stats(ctx context.Context) ([]domain.CollectionStats, error) {
	stats := make([]domain.CollectionStats, 0, len(domain.AllDomains()))
	for _, d := range domain.AllDomains() {
		st := domain.CollectionStats{
			Domain:      d,
			Name:        d.PapersCollection(),
			Description: d.Description(),
		}
		count, err := s.store.Count(ctx, st.Name)
		switch {
		case errors.Is(err, domain.ErrCollectionNotFound):
		case err != nil:
			return nil, fmt.Errorf("count %s: %w", st.Name, err)
		default:
			st.Count = count
			files, err := s.store.DistinctValues(ctx, st.Name, domain.MetaFilename)
			if err != nil {
				return nil, fmt.Errorf("list documents of %s: %w", st.Name, err)
			}
			st.Documents = len(files)
		}
		stats = append(stats, st)
	}
	return stats, nil
}
