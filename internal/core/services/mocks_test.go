package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// mockEmbedder returns fixed vectors per text and a shared default for
// everything else.
type mockEmbedder struct {
	mu          sync.Mutex
	vectors     map[string][]float32
	fallback    []float32
	err         error
	failBatches int
	batchCalls  int
	embedCalls  int
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		vectors:  make(map[string][]float32),
		fallback: []float32{0, 0, 1},
	}
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return m.fallback
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.err != nil {
		return nil, m.err
	}
	if m.failBatches > 0 {
		m.failBatches--
		return nil, errors.New("embedding backend busy")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return 3 }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return m.err }
func (m *mockEmbedder) Close() error                 { return nil }

// mockLLM replays scripted completions in order. The last one repeats
// once the script runs out.
type mockLLM struct {
	mu        sync.Mutex
	responses []*driven.Completion
	err       error
	requests  []driven.CompletionRequest
}

func newMockLLM(responses ...*driven.Completion) *mockLLM {
	return &mockLLM{responses: responses}
}

func textReply(text string) *driven.Completion {
	return &driven.Completion{Text: text}
}

func toolReply(calls ...domain.ToolCall) *driven.Completion {
	return &driven.Completion{ToolCalls: calls}
}

func (m *mockLLM) Complete(_ context.Context, req driven.CompletionRequest) (*driven.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.Messages = append([]driven.ChatMessage(nil), req.Messages...)
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &driven.Completion{}, nil
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockVision answers every prompt through respond and records the prompts.
type mockVision struct {
	mu      sync.Mutex
	respond func(prompt string) (string, error)
	prompts []string
}

func (m *mockVision) Describe(_ context.Context, _ []byte, _ string, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.respond == nil {
		return "", errors.New("no response scripted")
	}
	return m.respond(prompt)
}

func (m *mockVision) ModelName() string { return "mock-vision" }

func (m *mockVision) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// mockPromptStore serves short templates with the same placeholders as
// the bundled prompts.
type mockPromptStore struct {
	templates map[string]string
	err       error
}

func newMockPromptStore() *mockPromptStore {
	return &mockPromptStore{templates: map[string]string{
		driven.PromptInsightExtraction: "Extract %d-%d insights from:\n%s",
		driven.PromptContributionPlan:  "Round %d\nAgenda: %s\nQuestions:\n%s\nPrevious insights:\n%s",
		driven.PromptFigureAnalysis:    "Describe this figure.",
		driven.PromptPlotData:          "Extract the plot data.",
		driven.PromptPanelDetection:    "Find the panels of this %dx%d figure.",
		driven.PromptEquationDetection: "Find the equations on this %dx%d page.",
		driven.PromptEquationOCR:       "Transcribe this equation.",
		driven.PromptAgentSystem:       "You are %s, an expert in %s, speaking for %s.",
	}}
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	t, ok := m.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt %s: %w", name, domain.ErrNotFound)
	}
	return t, nil
}

func (m *mockPromptStore) Reload() {}

// mockCodec is a PNG-only codec.
type mockCodec struct{}

func (mockCodec) Decode(data []byte) (image.Image, string, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return img, "image/png", nil
}

func (mockCodec) Crop(img image.Image, box domain.BBox) image.Image {
	r := image.Rect(box.X0, box.Y0, box.X1, box.Y1)
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

func (mockCodec) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (mockCodec) DetectMIME(data []byte) (string, string) {
	if bytes.HasPrefix(data, []byte("\x89PNG")) {
		return "image/png", "png"
	}
	return "", ""
}

// pngBytes encodes a noisy image so it survives the byte-size filter.
func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8((x ^ y) * 3), A: 255})
		}
	}
	data, _ := mockCodec{}.EncodePNG(img)
	return data
}

// mockPDF is an in-memory document.
type mockPDF struct {
	pages     []string
	info      map[string]string
	images    map[int][]domain.ImageCandidate
	textErrs  map[int]error
	panicPage int
	closed    bool
}

func (d *mockPDF) NumPages() int { return len(d.pages) }

func (d *mockPDF) Info() map[string]string { return d.info }

func (d *mockPDF) PageText(page int) (string, error) {
	if page == d.panicPage {
		panic("malformed content stream")
	}
	if err := d.textErrs[page]; err != nil {
		return "", err
	}
	return d.pages[page-1], nil
}

func (d *mockPDF) PageImages(page int) ([]domain.ImageCandidate, error) {
	return d.images[page], nil
}

func (d *mockPDF) PageSize(int) (float64, float64, error) {
	return 300, 400, nil
}

func (d *mockPDF) Close() error {
	d.closed = true
	return nil
}

type mockOpener struct {
	docs map[string]*mockPDF
}

func (o *mockOpener) Open(path string) (driven.PDFDocument, error) {
	for name, doc := range o.docs {
		if strings.HasSuffix(path, name) {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("open %s: %w", path, domain.ErrNotFound)
}

// mockRenderer renders every page as a blank 600x800 canvas.
type mockRenderer struct{}

func (mockRenderer) RenderPage(_ context.Context, _ driven.PDFDocument, _ int, zoom float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, int(300*zoom), int(400*zoom))), nil
}

type mockRegistry struct {
	work  *domain.RegistryWork
	err   error
	calls []string
}

func (r *mockRegistry) Lookup(_ context.Context, doi string) (*domain.RegistryWork, error) {
	r.calls = append(r.calls, doi)
	if r.err != nil {
		return nil, r.err
	}
	return r.work, nil
}

// mockPipeline emits one chunk per non-empty page.
type mockPipeline struct {
	err error
}

func (p *mockPipeline) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	var chunks []domain.Chunk
	for _, page := range doc.Pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		meta := doc.BaseMetadata()
		meta[domain.MetaContentType] = string(domain.ContentText)
		meta[domain.MetaChunkIndex] = len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:       domain.ChunkID(doc.Domain.PapersCollection(), doc.Filename(), len(chunks), page),
			Text:     page,
			Position: len(chunks),
			Metadata: meta,
		})
	}
	return chunks, nil
}

// mockRetrieval records agent queries and echoes them back.
type mockRetrieval struct {
	mu      sync.Mutex
	queries []retrievalCall
}

type retrievalCall struct {
	text   string
	domain domain.KnowledgeDomain
	topK   int
	tool   bool
}

func (r *mockRetrieval) record(c retrievalCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, c)
}

func (r *mockRetrieval) Query(context.Context, string, domain.KnowledgeDomain, int) ([]domain.RetrievedChunk, error) {
	return nil, nil
}

func (r *mockRetrieval) FormatResults([]domain.RetrievedChunk) string { return "" }

func (r *mockRetrieval) QueryForAgent(_ context.Context, text string, d domain.KnowledgeDomain, topK int) string {
	r.record(retrievalCall{text: text, domain: d, topK: topK})
	return "evidence for " + text
}

func (r *mockRetrieval) QueryAsTool(_ context.Context, text string, d domain.KnowledgeDomain, topK int) string {
	r.record(retrievalCall{text: text, domain: d, topK: topK, tool: true})
	return "tool evidence for " + text
}

// mockMemory records remembered turns and serves a fixed context block.
type mockMemory struct {
	mu         sync.Mutex
	context    string
	contextErr error
	recalled   []domain.MemoryRecord
	remembered []rememberCall
}

type rememberCall struct {
	text       string
	meta       map[string]any
	importance float64
	tier       domain.MemoryTier
	round      int
}

func (m *mockMemory) Remember(_ context.Context, _ *domain.SymposiumSession, text string, meta map[string]any,
	importance float64, tier domain.MemoryTier, round int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remembered = append(m.remembered, rememberCall{text, meta, importance, tier, round})
	return fmt.Sprintf("mem-%d", len(m.remembered)), nil
}

func (m *mockMemory) Recall(context.Context, *domain.SymposiumSession, string, domain.RecallOptions) ([]domain.MemoryRecord, error) {
	return m.recalled, nil
}

func (m *mockMemory) ConsolidateRound(context.Context, *domain.SymposiumSession, string, int, bool) ([]string, error) {
	return nil, nil
}

func (m *mockMemory) PromoteToLongTerm(context.Context, *domain.SymposiumSession, []string) (int, error) {
	return 0, nil
}

func (m *mockMemory) Statistics(context.Context, *domain.SymposiumSession) (*domain.MemoryStatistics, error) {
	return &domain.MemoryStatistics{}, nil
}

func (m *mockMemory) ContextForRound(context.Context, *domain.SymposiumSession, string, []string, int) (string, error) {
	return m.context, m.contextErr
}

func (m *mockMemory) ClearShortTerm(*domain.SymposiumSession) {}

// mockAIConfigValidator records which validations ran.
type mockAIConfigValidator struct {
	embeddingErr error
	llmErr       error
	visionErr    error
	calls        []string
}

func (m *mockAIConfigValidator) ValidateEmbedding(*domain.EmbeddingSettings) error {
	m.calls = append(m.calls, "embedding")
	return m.embeddingErr
}

func (m *mockAIConfigValidator) ValidateLLM(*domain.LLMSettings) error {
	m.calls = append(m.calls, "llm")
	return m.llmErr
}

func (m *mockAIConfigValidator) ValidateVision(*domain.VisionSettings) error {
	m.calls = append(m.calls, "vision")
	return m.visionErr
}

// mockCharts records the figures it is asked to draw.
type mockCharts struct {
	plots []domain.Plot
	maps  []domain.ConceptMap
	err   error
}

func (m *mockCharts) RenderPlot(_ context.Context, p domain.Plot) (image.Image, error) {
	m.plots = append(m.plots, p)
	if m.err != nil {
		return nil, m.err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 3)), nil
}

func (m *mockCharts) RenderConceptMap(_ context.Context, cm domain.ConceptMap) (image.Image, error) {
	m.maps = append(m.maps, cm)
	if m.err != nil {
		return nil, m.err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 3)), nil
}
