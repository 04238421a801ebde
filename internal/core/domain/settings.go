package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings, LLM or vision.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderHash is the offline feature-hashing embedder.
	AIProviderHash AIProvider = "hash"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderHash:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHash
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderHash:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// ProviderSettings holds the connection details shared by every AI backend.
type ProviderSettings struct {
	// Provider is the service provider.
	Provider AIProvider

	// Model is the model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the provider is set up.
func (p ProviderSettings) IsConfigured() bool {
	if !p.Provider.IsValid() {
		return false
	}
	if p.Provider.RequiresAPIKey() && p.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	ProviderSettings

	// Dimensions overrides the model's default vector size.
	Dimensions int

	// BatchSize is the number of texts per embedding call.
	BatchSize int
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	ProviderSettings
}

// VisionSettings holds the vision-capable model used for figure analysis,
// panel detection and equation region detection.
type VisionSettings struct {
	ProviderSettings
}

// PathSettings holds the filesystem layout.
type PathSettings struct {
	// PDFRoot contains one subfolder of PDFs per knowledge domain.
	PDFRoot string

	// DataDir holds the vector store and memory store databases.
	DataDir string

	// FiguresDir receives extracted figure images, mirrored by domain.
	FiguresDir string

	// ResultsDir receives plots and concept maps drawn by agents.
	ResultsDir string
}

// ChunkingSettings holds text splitter configuration.
type ChunkingSettings struct {
	Size    int
	Overlap int
}

// ConsolidationSettings controls round consolidation.
type ConsolidationSettings struct {
	MinInsights      int
	MaxInsights      int
	UseLLMExtraction bool
	ExtractionModel  string
}

// MemorySettings controls the agent memory store.
type MemorySettings struct {
	EnableShortTerm bool
	EnableWorking   bool
	EnableLongTerm  bool

	MaxPerRecall       int
	RelevanceThreshold float64

	ConsolidateAfterRound bool
	MinInsightLength      int

	UseImportanceScoring bool

	// ImportanceDecayRate multiplies the importance of long-term records
	// written by an earlier symposium.
	ImportanceDecayRate float64

	BatchSize       int
	CacheEmbeddings bool

	Consolidation ConsolidationSettings
}

// MemoryPreset names a bundled memory configuration.
type MemoryPreset string

// Memory presets.
const (
	MemoryPresetDefault MemoryPreset = "default"
	MemoryPresetCost    MemoryPreset = "cost"
	MemoryPresetQuality MemoryPreset = "quality"
)

// DefaultMemorySettings returns the default memory configuration.
func DefaultMemorySettings() MemorySettings {
	return MemorySettings{
		EnableShortTerm:       true,
		EnableWorking:         true,
		EnableLongTerm:        true,
		MaxPerRecall:          3,
		RelevanceThreshold:    0.6,
		ConsolidateAfterRound: true,
		MinInsightLength:      50,
		UseImportanceScoring:  true,
		ImportanceDecayRate:   0.95,
		BatchSize:             10,
		CacheEmbeddings:       true,
		Consolidation: ConsolidationSettings{
			MinInsights:      2,
			MaxInsights:      5,
			UseLLMExtraction: true,
			ExtractionModel:  "gpt-4o-mini",
		},
	}
}

// MemorySettingsForPreset returns the configuration for a named preset.
// Unknown names return the defaults.
func MemorySettingsForPreset(p MemoryPreset) MemorySettings {
	s := DefaultMemorySettings()
	switch p {
	case MemoryPresetCost:
		s.EnableLongTerm = false
		s.MaxPerRecall = 2
		s.ConsolidateAfterRound = false
		s.UseImportanceScoring = false
	case MemoryPresetQuality:
		s.MaxPerRecall = 5
		s.RelevanceThreshold = 0.5
	}
	return s
}

// RetrievalSettings controls knowledge base queries.
type RetrievalSettings struct {
	TopK int
}

// CitationSettings controls the bibliographic registry client.
type CitationSettings struct {
	RegistryURL string
	Mailto      string
	Delay       time.Duration
	Timeout     time.Duration
}

// ExtractionSettings controls figure and equation extraction.
type ExtractionSettings struct {
	Multimodal bool

	// EquationPages caps visual equation detection to the first N pages.
	EquationPages int

	// RenderZoom is the page rendering scale for region detection.
	RenderZoom float64
}

// ValidatorSettings controls the validated turn loop.
type ValidatorSettings struct {
	MaxRetries int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Vision     VisionSettings
	Paths      PathSettings
	Chunking   ChunkingSettings
	Memory     MemorySettings
	Retrieval  RetrievalSettings
	Citation   CitationSettings
	Extraction ExtractionSettings
	Validator  ValidatorSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Cloud AI providers are left unconfigured; embeddings default to the
// offline hashing embedder so ingestion works without credentials.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			ProviderSettings: ProviderSettings{Provider: AIProviderHash, Model: "hash-384"},
			Dimensions:       384,
			BatchSize:        64,
		},
		Paths: PathSettings{
			PDFRoot:    "pdfs",
			DataDir:    "data",
			FiguresDir: "figures",
			ResultsDir: "results",
		},
		Chunking: ChunkingSettings{
			Size:    1000,
			Overlap: 200,
		},
		Memory:    DefaultMemorySettings(),
		Retrieval: RetrievalSettings{TopK: 5},
		Citation: CitationSettings{
			RegistryURL: "https://api.crossref.org",
			Mailto:      "research@example.org",
			Delay:       500 * time.Millisecond,
			Timeout:     10 * time.Second,
		},
		Extraction: ExtractionSettings{
			Multimodal:    true,
			EquationPages: 10,
			RenderZoom:    2,
		},
		Validator: ValidatorSettings{MaxRetries: 1},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderHash,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHash:   "hash-384",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// DefaultVisionModels returns default vision-capable models for each provider.
func DefaultVisionModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llava",
		AIProviderOpenAI:    "gpt-4o",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Offline
		"hash-384": 384,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so processors can be added without
// modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor returns the text pipeline configuration for the chunking settings.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "chunk_metadata"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.Size,
				"overlap":    c.Overlap,
			},
		},
	}
}
