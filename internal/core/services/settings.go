package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyEmbedBatchSize  = "embedding.batch_size"

	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"

	keyVisionProvider = "vision.provider"
	keyVisionModel    = "vision.model"
	keyVisionBaseURL  = "vision.base_url"
	keyVisionAPIKey   = "vision.api_key"

	keyPDFRoot    = "paths.pdf_root"
	keyDataDir    = "paths.data_dir"
	keyFiguresDir = "paths.figures"
	keyResultsDir = "paths.results"

	keyChunkSize    = "chunking.size"
	keyChunkOverlap = "chunking.overlap"

	keyMemShortTerm     = "memory.enable_short_term"
	keyMemWorking       = "memory.enable_working"
	keyMemLongTerm      = "memory.enable_long_term"
	keyMemMaxPerRecall  = "memory.max_per_recall"
	keyMemThreshold     = "memory.relevance_threshold"
	keyMemConsolidate   = "memory.consolidate_after_round"
	keyMemMinLength     = "memory.min_insight_length"
	keyMemScoring       = "memory.use_importance_scoring"
	keyMemDecay         = "memory.importance_decay_rate"
	keyMemBatchSize     = "memory.batch_size"
	keyMemCache         = "memory.cache_embeddings"
	keyMemMinInsights   = "memory.consolidation.min_insights"
	keyMemMaxInsights   = "memory.consolidation.max_insights"
	keyMemLLMExtraction = "memory.consolidation.use_llm_extraction"
	keyMemExtractModel  = "memory.consolidation.extraction_model"

	keyRetrievalTopK = "retrieval.top_k"

	keyCitationURL     = "citation.registry_url"
	keyCitationMailto  = "citation.mailto"
	keyCitationDelay   = "citation.delay_ms"
	keyCitationTimeout = "citation.timeout_ms"

	keyMultimodal    = "extraction.multimodal"
	keyEquationPages = "extraction.equation_pages"
	keyRenderZoom    = "extraction.render_zoom"

	keyValidatorRetries = "validator.max_retries"
)

// Environment variables that override stored credentials.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

const defaultOllamaURL = "http://localhost:11434"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings. Provider API keys from the
// environment take precedence over stored ones.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			ProviderSettings: s.getProviderSettings(
				keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey, d.Embedding.ProviderSettings),
			Dimensions: s.getInt(keyEmbedDimensions, d.Embedding.Dimensions),
			BatchSize:  s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
		},
		LLM: domain.LLMSettings{
			ProviderSettings: s.getProviderSettings(
				keyLLMProvider, keyLLMModel, keyLLMBaseURL, keyLLMAPIKey, d.LLM.ProviderSettings),
		},
		Vision: domain.VisionSettings{
			ProviderSettings: s.getProviderSettings(
				keyVisionProvider, keyVisionModel, keyVisionBaseURL, keyVisionAPIKey, d.Vision.ProviderSettings),
		},
		Paths: domain.PathSettings{
			PDFRoot:    s.getString(keyPDFRoot, d.Paths.PDFRoot),
			DataDir:    s.getString(keyDataDir, d.Paths.DataDir),
			FiguresDir: s.getString(keyFiguresDir, d.Paths.FiguresDir),
			ResultsDir: s.getString(keyResultsDir, d.Paths.ResultsDir),
		},
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, d.Chunking.Overlap),
		},
		Memory: domain.MemorySettings{
			EnableShortTerm:       s.getBool(keyMemShortTerm, d.Memory.EnableShortTerm),
			EnableWorking:         s.getBool(keyMemWorking, d.Memory.EnableWorking),
			EnableLongTerm:        s.getBool(keyMemLongTerm, d.Memory.EnableLongTerm),
			MaxPerRecall:          s.getInt(keyMemMaxPerRecall, d.Memory.MaxPerRecall),
			RelevanceThreshold:    s.getFloat(keyMemThreshold, d.Memory.RelevanceThreshold),
			ConsolidateAfterRound: s.getBool(keyMemConsolidate, d.Memory.ConsolidateAfterRound),
			MinInsightLength:      s.getInt(keyMemMinLength, d.Memory.MinInsightLength),
			UseImportanceScoring:  s.getBool(keyMemScoring, d.Memory.UseImportanceScoring),
			ImportanceDecayRate:   s.getFloat(keyMemDecay, d.Memory.ImportanceDecayRate),
			BatchSize:             s.getInt(keyMemBatchSize, d.Memory.BatchSize),
			CacheEmbeddings:       s.getBool(keyMemCache, d.Memory.CacheEmbeddings),
			Consolidation: domain.ConsolidationSettings{
				MinInsights:      s.getInt(keyMemMinInsights, d.Memory.Consolidation.MinInsights),
				MaxInsights:      s.getInt(keyMemMaxInsights, d.Memory.Consolidation.MaxInsights),
				UseLLMExtraction: s.getBool(keyMemLLMExtraction, d.Memory.Consolidation.UseLLMExtraction),
				ExtractionModel:  s.getString(keyMemExtractModel, d.Memory.Consolidation.ExtractionModel),
			},
		},
		Retrieval: domain.RetrievalSettings{
			TopK: s.getInt(keyRetrievalTopK, d.Retrieval.TopK),
		},
		Citation: domain.CitationSettings{
			RegistryURL: s.getString(keyCitationURL, d.Citation.RegistryURL),
			Mailto:      s.getString(keyCitationMailto, d.Citation.Mailto),
			Delay:       s.getMillis(keyCitationDelay, d.Citation.Delay),
			Timeout:     s.getMillis(keyCitationTimeout, d.Citation.Timeout),
		},
		Extraction: domain.ExtractionSettings{
			Multimodal:    s.getBool(keyMultimodal, d.Extraction.Multimodal),
			EquationPages: s.getInt(keyEquationPages, d.Extraction.EquationPages),
			RenderZoom:    s.getFloat(keyRenderZoom, d.Extraction.RenderZoom),
		},
		Validator: domain.ValidatorSettings{
			MaxRetries: s.getInt(keyValidatorRetries, d.Validator.MaxRetries),
		},
	}

	s.applyEnv(&settings.Embedding.ProviderSettings)
	s.applyEnv(&settings.LLM.ProviderSettings)
	s.applyEnv(&settings.Vision.ProviderSettings)
	return settings, nil
}

// Save persists application settings. Empty API keys are not written, so
// keys supplied only through the environment never reach the config file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := s.saveProvider(keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey,
		settings.Embedding.ProviderSettings); err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	if err := s.saveProvider(keyLLMProvider, keyLLMModel, keyLLMBaseURL, keyLLMAPIKey,
		settings.LLM.ProviderSettings); err != nil {
		return fmt.Errorf("save llm: %w", err)
	}
	if err := s.saveProvider(keyVisionProvider, keyVisionModel, keyVisionBaseURL, keyVisionAPIKey,
		settings.Vision.ProviderSettings); err != nil {
		return fmt.Errorf("save vision: %w", err)
	}

	m := settings.Memory
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyPDFRoot, settings.Paths.PDFRoot},
		{keyDataDir, settings.Paths.DataDir},
		{keyFiguresDir, settings.Paths.FiguresDir},
		{keyResultsDir, settings.Paths.ResultsDir},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyMemShortTerm, m.EnableShortTerm},
		{keyMemWorking, m.EnableWorking},
		{keyMemLongTerm, m.EnableLongTerm},
		{keyMemMaxPerRecall, m.MaxPerRecall},
		{keyMemThreshold, m.RelevanceThreshold},
		{keyMemConsolidate, m.ConsolidateAfterRound},
		{keyMemMinLength, m.MinInsightLength},
		{keyMemScoring, m.UseImportanceScoring},
		{keyMemDecay, m.ImportanceDecayRate},
		{keyMemBatchSize, m.BatchSize},
		{keyMemCache, m.CacheEmbeddings},
		{keyMemMinInsights, m.Consolidation.MinInsights},
		{keyMemMaxInsights, m.Consolidation.MaxInsights},
		{keyMemLLMExtraction, m.Consolidation.UseLLMExtraction},
		{keyMemExtractModel, m.Consolidation.ExtractionModel},
		{keyRetrievalTopK, settings.Retrieval.TopK},
		{keyCitationURL, settings.Citation.RegistryURL},
		{keyCitationMailto, settings.Citation.Mailto},
		{keyCitationDelay, int(settings.Citation.Delay / time.Millisecond)},
		{keyCitationTimeout, int(settings.Citation.Timeout / time.Millisecond)},
		{keyMultimodal, settings.Extraction.Multimodal},
		{keyEquationPages, settings.Extraction.EquationPages},
		{keyRenderZoom, settings.Extraction.RenderZoom},
		{keyValidatorRetries, settings.Validator.MaxRetries},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

func (s *SettingsService) saveProvider(providerKey, modelKey, urlKey, apiKeyKey string, p domain.ProviderSettings) error {
	if err := s.configStore.Set(providerKey, p.Provider.String()); err != nil {
		return err
	}
	if err := s.configStore.Set(modelKey, p.Model); err != nil {
		return err
	}
	if err := s.configStore.Set(urlKey, p.BaseURL); err != nil {
		return err
	}
	if p.APIKey != "" && p.APIKey != s.envKey(p.Provider) {
		if err := s.configStore.Set(apiKeyKey, p.APIKey); err != nil {
			return err
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !supports(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if err := s.requireKey(provider, apiKey); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Embedding.ProviderSettings = configureProvider(
		settings.Embedding.ProviderSettings, provider, model, apiKey, domain.DefaultEmbeddingModels())

	// Vector size follows the model.
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}
	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if !supports(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("provider %s does not support completions", provider)
	}
	if err := s.requireKey(provider, apiKey); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.LLM.ProviderSettings = configureProvider(
		settings.LLM.ProviderSettings, provider, model, apiKey, domain.DefaultLLMModels())
	return s.Save(settings)
}

// SetVisionProvider configures the vision provider.
func (s *SettingsService) SetVisionProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid vision provider: %s", provider)
	}
	if !supports(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("provider %s does not support vision", provider)
	}
	if err := s.requireKey(provider, apiKey); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Vision.ProviderSettings = configureProvider(
		settings.Vision.ProviderSettings, provider, model, apiKey, domain.DefaultVisionModels())
	return s.Save(settings)
}

// ApplyMemoryPreset replaces memory settings with a named preset.
func (s *SettingsService) ApplyMemoryPreset(preset domain.MemoryPreset) error {
	switch preset {
	case domain.MemoryPresetDefault, domain.MemoryPresetCost, domain.MemoryPresetQuality:
	default:
		return fmt.Errorf("unknown memory preset: %s", preset)
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Memory = domain.MemorySettingsForPreset(preset)
	return s.Save(settings)
}

// Validate checks that current settings are usable. Embeddings are always
// required; the LLM and vision providers are optional but must be complete
// when chosen.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %q is not configured", settings.LLM.Provider)
	}
	if settings.Vision.Provider != "" && !settings.Vision.IsConfigured() {
		return fmt.Errorf("vision provider %q is not configured", settings.Vision.Provider)
	}
	if settings.Chunking.Size <= 0 || settings.Chunking.Overlap < 0 || settings.Chunking.Overlap >= settings.Chunking.Size {
		return fmt.Errorf("invalid chunking: size %d, overlap %d", settings.Chunking.Size, settings.Chunking.Overlap)
	}
	if t := settings.Memory.RelevanceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("memory relevance threshold %.2f outside [0, 1]", t)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// ValidateVisionConfig validates the current vision configuration. An unset
// vision provider is valid: figure analysis is simply skipped.
func (s *SettingsService) ValidateVisionConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if settings.Vision.Provider == "" {
		return nil
	}
	return s.aiValidator.ValidateVision(&settings.Vision)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return time.Duration(s.configStore.GetInt(key)) * time.Millisecond
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getProviderSettings(
	providerKey, modelKey, urlKey, apiKeyKey string,
	defaults domain.ProviderSettings,
) domain.ProviderSettings {
	return domain.ProviderSettings{
		Provider: s.getProvider(providerKey, defaults.Provider),
		Model:    s.getString(modelKey, defaults.Model),
		BaseURL:  s.configStore.GetString(urlKey), // No default - empty is valid for cloud providers
		APIKey:   s.configStore.GetString(apiKeyKey),
	}
}

func (s *SettingsService) envKey(p domain.AIProvider) string {
	switch p {
	case domain.AIProviderOpenAI:
		return s.getenv(EnvOpenAIKey)
	case domain.AIProviderAnthropic:
		return s.getenv(EnvAnthropicKey)
	default:
		return ""
	}
}

func (s *SettingsService) applyEnv(p *domain.ProviderSettings) {
	if key := s.envKey(p.Provider); key != "" {
		p.APIKey = key
	}
}

func (s *SettingsService) requireKey(provider domain.AIProvider, apiKey string) error {
	if provider.RequiresAPIKey() && apiKey == "" && s.envKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}
	return nil
}

func configureProvider(
	current domain.ProviderSettings,
	provider domain.AIProvider,
	model, apiKey string,
	defaults map[domain.AIProvider]string,
) domain.ProviderSettings {
	current.Provider = provider
	if model != "" {
		current.Model = model
	} else if m, ok := defaults[provider]; ok {
		current.Model = m
	}
	switch {
	case provider == domain.AIProviderOllama:
		if current.BaseURL == "" {
			current.BaseURL = defaultOllamaURL
		}
	default:
		current.BaseURL = ""
	}
	current.APIKey = apiKey
	return current
}

func supports(providers []domain.AIProvider, p domain.AIProvider) bool {
	for _, x := range providers {
		if x == p {
			return true
		}
	}
	return false
}
