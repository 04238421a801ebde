// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	embedcache "github.com/custodia-labs/agora/internal/adapters/driven/embedding/cache"
	hashembed "github.com/custodia-labs/agora/internal/adapters/driven/embedding/hash"
	ollamaembed "github.com/custodia-labs/agora/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/agora/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/agora/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/agora/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/agora/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// settingsHint is appended to configuration errors.
const settingsHint = "Run 'agora settings' to fix"

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	VisionService    driven.VisionService
	Warnings         []string // Non-fatal issues that left a capability unavailable.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		_ = r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		_ = r.LLMService.Close()
	}
	if c, ok := r.VisionService.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// Init creates every configured AI service, validating connectivity.
// A service that cannot be created or reached is left nil and reported in
// Warnings; the features depending on it degrade instead of failing.
func Init(ctx context.Context, settings *domain.AppSettings) *InitResult {
	res := &InitResult{}

	emb, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	} else if emb != nil && settings.Memory.CacheEmbeddings {
		cached, cerr := embedcache.New(emb, embedcache.DefaultSize)
		if cerr != nil {
			res.Warnings = append(res.Warnings, cerr.Error())
		} else {
			emb = cached
		}
	}
	if emb != nil {
		res.EmbeddingService = emb
	}

	llm, err := CreateAndValidateLLMService(ctx, &settings.LLM)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	} else if llm != nil {
		res.LLMService = llm
	}

	vision, err := CreateVisionService(&settings.Vision)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s. %s", domain.ErrVisionUnavailable, err, settingsHint))
	} else if vision != nil {
		res.VisionService = vision
	}

	return res
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrEmbeddingUnavailable, err, settingsHint)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s", domain.ErrEmbeddingUnavailable, err, settingsHint)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrLLMUnavailable, err, settingsHint)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s", domain.ErrLLMUnavailable, err, settingsHint)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	svc, err := CreateLLMService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateVisionConfig validates a vision configuration by pinging the
// provider's chat endpoint.
func ValidateVisionConfig(settings *domain.VisionSettings) error {
	if settings == nil {
		return nil
	}
	return ValidateLLMConfig(&domain.LLMSettings{ProviderSettings: settings.ProviderSettings})
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderHash:
		return hashembed.NewEmbeddingService(embeddingDimensions(settings, hashembed.DefaultDimensions)), nil

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: embeddingDimensions(settings, ollamaembed.DefaultDimensions),
		}), nil

	case domain.AIProviderOpenAI:
		// Only an explicit override is sent to the API; model defaults are implied.
		dims := settings.Dimensions
		if dims == domain.EmbeddingDimensions()[settings.Model] {
			dims = 0
		}
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dims,
		})

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use hash, ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// embeddingDimensions prefers the configured size, then the known size of
// the model, then the adapter default.
func embeddingDimensions(settings *domain.EmbeddingSettings, fallback int) int {
	if settings.Dimensions > 0 {
		return settings.Dimensions
	}
	if d := domain.EmbeddingDimensions()[settings.Model]; d > 0 {
		return d
	}
	return fallback
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// CreateVisionService creates a vision service based on settings.
// Every chat adapter doubles as a vision adapter when pointed at a
// multimodal model. Returns nil if the provider is not configured.
func CreateVisionService(settings *domain.VisionSettings) (driven.VisionService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderHash {
		return nil, fmt.Errorf("hash provider has no vision model, use ollama, openai or anthropic")
	}

	svc, err := CreateLLMService(&domain.LLMSettings{ProviderSettings: settings.ProviderSettings})
	if err != nil {
		return nil, err
	}
	vision, ok := svc.(driven.VisionService)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support images", settings.Provider)
	}
	return vision, nil
}
