package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	embedcache "github.com/custodia-labs/agora/internal/adapters/driven/embedding/cache"
	hashembed "github.com/custodia-labs/agora/internal/adapters/driven/embedding/hash"
	ollamaembed "github.com/custodia-labs/agora/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/agora/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/agora/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/agora/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/agora/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/agora/internal/core/domain"
)

func provider(p domain.AIProvider, model, key string) domain.ProviderSettings {
	return domain.ProviderSettings{Provider: p, Model: model, APIKey: key}
}

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		result.Close()
	})

	t.Run("close with all services", func(t *testing.T) {
		llm := ollamallm.NewLLMService(ollamallm.LLMConfig{})
		result := &InitResult{
			EmbeddingService: hashembed.NewEmbeddingService(8),
			LLMService:       llm,
			VisionService:    llm,
		}
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantNil     bool
		wantDims    int
		wantModel   string
		errContains string
	}{
		{name: "nil settings returns nil", settings: nil, wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{name: "openai without key returns nil", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider(domain.AIProviderOpenAI, "", ""),
		}, wantNil: true},
		{name: "hash provider", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider(domain.AIProviderHash, "hash-384", ""), Dimensions: 384,
		}, wantDims: 384, wantModel: "hash-384"},
		{name: "hash provider custom size", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider(domain.AIProviderHash, "", ""), Dimensions: 128,
		}, wantDims: 128, wantModel: "hash-128"},
		{name: "ollama known model", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider(domain.AIProviderOllama, "mxbai-embed-large", ""),
		}, wantDims: 1024, wantModel: "mxbai-embed-large"},
		{name: "ollama unknown model", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider(domain.AIProviderOllama, "custom-embed", ""),
		}, wantDims: ollamaembed.DefaultDimensions, wantModel: "custom-embed"},
		{name: "openai default size", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider(domain.AIProviderOpenAI, "text-embedding-3-large", "k"), Dimensions: 3072,
		}, wantDims: 3072, wantModel: "text-embedding-3-large"},
		{name: "openai reduced size", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider(domain.AIProviderOpenAI, "text-embedding-3-large", "k"), Dimensions: 256,
		}, wantDims: 256, wantModel: "text-embedding-3-large"},
		{name: "anthropic provider returns error", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider(domain.AIProviderAnthropic, "", "k"),
		}, errContains: "anthropic does not support embeddings"},
		{name: "unknown provider returns nil", settings: &domain.EmbeddingSettings{
			ProviderSettings: provider("cohere", "", "k"),
		}, wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.errContains != "" {
				assert.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantDims, svc.Dimensions())
			assert.Equal(t, tt.wantModel, svc.ModelName())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.LLMSettings
		wantType    any
		errContains string
	}{
		{name: "ollama", settings: &domain.LLMSettings{ProviderSettings: provider(domain.AIProviderOllama, "llama3.2", "")},
			wantType: &ollamallm.LLMService{}},
		{name: "openai", settings: &domain.LLMSettings{ProviderSettings: provider(domain.AIProviderOpenAI, "gpt-4o-mini", "k")},
			wantType: &openaillm.LLMService{}},
		{name: "anthropic", settings: &domain.LLMSettings{ProviderSettings: provider(domain.AIProviderAnthropic, "", "k")},
			wantType: &anthropicllm.LLMService{}},
		{name: "hash is not an llm", settings: &domain.LLMSettings{ProviderSettings: provider(domain.AIProviderHash, "", "")},
			errContains: "unsupported LLM provider: hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			if tt.errContains != "" {
				assert.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, svc)
		})
	}

	svc, err := CreateLLMService(nil)
	assert.NoError(t, err)
	assert.Nil(t, svc)
}

func TestCreateVisionService(t *testing.T) {
	svc, err := CreateVisionService(&domain.VisionSettings{ProviderSettings: provider(domain.AIProviderOpenAI, "gpt-4o", "k")})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", svc.ModelName())

	svc, err = CreateVisionService(&domain.VisionSettings{ProviderSettings: provider(domain.AIProviderOllama, "llava", "")})
	require.NoError(t, err)
	assert.Equal(t, "llava", svc.ModelName())

	svc, err = CreateVisionService(&domain.VisionSettings{})
	assert.NoError(t, err)
	assert.Nil(t, svc)

	_, err = CreateVisionService(&domain.VisionSettings{ProviderSettings: provider(domain.AIProviderHash, "", "")})
	assert.ErrorContains(t, err, "no vision model")
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	ctx := context.Background()

	svc, err := CreateAndValidateEmbeddingService(ctx, &domain.EmbeddingSettings{})
	assert.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateAndValidateEmbeddingService(ctx, &domain.EmbeddingSettings{
		ProviderSettings: provider(domain.AIProviderHash, "hash-384", ""),
	})
	require.NoError(t, err)
	assert.IsType(t, &hashembed.EmbeddingService{}, svc)

	_, err = CreateAndValidateEmbeddingService(ctx, &domain.EmbeddingSettings{
		ProviderSettings: provider(domain.AIProviderAnthropic, "", "k"),
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorContains(t, err, "Run 'agora settings' to fix")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	_, err = CreateAndValidateEmbeddingService(ctx, &domain.EmbeddingSettings{
		ProviderSettings: domain.ProviderSettings{Provider: domain.AIProviderOpenAI, APIKey: "bad", BaseURL: srv.URL},
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorContains(t, err, "service unreachable (openai: invalid API key)")
}

func TestCreateAndValidateLLMService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models": []}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	ctx := context.Background()

	svc, err := CreateAndValidateLLMService(ctx, &domain.LLMSettings{
		ProviderSettings: domain.ProviderSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL},
	})
	require.NoError(t, err)
	assert.Equal(t, ollamallm.DefaultLLMModel, svc.ModelName())

	_, err = CreateAndValidateLLMService(ctx, &domain.LLMSettings{
		ProviderSettings: domain.ProviderSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL + "/missing"},
	})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestInit(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Vision.ProviderSettings = provider(domain.AIProviderHash, "", "")

	res := Init(context.Background(), &settings)
	defer res.Close()

	require.NotNil(t, res.EmbeddingService)
	assert.IsType(t, &embedcache.EmbeddingService{}, res.EmbeddingService)
	assert.Equal(t, "hash-384", res.EmbeddingService.ModelName())
	assert.Nil(t, res.LLMService)
	assert.Nil(t, res.VisionService)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], domain.ErrVisionUnavailable.Error())

	settings.Memory.CacheEmbeddings = false
	res = Init(context.Background(), &settings)
	assert.IsType(t, &hashembed.EmbeddingService{}, res.EmbeddingService)
}

func TestCreateOpenAIEmbedding_DefaultModel(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		ProviderSettings: provider(domain.AIProviderOpenAI, "", "k"),
	})
	require.NoError(t, err)
	assert.Equal(t, openaiembed.DefaultModel, svc.ModelName())
}
