// Command agora is the knowledge core of a multi-agent symposium.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/agora/internal/adapters/driven/ai"
	"github.com/custodia-labs/agora/internal/adapters/driven/chart"
	"github.com/custodia-labs/agora/internal/adapters/driven/config/file"
	"github.com/custodia-labs/agora/internal/adapters/driven/crossref"
	"github.com/custodia-labs/agora/internal/adapters/driven/imaging"
	"github.com/custodia-labs/agora/internal/adapters/driven/pdf"
	"github.com/custodia-labs/agora/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/agora/internal/adapters/driving/cli"
	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/services"
	"github.com/custodia-labs/agora/internal/logger"
	"github.com/custodia-labs/agora/internal/postprocessors"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// A missing .env is normal; keys may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env: %v", err)
	}

	home, err := file.HomeDir()
	if err != nil {
		return err
	}
	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
	if err != nil {
		return fmt.Errorf("open prompts: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	aiServices := ai.Init(ctx, settings)
	defer aiServices.Close()
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	kb, err := sqlite.NewStore(settings.Paths.DataDir, sqlite.KnowledgeBaseFile)
	if err != nil {
		return fmt.Errorf("open knowledge base: %w", err)
	}
	defer kb.Close()
	memStore, err := sqlite.NewStore(settings.Paths.DataDir, sqlite.MemoryFile)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer memStore.Close()

	svc, err := wire(settings, aiServices, kb.VectorStore(), memStore.VectorStore(), prompts)
	if err != nil {
		return err
	}
	svc.Settings = settingsService
	svc.PDFRoot = settings.Paths.PDFRoot

	cli.SetServices(svc)
	cli.SetVersion(version)
	return cli.Execute(ctx)
}

// wire builds the services the commands drive. Services whose AI backend is
// unavailable are left nil so their commands report "not configured".
func wire(
	settings *domain.AppSettings,
	aiServices *ai.InitResult,
	kb, memStore driven.VectorStore,
	prompts driven.PromptStore,
) (cli.Services, error) {
	var svc cli.Services
	embedder := aiServices.EmbeddingService
	llm := aiServices.LLMService
	vision := aiServices.VisionService
	if embedder == nil {
		return svc, nil
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := postprocessors.BuildPipeline(registry, domain.PipelineConfigFor(settings.Chunking))
	if err != nil {
		return svc, fmt.Errorf("build chunk pipeline: %w", err)
	}

	renderer, err := pdf.NewRenderer()
	if err != nil {
		return svc, err
	}
	codec := imaging.NewCodec()

	extractor := services.NewContentExtractor(codec, settings.Paths.FiguresDir, settings.Extraction)
	extractor.SetRenderer(renderer)
	extractor.SetPromptStore(prompts)

	citations := services.NewCitationResolver(crossref.NewRegistry(crossref.Config{
		BaseURL: settings.Citation.RegistryURL,
		Mailto:  settings.Citation.Mailto,
		Delay:   settings.Citation.Delay,
		Timeout: settings.Citation.Timeout,
	}))

	ingest := services.NewIngestService(kb, embedder, pdf.NewOpener(), pipeline, extractor, citations, services.IngestConfig{
		PDFRoot:      settings.Paths.PDFRoot,
		FiguresDir:   settings.Paths.FiguresDir,
		BatchSize:    settings.Embedding.BatchSize,
		EmbedRetries: 3,
	})
	if vision != nil {
		extractor.SetVision(vision)
		analyzer := services.NewFigureAnalyzer(vision)
		analyzer.SetPromptStore(prompts)
		segmenter := services.NewPanelSegmenter(vision, codec)
		segmenter.SetPromptStore(prompts)
		ingest.SetFigureProcessing(analyzer, segmenter)
	}

	retrieval := services.NewRetrievalService(kb, embedder, settings.Retrieval.TopK)
	memory := services.NewMemoryService(memStore, embedder, llm, settings.Memory)
	memory.SetPromptStore(prompts)
	validator := services.NewResponseValidator(retrieval)

	tools, err := services.NewDefaultToolRegistry(retrieval, memory)
	if err != nil {
		return svc, fmt.Errorf("register tools: %w", err)
	}
	charts, err := chart.NewRenderer()
	if err != nil {
		return svc, err
	}
	if err := services.NewVisualizationTools(charts, codec, settings.Paths.ResultsDir).Register(tools); err != nil {
		return svc, fmt.Errorf("register tools: %w", err)
	}

	svc.Ingest = ingest
	svc.Retrieval = retrieval
	svc.Memory = memory
	svc.Validator = validator
	svc.Tools = tools

	if llm == nil {
		return svc, nil
	}
	planning := services.NewPlanningService(llm, memory)
	planning.SetPromptStore(prompts)

	turnCfg := services.DefaultTurnConfig()
	turnCfg.MaxRetries = settings.Validator.MaxRetries
	turn := services.NewTurnService(llm, tools, validator, memory, turnCfg)
	turn.SetPromptStore(prompts)

	svc.Planning = planning
	svc.Turn = turn
	return svc, nil
}
