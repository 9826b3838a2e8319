// Package app wires configuration into the pipeline services shared by the
// HTTP server, the worker and the CLI
package app

import (
	"context"
	"fmt"

	"disclosure-rag/internal/ai"
	"disclosure-rag/internal/config"
	"disclosure-rag/internal/database"
	"disclosure-rag/internal/logger"
	"disclosure-rag/internal/telemetry"
	"disclosure-rag/models"
	"disclosure-rag/services"

	"github.com/redis/go-redis/v9"
)

// App holds the constructed services. Close releases every client it opened.
type App struct {
	Config      *config.Config
	Metrics     *telemetry.Metrics
	Redis       *redis.Client
	Store       *services.StoreAdapter
	Ingestor    *services.Ingestor
	Categorizer *services.Categorizer
	Answerer    *services.Answerer

	closers []func()
}

// Options tune what New connects to
type Options struct {
	// SkipRedis disables the embedding cache even when Redis is reachable
	SkipRedis bool
	Metrics   *telemetry.Metrics
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Metrics: opts.Metrics}

	backend, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var embedder ai.Embedder = ai.DisabledEmbedder{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiEmbedder(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize embeddings: %w", err)
		}
		a.onClose(func() { gemini.Close() })
		embedder = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, chunks will be stored without embeddings")
	}

	if !opts.SkipRedis && cfg.EmbeddingCacheTTL > 0 {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, query embeddings will not be cached", "error", err)
		} else {
			a.Redis = rdb
			a.onClose(func() { rdb.Close() })
			embedder = services.NewCachedEmbedder(embedder, rdb, cfg.EmbeddingCacheTTL)
		}
	}

	generators, qa, err := a.openGenerators(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	keywordLists, err := services.LoadKeywordLists(cfg.KeywordsFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	artifacts := services.NewArtifactWriter(cfg.OutputDir)
	a.Store = services.NewStoreAdapter(backend, embedder, cfg, a.Metrics)
	a.Ingestor = services.NewIngestor(services.NewPDFExtractor(cfg.MaxFileSize), a.Store, artifacts, cfg, a.Metrics)
	a.Categorizer = services.NewCategorizer(
		services.NewPhaseClassifier(cfg, services.NewKeywordClassifier(keywordLists), generators, a.Metrics),
		artifacts,
	)
	a.Answerer = services.NewAnswerer(services.NewRetriever(a.Store, cfg), qa, cfg, a.Metrics)

	logger.Info("Pipeline ready",
		"store", backend.Name(),
		"embedder", embedder.Model(),
		"classifier", cfg.ClassifierStrategy,
		"output_dir", cfg.OutputDir,
	)
	return a, nil
}

func (a *App) openBackend(ctx context.Context) (database.Backend, error) {
	cfg := a.Config
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return database.NewMemoryStore(), nil

	case config.BackendPostgres:
		db, err := config.ConnectPostgres(cfg)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { db.Close() })
		return database.NewPostgresStore(ctx, db, cfg.VectorDimensions)

	default:
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { client.Disconnect(context.Background()) })
		return database.NewMongoStore(client, cfg), nil
	}
}

// openGenerators returns the classification generators by strategy and the
// QA generator. Missing credentials leave entries nil, which the services
// treat as a failing upstream.
func (a *App) openGenerators(ctx context.Context) (map[string]ai.Generator, ai.Generator, error) {
	cfg := a.Config
	generators := map[string]ai.Generator{}
	var qa ai.Generator

	if cfg.GeminiAPIKey != "" {
		leap, err := ai.NewGeminiClient(ctx, ai.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Tier:        cfg.GeminiTier,
			Temperature: 0.1,
			Timeout:     cfg.GenerationTimeout,
		}, a.Metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		a.onClose(func() { leap.Close() })
		generators[models.StrategyGemini] = leap

		answerer, err := ai.NewGeminiClient(ctx, ai.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiQAModel,
			Tier:        cfg.GeminiTier,
			Temperature: 0.3,
			Timeout:     cfg.GenerationTimeout,
		}, a.Metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Gemini QA client: %w", err)
		}
		a.onClose(func() { answerer.Close() })
		qa = answerer
	}

	if cfg.PerplexityAPIKey != "" {
		perplexity, err := ai.NewPerplexityClient(ai.PerplexityConfig{
			APIKey:  cfg.PerplexityAPIKey,
			BaseURL: cfg.PerplexityBaseURL,
			Model:   cfg.PerplexityModel,
			Timeout: cfg.GenerationTimeout,
			Tier:    cfg.GeminiTier,
		}, a.Metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Perplexity client: %w", err)
		}
		generators[models.StrategyPerplexity] = perplexity
	}

	return generators, qa, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close runs cleanups in reverse order of registration
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
