package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/deidaraiorek/lifeline/internal/config"
	"github.com/deidaraiorek/lifeline/internal/embed"
	"github.com/deidaraiorek/lifeline/internal/geo"
	"github.com/deidaraiorek/lifeline/internal/intent"
	"github.com/deidaraiorek/lifeline/internal/livefetch"
	"github.com/deidaraiorek/lifeline/internal/predictor"
	"github.com/deidaraiorek/lifeline/internal/ranker"
	"github.com/deidaraiorek/lifeline/internal/retriever"
	"github.com/deidaraiorek/lifeline/internal/search"
	"github.com/deidaraiorek/lifeline/internal/storage"
)

// application owns every long-lived component of a serving process.
type application struct {
	store     *storage.Store
	live      *livefetch.Client
	retriever *retriever.Retriever
	predictor *predictor.Predictor
	engine    *search.Engine
	logger    *slog.Logger
}

func openStore(cfg config.Config) (*storage.Store, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return storage.NewStore(cfg.Database.Path)
}

func newPredictor(store *storage.Store, cfg config.Config, logger *slog.Logger) (*predictor.Predictor, error) {
	return predictor.New(store,
		predictor.WithConfig(cfg.Predictor),
		predictor.WithLogger(logger),
	)
}

func newEmbedder(cfg config.EmbeddingConfig, logger *slog.Logger) embed.Embedder {
	if !cfg.Enabled {
		return embed.Disabled{}
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		logger.Info("embeddings disabled: no api key or base url configured")
		return embed.Disabled{}
	}
	client, err := embed.NewOpenAI(embed.OpenAIConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	}, logger)
	if err != nil {
		logger.Warn("embeddings disabled", "err", err)
		return embed.Disabled{}
	}
	return embed.NewCached(client, cfg.CacheSize)
}

func newClassifier(cfg config.Config, embedder embed.Embedder, logger *slog.Logger) *intent.Classifier {
	opts := []intent.Option{
		intent.WithConfig(cfg.Classifier),
		intent.WithLogger(logger),
	}
	if cfg.LLM.Enabled && (cfg.LLM.APIKey != "" || cfg.LLM.BaseURL != "") {
		verdicts, err := intent.NewLLMVerdict(intent.LLMConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("llm verdicts disabled", "err", err)
		} else {
			opts = append(opts, intent.WithVerdictProvider(verdicts))
		}
	}
	return intent.NewClassifier(embedder, opts...)
}

func newLocator(cfg config.GeoConfig, logger *slog.Logger) geo.Locator {
	if !cfg.Enabled {
		fallback := cfg.Default
		if fallback == "" {
			fallback = geo.DefaultLocation
		}
		return geo.Static(fallback)
	}
	return geo.NewIPAPI(cfg.Config, logger)
}

// build opens the store and assembles the search pipeline. The prediction
// index is loaded before build returns.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var (
		client *livefetch.Client
		live   retriever.LiveFetcher
	)
	if cfg.LiveFetch.Enabled {
		client = livefetch.New(cfg.LiveFetch.Config, logger)
		live = client
	}
	ret, err := retriever.New(store, live,
		retriever.WithConfig(cfg.Retriever),
		retriever.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	pred, err := newPredictor(store, cfg, logger)
	if err != nil {
		ret.Close()
		store.Close()
		return nil, err
	}
	if err := pred.Start(ctx); err != nil {
		pred.Close()
		ret.Close()
		store.Close()
		return nil, fmt.Errorf("failed to start predictor: %w", err)
	}

	embedder := newEmbedder(cfg.Embedding, logger)
	rank := ranker.New(cfg.Ranking.Weights,
		ranker.WithAuthority(ranker.NewAuthority(cfg.Ranking.OfficialDomains, cfg.Ranking.RumorDomains)),
	)

	engine := search.New(search.Dependencies{
		Classifier:   newClassifier(cfg, embedder, logger),
		Retriever:    ret,
		Ranker:       rank,
		Predictor:    pred,
		Feedback:     store,
		Interactions: store,
		Embedder:     embedder,
		Locator:      newLocator(cfg.Geo, logger),
	}, search.WithConfig(cfg.Search), search.WithLogger(logger))

	logger.Info("lifeline ready",
		"db", cfg.Database.Path,
		"live_fetch", cfg.LiveFetch.Enabled,
		"embeddings", cfg.Embedding.Enabled,
		"llm", cfg.LLM.Enabled,
		"predictor", pred.State(),
	)

	return &application{
		store:     store,
		live:      client,
		retriever: ret,
		predictor: pred,
		engine:    engine,
		logger:    logger,
	}, nil
}

// Close drains background writers before closing the store they write to.
func (a *application) Close() {
	a.retriever.Close()
	if a.live != nil {
		a.live.Close()
	}
	if err := a.predictor.Close(); err != nil {
		a.logger.Warn("predictor close failed", "err", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close failed", "err", err)
	}
}
