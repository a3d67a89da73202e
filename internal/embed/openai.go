package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/deidaraiorek/lifeline/internal/backoff"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Retry   backoff.Config
}

// OpenAI embeds text through any OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	embedder embeddings.Embedder
	retry    backoff.Config
	logger   *slog.Logger
}

func NewOpenAI(config OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if logger == nil {
		logger = slog.Default()
	}
	token := config.APIKey
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}

	opts := []openai.Option{openai.WithToken(token)}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}
	if config.Model != "" {
		opts = append(opts, openai.WithEmbeddingModel(config.Model))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	retry := config.Retry
	if retry.MaxAttempts == 0 {
		retry = backoff.DefaultConfig()
	}

	return &OpenAI{
		embedder: embedder,
		retry:    retry,
		logger:   logger.With("component", "openai-embedder"),
	}, nil
}

func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return vectors[0], nil
}

func (e *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", "count", len(texts))

	vectors, err := backoff.Retry(ctx, e.retry, func() ([][]float32, error) {
		return e.embedder.EmbedDocuments(ctx, texts)
	})
	if err != nil {
		e.logger.Warn("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}
