package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const verdictPrompt = `You classify search queries for a public safety portal.
Reply with strictly valid JSON and nothing else:
{"isEmergency": boolean, "category": "natural_disaster" | "medical" | "crime" | "none", "survivalTip": "max 10 words actionable advice"}`

// generator is the slice of llms.Model the verdict needs.
type generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// LLMVerdict classifies queries with an OpenAI-compatible chat model in
// JSON mode.
type LLMVerdict struct {
	client  generator
	timeout time.Duration
	logger  *slog.Logger
}

func NewLLMVerdict(config LLMConfig, logger *slog.Logger) (*LLMVerdict, error) {
	token := config.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{openai.WithToken(token)}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}
	if config.Model != "" {
		opts = append(opts, openai.WithModel(config.Model))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return newLLMVerdict(client, config.Timeout, logger), nil
}

func newLLMVerdict(client generator, timeout time.Duration, logger *slog.Logger) *LLMVerdict {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &LLMVerdict{
		client:  client,
		timeout: timeout,
		logger:  logger.With("component", "llm-verdict"),
	}
}

func (v *LLMVerdict) Verdict(ctx context.Context, query string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(verdictPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(query)},
		},
	}

	resp, err := v.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to generate verdict: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, fmt.Errorf("no choices returned from model")
	}

	return parseVerdict(resp.Choices[0].Content)
}

func parseVerdict(text string) (Verdict, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var verdict Verdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("failed to parse verdict: %w", err)
	}
	verdict.Category = strings.ToLower(strings.TrimSpace(verdict.Category))
	return verdict, nil
}
