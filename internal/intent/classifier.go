package intent

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/deidaraiorek/lifeline/internal/embed"
)

const (
	PathFused = "fused"
	PathLLM   = "llm"
	PathLocal = "local"

	CategoryNone = "none"
)

type Signals struct {
	Lexical  float64 `json:"lexical"`
	Semantic float64 `json:"semantic"`
}

type Result struct {
	IsEmergency bool    `json:"isEmergency"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category"`
	Advisory    string  `json:"advisory,omitempty"`
	Signals     Signals `json:"signals"`
	Path        string  `json:"path"`
}

// Verdict is a remote classification of a query.
type Verdict struct {
	IsEmergency bool   `json:"isEmergency"`
	Category    string `json:"category"`
	Advisory    string `json:"survivalTip"`
}

type VerdictProvider interface {
	Verdict(ctx context.Context, query string) (Verdict, error)
}

type Config struct {
	LexicalWeight   float64 `yaml:"lexical_weight"`
	SemanticWeight  float64 `yaml:"semantic_weight"`
	Threshold       float64 `yaml:"threshold"`
	LocalConfidence float64 `yaml:"local_confidence"`
}

func DefaultConfig() Config {
	return Config{
		LexicalWeight:   0.6,
		SemanticWeight:  0.6,
		Threshold:       0.75,
		LocalConfidence: 0.6,
	}
}

type Classifier struct {
	embedder embed.Embedder
	verdicts VerdictProvider
	seeds    []string
	config   Config
	logger   *slog.Logger

	mu          sync.RWMutex
	seedVectors [][]float32
}

type Option func(*Classifier)

func WithVerdictProvider(p VerdictProvider) Option {
	return func(c *Classifier) { c.verdicts = p }
}

func WithSeeds(seeds []string) Option {
	return func(c *Classifier) { c.seeds = seeds }
}

func WithConfig(config Config) Option {
	return func(c *Classifier) { c.config = config }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

func NewClassifier(embedder embed.Embedder, opts ...Option) *Classifier {
	c := &Classifier{
		embedder: embedder,
		seeds:    SeedQueries,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.embedder == nil {
		c.embedder = embed.Disabled{}
	}
	c.logger = c.logger.With("component", "intent")

	lowered := make([]string, len(c.seeds))
	for i, s := range c.seeds {
		lowered[i] = strings.ToLower(s)
	}
	c.seeds = lowered
	return c
}

// Classify never fails. When embeddings are unavailable the remote verdict
// is tried, then the offline keyword table.
func (c *Classifier) Classify(ctx context.Context, query string) Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Result{Category: CategoryNone, Path: PathLocal}
	}

	lexical := 0.0
	if c.seedHit(q) {
		lexical = c.config.LexicalWeight
	}

	semantic, err := c.semantic(ctx, q)
	if err != nil {
		if !errors.Is(err, embed.ErrUnavailable) {
			c.logger.Warn("semantic signal failed, using fallback", "err", err)
		}
		return c.fallback(ctx, query, q, lexical)
	}

	fused := lexical + c.config.SemanticWeight*semantic
	result := Result{
		IsEmergency: fused > c.config.Threshold,
		Confidence:  round2(clamp01(fused)),
		Category:    CategoryNone,
		Signals:     Signals{Lexical: lexical, Semantic: semantic},
		Path:        PathFused,
	}
	if result.IsEmergency {
		result.Category, result.Advisory = c.describe(ctx, query, q)
	}
	return result
}

func (c *Classifier) seedHit(q string) bool {
	for _, seed := range c.seeds {
		if seed != "" && strings.Contains(q, seed) {
			return true
		}
	}
	return false
}

func (c *Classifier) semantic(ctx context.Context, q string) (float64, error) {
	seedVectors, err := c.loadSeedVectors(ctx)
	if err != nil {
		return 0, err
	}
	queryVector, err := c.embedder.Embed(ctx, q)
	if err != nil {
		return 0, err
	}
	return math.Max(0, embed.MaxCosine(queryVector, seedVectors)), nil
}

// loadSeedVectors embeds the seeds once. Failures are not cached so a
// provider that recovers is picked up on the next query.
func (c *Classifier) loadSeedVectors(ctx context.Context) ([][]float32, error) {
	c.mu.RLock()
	vectors := c.seedVectors
	c.mu.RUnlock()
	if vectors != nil {
		return vectors, nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, c.seeds)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.seedVectors = vectors
	c.mu.Unlock()
	return vectors, nil
}

func (c *Classifier) fallback(ctx context.Context, query, q string, lexical float64) Result {
	signals := Signals{Lexical: lexical}

	if c.verdicts != nil {
		v, err := c.verdicts.Verdict(ctx, query)
		if err == nil {
			result := Result{
				IsEmergency: v.IsEmergency,
				Category:    orDefault(v.Category, CategoryNone),
				Advisory:    v.Advisory,
				Signals:     signals,
				Path:        PathLLM,
			}
			if v.IsEmergency {
				result.Confidence = c.config.LocalConfidence
				if result.Advisory == "" {
					result.Advisory = Advise(q, true)
				}
			}
			return result
		}
		c.logger.Warn("remote verdict failed, using keywords", "err", err)
	}

	category := KeywordCategory(q)
	isEmergency := lexical > 0 || category != CategoryNone
	if isEmergency && category == CategoryNone {
		category = "general_emergency"
	}

	result := Result{
		IsEmergency: isEmergency,
		Category:    category,
		Signals:     signals,
		Path:        PathLocal,
	}
	if isEmergency {
		result.Confidence = c.config.LocalConfidence
		result.Advisory = Advise(q, true)
	}
	return result
}

// describe asks the remote provider for a category and tip, falling back
// to the offline tables.
func (c *Classifier) describe(ctx context.Context, query, q string) (string, string) {
	if c.verdicts != nil {
		v, err := c.verdicts.Verdict(ctx, query)
		if err == nil && v.Category != "" && v.Category != CategoryNone {
			advisory := v.Advisory
			if advisory == "" {
				advisory = Advise(q, true)
			}
			return v.Category, advisory
		}
		if err != nil {
			c.logger.Debug("remote verdict unavailable", "err", err)
		}
	}

	category := KeywordCategory(q)
	if category == CategoryNone {
		category = "general_emergency"
	}
	return category, Advise(q, true)
}

// KeywordCategory maps a lower-cased query to a hazard category using the
// offline keyword table, or CategoryNone.
func KeywordCategory(q string) string {
	for _, group := range keywordGroups {
		for _, word := range group.words {
			if strings.Contains(q, word) {
				return group.category
			}
		}
	}
	return CategoryNone
}

// HasEmergencyKeyword reports whether query mentions any offline hazard
// keyword.
func HasEmergencyKeyword(query string) bool {
	return KeywordCategory(strings.ToLower(query)) != CategoryNone
}

// Advise returns a short survival tip for the query. A generic tip is used
// for emergencies without a specific match.
func Advise(q string, emergency bool) string {
	q = strings.ToLower(q)
	for _, a := range advisories {
		if strings.Contains(q, a.keyword) {
			return a.tip
		}
	}
	if emergency {
		return genericAdvisory
	}
	return ""
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
