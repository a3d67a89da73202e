// Package search runs the query pipeline: normalize, classify and retrieve
// in parallel, score with BM25, then fuse trust signals into the final
// ranking. It also records the feedback and interactions that feed those
// signals and the query predictor.
package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deidaraiorek/lifeline/internal/bm25"
	"github.com/deidaraiorek/lifeline/internal/embed"
	"github.com/deidaraiorek/lifeline/internal/geo"
	"github.com/deidaraiorek/lifeline/internal/intent"
	"github.com/deidaraiorek/lifeline/internal/metrics"
	"github.com/deidaraiorek/lifeline/internal/ranker"
	"github.com/deidaraiorek/lifeline/internal/retriever"
	"github.com/deidaraiorek/lifeline/internal/storage"
	"github.com/deidaraiorek/lifeline/internal/textprocessor"
)

const engineName = "lifeline-hybrid"

type Classifier interface {
	Classify(ctx context.Context, query string) intent.Result
}

type Retriever interface {
	Retrieve(ctx context.Context, req retriever.Request) retriever.Result
}

type Predictor interface {
	Predict(ctx context.Context, prefix string) []string
	NextWords(text string) []string
	Learn(ctx context.Context, phrase, category string) error
}

type FeedbackStore interface {
	FindFeedbackByURLs(ctx context.Context, urls []string) ([]storage.FeedbackRecord, error)
	CreateFeedback(ctx context.Context, rec storage.FeedbackRecord) (bool, error)
}

type InteractionStore interface {
	AggregateByTargetURLs(ctx context.Context, urls []string) (map[string]storage.BehaviorStats, error)
	LogInteraction(ctx context.Context, in storage.Interaction) error
	IncrementClicks(ctx context.Context, url string) error
	MarkReported(ctx context.Context, url string, at time.Time) error
}

type Config struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
	// SemanticCandidates bounds how many top BM25 candidates are embedded.
	SemanticCandidates int           `yaml:"semantic_candidates"`
	SummaryLength      int           `yaml:"summary_length"`
	SignalTimeout      time.Duration `yaml:"signal_timeout"`
	CorpusSize         int           `yaml:"corpus_size"`
}

func DefaultConfig() Config {
	return Config{
		DefaultLimit:       10,
		MaxLimit:           50,
		SemanticCandidates: 20,
		SummaryLength:      280,
		SignalTimeout:      3 * time.Second,
		CorpusSize:         120000,
	}
}

type Engine struct {
	processor    *textprocessor.TextProcessor
	classifier   Classifier
	retriever    Retriever
	scorer       bm25.Scorer
	ranker       *ranker.Ranker
	predictor    Predictor
	feedback     FeedbackStore
	interactions InteractionStore
	embedder     embed.Embedder
	locator      geo.Locator
	config       Config
	logger       *slog.Logger
	now          func() time.Time
}

type Dependencies struct {
	Classifier   Classifier
	Retriever    Retriever
	Ranker       *ranker.Ranker
	Predictor    Predictor
	Feedback     FeedbackStore
	Interactions InteractionStore
	Embedder     embed.Embedder
	Locator      geo.Locator
}

type Option func(*Engine)

func WithConfig(config Config) Option {
	return func(e *Engine) { e.config = config }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(deps Dependencies, opts ...Option) *Engine {
	e := &Engine{
		processor:    textprocessor.NewTextProcessor(),
		classifier:   deps.Classifier,
		retriever:    deps.Retriever,
		ranker:       deps.Ranker,
		predictor:    deps.Predictor,
		feedback:     deps.Feedback,
		interactions: deps.Interactions,
		embedder:     deps.Embedder,
		locator:      deps.Locator,
		config:       DefaultConfig(),
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ranker == nil {
		e.ranker = ranker.New(ranker.DefaultWeights())
	}
	if e.embedder == nil {
		e.embedder = embed.Disabled{}
	}
	if e.locator == nil {
		e.locator = geo.Static(geo.DefaultLocation)
	}
	e.scorer = bm25.New(e.config.CorpusSize)
	e.logger = e.logger.With("component", "search")
	return e
}

// Search fails only on invalid input. Every collaborator failure degrades
// to a smaller or less informed answer.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := e.now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	mode, err := ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	limit := e.limit(req.Limit)
	tokens := e.processor.Normalize(query)

	var (
		verdict   intent.Result
		retrieved retriever.Result
		location  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		verdict = e.classifier.Classify(gctx, query)
		return nil
	})
	g.Go(func() error {
		location = e.locator.Locate(gctx, req.ClientIP)
		retrieved = e.retriever.Retrieve(gctx, retriever.Request{
			Tokens:   tokens,
			Query:    query,
			Location: location,
		})
		return nil
	})
	_ = g.Wait()

	emergency := mode == ModeEmergency || (mode == ModeAuto && verdict.IsEmergency)
	metrics.ClassifierPath.WithLabelValues(verdict.Path, strconv.FormatBool(verdict.IsEmergency)).Inc()

	candidates := e.candidates(ctx, query, tokens, retrieved.Documents)
	scored := e.ranker.Rank(candidates, emergency)
	if len(scored) > limit {
		scored = scored[:limit]
	}

	results := make([]Result, len(scored))
	for i, s := range scored {
		results[i] = Result{
			Title:      s.Document.Title,
			URL:        s.Document.URL,
			Summary:    summarize(s.Document.Content, e.config.SummaryLength),
			Score:      math.Round(s.Breakdown.Score*100) / 100,
			TrustLevel: s.Breakdown.TrustLevel,
			Origin:     s.Document.Origin,
			Signals:    s.Breakdown,
		}
	}

	advisory := ""
	if emergency {
		advisory = verdict.Advisory
		if advisory == "" {
			advisory = intent.Advise(strings.ToLower(query), true)
		}
	}

	modeLabel := string(ModeNormal)
	if emergency {
		modeLabel = string(ModeEmergency)
	}
	took := e.now().Sub(start)
	metrics.Searches.WithLabelValues(modeLabel).Inc()
	metrics.SearchLatency.Observe(took.Seconds())

	e.logger.Debug("search served",
		"query", query,
		"emergency", emergency,
		"source", retrieved.Source,
		"candidates", len(candidates),
		"took", took,
	)

	return &Response{
		Query:         query,
		EmergencyMode: emergency,
		Advisory:      advisory,
		Intent:        verdict,
		Results:       results,
		Meta: Meta{
			Engine:          engineName,
			TokensUsed:      tokens,
			CoveragePercent: int(math.Round(retrieved.Coverage * 100)),
			Source:          retrieved.Source,
			Location:        location,
			TookMs:          took.Milliseconds(),
		},
	}, nil
}

// candidates scores documents with BM25 and loads feedback, behavior and
// semantic signals concurrently. A failed signal source leaves its signal
// at zero.
func (e *Engine) candidates(ctx context.Context, query string, tokens []string, docs []storage.Document) []ranker.Candidate {
	if len(docs) == 0 {
		return []ranker.Candidate{}
	}

	docTokens := make([][]string, len(docs))
	urls := make([]string, len(docs))
	for i, doc := range docs {
		docTokens[i] = doc.Tokens
		urls[i] = doc.URL
	}
	scores := e.scorer.Score(tokens, docTokens)

	var (
		impacts  map[string]float64
		behavior map[string]storage.BehaviorStats
		semantic []float64
	)

	ctx, cancel := context.WithTimeout(ctx, e.config.SignalTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		impacts = e.loadFeedback(ctx, urls)
		return nil
	})
	g.Go(func() error {
		behavior = e.loadBehavior(ctx, urls)
		return nil
	})
	g.Go(func() error {
		semantic = e.semantic(ctx, query, docs, scores)
		return nil
	})
	_ = g.Wait()

	out := make([]ranker.Candidate, len(docs))
	for i, doc := range docs {
		out[i] = ranker.Candidate{
			Document:       doc,
			BM25:           scores[i],
			Semantic:       semantic[i],
			FeedbackImpact: impacts[doc.URL],
			Behavior:       behavior[doc.URL],
		}
	}
	return out
}

func (e *Engine) loadFeedback(ctx context.Context, urls []string) map[string]float64 {
	impacts := make(map[string]float64)
	if e.feedback == nil {
		return impacts
	}
	records, err := e.feedback.FindFeedbackByURLs(ctx, urls)
	if err != nil {
		e.logger.Warn("feedback lookup failed", "err", err)
		return impacts
	}
	for _, rec := range records {
		impacts[rec.TargetURL] += rec.Impact
	}
	return impacts
}

func (e *Engine) loadBehavior(ctx context.Context, urls []string) map[string]storage.BehaviorStats {
	if e.interactions == nil {
		return map[string]storage.BehaviorStats{}
	}
	stats, err := e.interactions.AggregateByTargetURLs(ctx, urls)
	if err != nil {
		e.logger.Warn("behavior lookup failed", "err", err)
		return map[string]storage.BehaviorStats{}
	}
	return stats
}

// semantic embeds the query and the strongest BM25 candidates. Scores for
// the rest, or for everything when embeddings fail, stay 0.
func (e *Engine) semantic(ctx context.Context, query string, docs []storage.Document, bm25Scores []float64) []float64 {
	out := make([]float64, len(docs))

	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bm25Scores[order[a]] > bm25Scores[order[b]]
	})
	if n := e.config.SemanticCandidates; n > 0 && len(order) > n {
		order = order[:n]
	}

	texts := make([]string, 0, len(order)+1)
	texts = append(texts, query)
	for _, i := range order {
		texts = append(texts, summarize(docs[i].Title+". "+docs[i].Content, 1000))
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		if err != nil {
			e.logger.Debug("semantic signal unavailable", "err", err)
		}
		return out
	}
	for k, i := range order {
		out[i] = math.Max(0, embed.Cosine(vectors[0], vectors[k+1]))
	}
	return out
}

func (e *Engine) limit(requested int) int {
	if requested <= 0 {
		return e.config.DefaultLimit
	}
	if requested > e.config.MaxLimit {
		return e.config.MaxLimit
	}
	return requested
}

// summarize collapses whitespace and cuts text at a word boundary within
// limit runes.
func summarize(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	cut := limit
	for i := limit; i > limit/2; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return string(runes[:cut]) + "…"
}
