// Package retriever gathers candidate documents for a query: local corpus
// first, live web retrieval when local coverage is weak.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/deidaraiorek/lifeline/internal/intent"
	"github.com/deidaraiorek/lifeline/internal/livefetch"
	"github.com/deidaraiorek/lifeline/internal/metrics"
	"github.com/deidaraiorek/lifeline/internal/storage"
	"github.com/deidaraiorek/lifeline/internal/textprocessor"
)

const (
	SourceLocal  = "local"
	SourceHybrid = "hybrid"
)

type DocumentStore interface {
	FindByTokenOverlap(ctx context.Context, tokens []string, limit int) ([]storage.Document, error)
	InsertDocuments(ctx context.Context, docs []storage.Document) (int, error)
}

type LiveFetcher interface {
	Fetch(ctx context.Context, query string) ([]livefetch.Result, error)
}

type Config struct {
	Limit            int           `yaml:"limit"`
	MinResults       int           `yaml:"min_results"`
	CoverageFloor    float64       `yaml:"coverage_floor"`
	LiveFetchTimeout time.Duration `yaml:"live_fetch_timeout"`
	PersistWorkers   int           `yaml:"persist_workers"`
	PersistRetryWait time.Duration `yaml:"persist_retry_wait"`
}

func DefaultConfig() Config {
	return Config{
		Limit:            100,
		MinResults:       3,
		CoverageFloor:    0.5,
		LiveFetchTimeout: 8 * time.Second,
		PersistWorkers:   2,
		PersistRetryWait: 500 * time.Millisecond,
	}
}

type Request struct {
	// Tokens are the normalized query tokens.
	Tokens   []string
	Query    string
	Location string
}

type Result struct {
	Documents []storage.Document
	Source    string
	Coverage  float64
	// Fetched counts the live results merged into Documents.
	Fetched int
}

type Retriever struct {
	store     DocumentStore
	live      LiveFetcher
	processor *textprocessor.TextProcessor
	persister *persister
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Retriever)

func WithConfig(config Config) Option {
	return func(r *Retriever) { r.config = config }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(store DocumentStore, live LiveFetcher, opts ...Option) (*Retriever, error) {
	r := &Retriever{
		store:     store,
		live:      live,
		processor: textprocessor.NewTextProcessor(),
		config:    DefaultConfig(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "retriever")

	p, err := newPersister(store, r.config.PersistWorkers, r.config.PersistRetryWait, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence pool: %w", err)
	}
	r.persister = p
	return r, nil
}

// Retrieve never fails: store and live errors degrade to whatever
// candidates are available.
func (r *Retriever) Retrieve(ctx context.Context, req Request) Result {
	local, err := r.store.FindByTokenOverlap(ctx, req.Tokens, r.config.Limit)
	if err != nil {
		r.logger.Warn("local lookup failed", "err", err)
		local = nil
	}

	result := Result{
		Documents: local,
		Source:    SourceLocal,
		Coverage:  Coverage(req.Tokens, local),
	}
	if result.Documents == nil {
		result.Documents = []storage.Document{}
	}

	if len(local) >= r.config.MinResults && result.Coverage >= r.config.CoverageFloor {
		return result
	}

	result.Source = SourceHybrid
	if r.live == nil {
		return result
	}

	fetched, err := r.fetchLive(ctx, req)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.LiveFallbacks.WithLabelValues(outcome).Inc()
		r.logger.Warn("live fallback failed", "query", req.Query, "err", err)
		return result
	}
	if len(fetched) == 0 {
		metrics.LiveFallbacks.WithLabelValues("empty").Inc()
		return result
	}
	metrics.LiveFallbacks.WithLabelValues("ok").Inc()

	var added []storage.Document
	result.Documents, added = merge(result.Documents, fetched)
	result.Fetched = len(added)
	r.persister.submit(added)
	return result
}

func (r *Retriever) fetchLive(ctx context.Context, req Request) ([]storage.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.LiveFetchTimeout)
	defer cancel()

	query := strings.TrimSpace(req.Query)
	if req.Location != "" && intent.HasEmergencyKeyword(query) {
		query = query + " " + req.Location
	}

	results, err := r.live.Fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	now := r.now()
	docs := make([]storage.Document, 0, len(results))
	for _, res := range results {
		link := livefetch.NormalizeURLString(res.URL)
		if link == "" {
			continue
		}
		docs = append(docs, storage.Document{
			URL:         link,
			Title:       res.Title,
			Content:     res.Content,
			Tokens:      r.processor.Process(res.Title + " " + res.Content),
			Origin:      storage.OriginScraped,
			Category:    storage.CategoryNews,
			PublishedAt: res.PublishedAt,
			CreatedAt:   now,
		})
	}
	return docs, nil
}

// Close waits for pending background writes.
func (r *Retriever) Close() {
	r.persister.close()
}

// Coverage is the share of query tokens present in the candidate with the
// largest overlap.
func Coverage(queryTokens []string, docs []storage.Document) float64 {
	query := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		query[t] = struct{}{}
	}
	if len(query) == 0 || len(docs) == 0 {
		return 0
	}

	best := 0
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, t := range doc.Tokens {
			if _, ok := query[t]; ok {
				seen[t] = struct{}{}
			}
		}
		best = max(best, len(seen))
	}
	return float64(best) / float64(len(query))
}

// merge appends live documents whose URL is not already present, local
// documents first. It returns the combined list and the documents it added.
func merge(local, live []storage.Document) ([]storage.Document, []storage.Document) {
	seen := make(map[string]bool, len(local)+len(live))
	for _, doc := range local {
		seen[urlKey(doc.URL)] = true
	}

	var added []storage.Document
	for _, doc := range live {
		key := urlKey(doc.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		local = append(local, doc)
		added = append(added, doc)
	}
	return local, added
}

// urlKey identifies a page regardless of fragment, trailing slash, host
// case or a leading "www.".
func urlKey(link string) string {
	u, err := url.Parse(livefetch.NormalizeURLString(link))
	if err != nil {
		return link
	}
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return u.String()
}
