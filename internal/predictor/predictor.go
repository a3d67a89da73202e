// Package predictor serves query suggestions from an in-memory prefix
// index that is derived from, and rebuildable out of, the persisted query
// corpus.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/deidaraiorek/lifeline/internal/backoff"
	"github.com/deidaraiorek/lifeline/internal/metrics"
	"github.com/deidaraiorek/lifeline/internal/storage"
	"github.com/deidaraiorek/lifeline/internal/tokenizer"
)

const (
	StateCold = "cold"
	StateWarm = "warm"
)

var ErrClosed = errors.New("predictor is closed")

type CorpusStore interface {
	UpsertPhrase(ctx context.Context, phrase, category string, delta int, at time.Time) (storage.CorpusEntry, error)
	FindByPrefixOrCategory(ctx context.Context, prefix, category string, limit int, byFrequency bool) ([]storage.CorpusEntry, error)
	FindAllPhrases(ctx context.Context) ([]storage.CorpusEntry, error)
	AddNextWord(ctx context.Context, lead, word string) error
	FindAllNextWords(ctx context.Context) (map[string][]storage.NextWord, error)
}

type Config struct {
	MaxSuggestions  int            `yaml:"max_suggestions"`
	MinPhraseLength int            `yaml:"min_phrase_length"`
	SnapshotPath    string         `yaml:"snapshot_path"`
	SnapshotEvery   int            `yaml:"snapshot_every"`
	Workers         int            `yaml:"workers"`
	Retry           backoff.Config `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		MaxSuggestions:  5,
		MinPhraseLength: 3,
		SnapshotEvery:   50,
		Workers:         2,
		Retry: backoff.Config{
			MaxAttempts: 5,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Multiplier:  2,
		},
	}
}

type entry struct {
	Frequency    int
	LastSearched time.Time
	Category     string
}

// index is everything the predictor serves from memory. It is replaced
// wholesale on rebuild.
type index struct {
	Phrases *trie
	Meta    map[string]entry
	Next    map[string]map[string]int
}

func newIndex() *index {
	return &index{
		Phrases: newTrie(),
		Meta:    make(map[string]entry),
		Next:    make(map[string]map[string]int),
	}
}

func (ix *index) learn(phrase, category string, at time.Time, delta int) {
	ix.Phrases.insert(phrase)
	e := ix.Meta[phrase]
	e.Frequency += delta
	if at.After(e.LastSearched) {
		e.LastSearched = at
	}
	e.Category = category
	ix.Meta[phrase] = e
}

func (ix *index) addNext(lead, word string, count int) {
	words, ok := ix.Next[lead]
	if !ok {
		words = make(map[string]int)
		ix.Next[lead] = words
	}
	words[word] += count
}

type Predictor struct {
	store  CorpusStore
	config Config
	logger *slog.Logger
	now    func() time.Time

	pool       *ants.Pool
	wg         sync.WaitGroup
	snapshotMu sync.Mutex

	mu      sync.RWMutex
	idx     *index
	state   string
	learned int
	closed  bool
}

type Option func(*Predictor)

func WithConfig(config Config) Option {
	return func(p *Predictor) { p.config = config }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Predictor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Predictor) { p.now = now }
}

func New(store CorpusStore, opts ...Option) (*Predictor, error) {
	p := &Predictor{
		store:  store,
		config: DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
		idx:    newIndex(),
		state:  StateCold,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.config.MaxSuggestions <= 0 {
		p.config.MaxSuggestions = 5
	}
	if p.config.Workers < 1 {
		p.config.Workers = 1
	}
	p.logger = p.logger.With("component", "predictor")

	pool, err := ants.NewPool(p.config.Workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create write pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Start warms the index from the snapshot when one is configured and
// readable, otherwise from the corpus store.
func (p *Predictor) Start(ctx context.Context) error {
	if p.config.SnapshotPath != "" {
		idx, err := loadSnapshot(p.config.SnapshotPath)
		if err == nil {
			p.swap(idx)
			p.logger.Info("loaded prediction snapshot", "phrases", idx.Phrases.Size)
			return nil
		}
		p.logger.Warn("snapshot unusable, rebuilding from corpus", "path", p.config.SnapshotPath, "err", err)
	}
	return p.Rebuild(ctx)
}

// Rebuild loads the whole corpus into a fresh index and swaps it in.
// Phrases learned in memory but not yet visible in the store survive the
// swap.
func (p *Predictor) Rebuild(ctx context.Context) error {
	entries, err := p.store.FindAllPhrases(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	nextWords, err := p.store.FindAllNextWords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load next words: %w", err)
	}

	idx := newIndex()
	for _, e := range entries {
		phrase := tokenizer.CleanPhrase(e.Phrase)
		if phrase == "" {
			continue
		}
		idx.learn(phrase, e.Category, e.LastSearched, e.Frequency)
	}
	for lead, words := range nextWords {
		for _, w := range words {
			idx.addNext(lead, w.Word, w.Count)
		}
	}

	p.swap(idx)
	p.logger.Info("prediction index rebuilt", "phrases", idx.Phrases.Size, "contexts", len(idx.Next))
	return nil
}

func (p *Predictor) swap(idx *index) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for phrase, old := range p.idx.Meta {
		fresh, ok := idx.Meta[phrase]
		if !ok {
			idx.learn(phrase, old.Category, old.LastSearched, old.Frequency)
			continue
		}
		if old.Frequency > fresh.Frequency {
			fresh.Frequency = old.Frequency
		}
		if old.LastSearched.After(fresh.LastSearched) {
			fresh.LastSearched = old.LastSearched
		}
		idx.Meta[phrase] = fresh
	}
	p.idx = idx
	p.state = StateWarm
}

func (p *Predictor) State() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Predict returns up to MaxSuggestions phrases for prefix, never the
// normalized prefix itself.
func (p *Predictor) Predict(ctx context.Context, prefix string) []string {
	metrics.Predictions.Inc()

	q := tokenizer.CleanPhrase(prefix)
	if q == "" {
		return []string{}
	}
	limit := p.config.MaxSuggestions

	p.mu.RLock()
	matches := p.idx.Phrases.withPrefix(q)
	meta := make(map[string]entry, len(matches))
	for _, m := range matches {
		meta[m] = p.idx.Meta[m]
	}
	p.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := meta[matches[i]], meta[matches[j]]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if !a.LastSearched.Equal(b.LastSearched) {
			return a.LastSearched.After(b.LastSearched)
		}
		return matches[i] < matches[j]
	})

	suggestions := make([]string, 0, limit)
	seen := map[string]bool{q: true}
	add := func(phrase string) {
		if len(suggestions) < limit && !seen[phrase] {
			seen[phrase] = true
			suggestions = append(suggestions, phrase)
		}
	}
	for _, m := range matches {
		add(m)
	}

	if len(suggestions) < limit {
		extra, err := p.store.FindByPrefixOrCategory(ctx, q, "", limit*2, true)
		if err != nil {
			p.logger.Warn("corpus lookup failed", "prefix", q, "err", err)
		}
		for _, e := range extra {
			add(tokenizer.CleanPhrase(e.Phrase))
		}
	}
	return suggestions
}

// NextWords suggests words that followed text in learned phrases. When the
// whole text is unknown, its last word is used as the context.
func (p *Predictor) NextWords(text string) []string {
	lead := tokenizer.CleanPhrase(text)
	if lead == "" {
		return []string{}
	}

	p.mu.RLock()
	words := p.idx.Next[lead]
	if len(words) == 0 {
		words = p.idx.Next[lastWord(lead)]
	}
	type scored struct {
		word  string
		count int
	}
	ranked := make([]scored, 0, len(words))
	for w, c := range words {
		ranked = append(ranked, scored{w, c})
	}
	p.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	out := make([]string, 0, p.config.MaxSuggestions)
	for _, r := range ranked {
		if len(out) == p.config.MaxSuggestions {
			break
		}
		out = append(out, r.word)
	}
	return out
}

// Learn makes phrase visible to Predict immediately and persists it in the
// background. Phrases shorter than MinPhraseLength are ignored.
func (p *Predictor) Learn(ctx context.Context, phrase, category string) error {
	phrase = tokenizer.CleanPhrase(phrase)
	if len(phrase) < p.config.MinPhraseLength {
		return nil
	}
	if category == "" {
		category = storage.CategoryGeneral
	}
	at := p.now()
	pairs := nextWordPairs(phrase)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.idx.learn(phrase, category, at, 1)
	for _, pair := range pairs {
		p.idx.addNext(pair[0], pair[1], 1)
	}
	p.learned++
	snapshotDue := p.config.SnapshotPath != "" && p.config.SnapshotEvery > 0 && p.learned%p.config.SnapshotEvery == 0
	p.mu.Unlock()

	p.submit(func() { p.persist(phrase, category, at, pairs) })
	if snapshotDue {
		p.submit(func() {
			if err := p.SaveSnapshot(); err != nil {
				p.logger.Warn("failed to save snapshot", "err", err)
			}
		})
	}
	return nil
}

// submit never blocks the caller. When every worker is busy the task runs
// on its own goroutine; Flush and Close still wait for it.
func (p *Predictor) submit(task func()) {
	p.wg.Add(1)
	run := func() {
		defer p.wg.Done()
		task()
	}
	if err := p.pool.Submit(run); err != nil {
		p.logger.Debug("write pool saturated, detaching task", "err", err)
		go run()
	}
}

// persist retries each write until it lands or attempts run out.
func (p *Predictor) persist(phrase, category string, at time.Time, pairs [][2]string) {
	ctx := context.Background()

	_, err := backoff.Retry(ctx, p.config.Retry, func() (storage.CorpusEntry, error) {
		return p.store.UpsertPhrase(ctx, phrase, category, 1, at)
	})
	if err != nil {
		metrics.PersistFailures.WithLabelValues("corpus").Inc()
		p.logger.Error("failed to persist learned phrase", "phrase", phrase, "err", err)
	}

	for _, pair := range pairs {
		_, err := backoff.Retry(ctx, p.config.Retry, func() (struct{}, error) {
			return struct{}{}, p.store.AddNextWord(ctx, pair[0], pair[1])
		})
		if err != nil {
			metrics.PersistFailures.WithLabelValues("next_words").Inc()
			p.logger.Error("failed to persist next word", "lead", pair[0], "word", pair[1], "err", err)
		}
	}
}

// Flush waits for queued background writes.
func (p *Predictor) Flush() {
	p.wg.Wait()
}

// Close drains pending writes, saves the snapshot when configured and
// releases the pool.
func (p *Predictor) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	defer p.pool.Release()

	if p.config.SnapshotPath != "" {
		return p.SaveSnapshot()
	}
	return nil
}

// nextWordPairs yields (context, word) pairs for every word after the
// first: the whole leading phrase, plus the single previous word when it
// differs.
func nextWordPairs(phrase string) [][2]string {
	words := strings.Fields(phrase)
	var pairs [][2]string
	for i := 1; i < len(words); i++ {
		pairs = append(pairs, [2]string{strings.Join(words[:i], " "), words[i]})
		if i > 1 {
			pairs = append(pairs, [2]string{words[i-1], words[i]})
		}
	}
	return pairs
}

func lastWord(phrase string) string {
	if i := strings.LastIndexByte(phrase, ' '); i >= 0 {
		return phrase[i+1:]
	}
	return phrase
}
