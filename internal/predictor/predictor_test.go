package predictor_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lifeline/internal/backoff"
	"github.com/deidaraiorek/lifeline/internal/predictor"
	"github.com/deidaraiorek/lifeline/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "lifeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fastConfig() predictor.Config {
	config := predictor.DefaultConfig()
	config.Retry = backoff.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return config
}

func newPredictor(t *testing.T, store predictor.CorpusStore, config predictor.Config) *predictor.Predictor {
	t.Helper()
	p, err := predictor.New(store, predictor.WithConfig(config))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func seed(t *testing.T, store *storage.Store, phrases map[string]int) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	var entries []storage.CorpusEntry
	for phrase, freq := range phrases {
		entries = append(entries, storage.CorpusEntry{
			Phrase:       phrase,
			Category:     storage.CategoryEmergency,
			Frequency:    freq,
			LastSearched: base.Add(time.Duration(i) * time.Minute),
		})
		i++
	}
	_, err := store.SeedPhrases(context.Background(), entries)
	require.NoError(t, err)
}

func TestStartRebuildsFromCorpus(t *testing.T) {
	store := newStore(t)
	seed(t, store, map[string]int{
		"earthquake safety":     10,
		"earthquake kit":        3,
		"earthquake near me":    7,
		"flood warning":         5,
		"earthquake aftershock": 1,
	})

	p := newPredictor(t, store, fastConfig())
	assert.Equal(t, predictor.StateCold, p.State())
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, predictor.StateWarm, p.State())

	got := p.Predict(context.Background(), "Earth")
	assert.Equal(t, []string{"earthquake safety", "earthquake near me", "earthquake kit", "earthquake aftershock"}, got)
}

func TestPredictCapsAndExcludesInput(t *testing.T) {
	store := newStore(t)
	phrases := map[string]int{"fire": 50}
	for i := 0; i < 8; i++ {
		phrases[fmt.Sprintf("fire exit %d", i)] = i + 1
	}
	seed(t, store, phrases)

	p := newPredictor(t, store, fastConfig())
	require.NoError(t, p.Start(context.Background()))

	got := p.Predict(context.Background(), "FIRE")
	assert.Len(t, got, 5)
	assert.NotContains(t, got, "fire")
	assert.Equal(t, "fire exit 7", got[0])

	assert.Equal(t, got, p.Predict(context.Background(), "FIRE"))
	assert.Empty(t, p.Predict(context.Background(), "   "))
}

func TestLearnIsVisibleImmediately(t *testing.T) {
	store := newStore(t)
	p := newPredictor(t, store, fastConfig())
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Learn(context.Background(), "Gas leak in kitchen", storage.CategoryEmergency))
	assert.Contains(t, p.Predict(context.Background(), "gas"), "gas leak in kitchen")
	assert.Contains(t, p.Predict(context.Background(), "gas leak in"), "gas leak in kitchen")
}

func TestLearnPersistsToCorpus(t *testing.T) {
	store := newStore(t)
	p := newPredictor(t, store, fastConfig())
	require.NoError(t, p.Start(context.Background()))

	ctx := context.Background()
	require.NoError(t, p.Learn(ctx, "heart attack symptoms", storage.CategoryEmergency))
	require.NoError(t, p.Learn(ctx, "heart attack symptoms", storage.CategoryEmergency))
	require.NoError(t, p.Learn(ctx, "heart attack first aid", storage.CategoryEmergency))
	p.Flush()

	entries, err := store.FindByPrefixOrCategory(ctx, "heart attack symptoms", "", 5, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Frequency)
	assert.Equal(t, storage.CategoryEmergency, entries[0].Category)

	next, err := store.FindAllNextWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []storage.NextWord{{Word: "symptoms", Count: 2}, {Word: "first", Count: 1}}, next["heart attack"])

	fresh := newPredictor(t, store, fastConfig())
	require.NoError(t, fresh.Start(ctx))
	assert.Equal(t, []string{"symptoms", "first"}, fresh.NextWords("Heart attack"))
	assert.Equal(t, []string{"heart attack symptoms", "heart attack first aid"}, fresh.Predict(ctx, "heart"))
}

func TestLearnIgnoresShortPhrases(t *testing.T) {
	store := &flakyStore{}
	p := newPredictor(t, store, fastConfig())

	require.NoError(t, p.Learn(context.Background(), "ab", ""))
	require.NoError(t, p.Learn(context.Background(), " !! ", ""))
	p.Flush()

	assert.Zero(t, store.upserts())
	assert.Empty(t, p.Predict(context.Background(), "a"))
}

func TestNextWordsFallsBackToLastWord(t *testing.T) {
	p := newPredictor(t, &flakyStore{}, fastConfig())
	ctx := context.Background()

	require.NoError(t, p.Learn(ctx, "flood rescue boat", ""))
	require.NoError(t, p.Learn(ctx, "flood rescue team", ""))
	require.NoError(t, p.Learn(ctx, "flood rescue team", ""))

	assert.Equal(t, []string{"team", "boat"}, p.NextWords("flood rescue"))
	assert.Equal(t, []string{"team", "boat"}, p.NextWords("call rescue"))
	assert.Empty(t, p.NextWords("volcano"))
	assert.Empty(t, p.NextWords(""))
}

func TestConcurrentLearnsSumFrequencies(t *testing.T) {
	store := newStore(t)
	p := newPredictor(t, store, fastConfig())
	require.NoError(t, p.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Learn(context.Background(), "tsunami warning", storage.CategoryEmergency))
		}()
	}
	wg.Wait()
	p.Flush()

	entries, err := store.FindByPrefixOrCategory(context.Background(), "tsunami", "", 5, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 20, entries[0].Frequency)
}

func TestPersistRetriesUntilSuccess(t *testing.T) {
	store := &flakyStore{failures: 2}
	p := newPredictor(t, store, fastConfig())

	require.NoError(t, p.Learn(context.Background(), "wildfire smoke", ""))
	p.Flush()

	assert.Equal(t, 3, store.upserts())
	assert.Equal(t, 1, store.stored("wildfire smoke"))
}

func TestLearnDoesNotWaitForSlowWrites(t *testing.T) {
	store := &flakyStore{block: make(chan struct{})}
	p := newPredictor(t, store, fastConfig())

	for i := 0; i < 5; i++ {
		done := make(chan error, 1)
		go func() { done <- p.Learn(context.Background(), fmt.Sprintf("flash flood %d", i), "") }()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatalf("learn %d blocked on a pending write", i)
		}
	}
	assert.Len(t, p.Predict(context.Background(), "flash"), 5)

	close(store.block)
	p.Flush()
	assert.Equal(t, 5, store.upserts())
}

func TestLearnContinuesDuringSnapshotWrite(t *testing.T) {
	writing := make(chan struct{})
	release := make(chan struct{})
	restore := predictor.SetSnapshotWriter(func(path string, data []byte) error {
		close(writing)
		<-release
		return nil
	})
	defer restore()

	config := fastConfig()
	config.SnapshotPath = filepath.Join(t.TempDir(), "predictor.gob")
	p := newPredictor(t, &flakyStore{}, config)
	require.NoError(t, p.Learn(context.Background(), "heat stroke", ""))

	saved := make(chan error, 1)
	go func() { saved <- p.SaveSnapshot() }()
	<-writing

	done := make(chan error, 1)
	go func() { done <- p.Learn(context.Background(), "heat wave", "") }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("learn blocked while the snapshot was being written")
	}

	close(release)
	require.NoError(t, <-saved)
}

func TestPredictSupplementsFromStore(t *testing.T) {
	store := &flakyStore{extra: []storage.CorpusEntry{
		{Phrase: "cyclone shelter list", Frequency: 9},
		{Phrase: "cyclone", Frequency: 4},
	}}
	p := newPredictor(t, store, fastConfig())

	require.NoError(t, p.Learn(context.Background(), "cyclone path", ""))
	got := p.Predict(context.Background(), "cyclone")
	assert.Equal(t, []string{"cyclone path", "cyclone shelter list"}, got)
}

func TestPredictSurvivesStoreErrors(t *testing.T) {
	store := &flakyStore{findErr: errors.New("no such table")}
	p := newPredictor(t, store, fastConfig())

	require.NoError(t, p.Learn(context.Background(), "storm surge", ""))
	assert.Equal(t, []string{"storm surge"}, p.Predict(context.Background(), "storm"))
}

func TestRebuildKeepsUnpersistedLearns(t *testing.T) {
	store := &flakyStore{failures: 100}
	config := fastConfig()
	config.Retry.MaxAttempts = 1
	p := newPredictor(t, store, config)

	require.NoError(t, p.Learn(context.Background(), "landslide road", ""))
	require.NoError(t, p.Rebuild(context.Background()))

	assert.Equal(t, []string{"landslide road"}, p.Predict(context.Background(), "land"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	config := fastConfig()
	config.SnapshotPath = filepath.Join(dir, "predictor.gob")

	first, err := predictor.New(&flakyStore{}, predictor.WithConfig(config))
	require.NoError(t, err)
	require.NoError(t, first.Learn(context.Background(), "chemical spill", ""))
	require.NoError(t, first.Learn(context.Background(), "chemical burn", ""))
	require.NoError(t, first.Close())
	assert.ErrorIs(t, first.Learn(context.Background(), "late phrase", ""), predictor.ErrClosed)

	empty := &flakyStore{}
	second := newPredictor(t, empty, config)
	require.NoError(t, second.Start(context.Background()))

	assert.Equal(t, predictor.StateWarm, second.State())
	assert.ElementsMatch(t, []string{"chemical spill", "chemical burn"}, second.Predict(context.Background(), "chem"))
	assert.Zero(t, empty.findAllCalls)
}

func TestCorruptSnapshotTriggersRebuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predictor.gob")
	require.NoError(t, os.WriteFile(path, []byte("not a gob stream"), 0o644))

	config := fastConfig()
	config.SnapshotPath = path
	store := &flakyStore{all: []storage.CorpusEntry{{Phrase: "blizzard travel", Frequency: 2}}}
	p := newPredictor(t, store, config)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 1, store.findAllCalls)
	assert.Equal(t, []string{"blizzard travel"}, p.Predict(context.Background(), "bliz"))
}

// flakyStore is an in-memory corpus whose writes can be made to fail.
type flakyStore struct {
	mu           sync.Mutex
	failures     int
	attempts     int
	phrases      map[string]int
	extra        []storage.CorpusEntry
	all          []storage.CorpusEntry
	findErr      error
	findAllCalls int
	// block, when set, holds every phrase write until it is closed.
	block chan struct{}
}

func (s *flakyStore) UpsertPhrase(ctx context.Context, phrase, category string, delta int, at time.Time) (storage.CorpusEntry, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return storage.CorpusEntry{}, errors.New("database is locked")
	}
	if s.phrases == nil {
		s.phrases = make(map[string]int)
	}
	s.phrases[phrase] += delta
	return storage.CorpusEntry{Phrase: phrase, Frequency: s.phrases[phrase]}, nil
}

func (s *flakyStore) FindByPrefixOrCategory(ctx context.Context, prefix, category string, limit int, byFrequency bool) ([]storage.CorpusEntry, error) {
	return s.extra, s.findErr
}

func (s *flakyStore) FindAllPhrases(ctx context.Context) ([]storage.CorpusEntry, error) {
	s.findAllCalls++
	return s.all, nil
}

func (s *flakyStore) AddNextWord(ctx context.Context, lead, word string) error {
	return nil
}

func (s *flakyStore) FindAllNextWords(ctx context.Context) (map[string][]storage.NextWord, error) {
	return map[string][]storage.NextWord{}, nil
}

func (s *flakyStore) upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *flakyStore) stored(phrase string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phrases[phrase]
}
