package ingest

import (
	"context"

	"github.com/deidaraiorek/lifeline/internal/intent"
	"github.com/deidaraiorek/lifeline/internal/storage"
	"github.com/deidaraiorek/lifeline/internal/tokenizer"
)

// SeedEntries turns the emergency seed queries into corpus entries so the
// predictor can complete them before anyone has searched.
func SeedEntries() []storage.CorpusEntry {
	seen := make(map[string]bool, len(intent.SeedQueries))
	entries := make([]storage.CorpusEntry, 0, len(intent.SeedQueries))
	for _, q := range intent.SeedQueries {
		phrase := tokenizer.CleanPhrase(q)
		if phrase == "" || seen[phrase] {
			continue
		}
		seen[phrase] = true
		entries = append(entries, storage.CorpusEntry{
			Phrase:    phrase,
			Category:  storage.CategoryEmergency,
			Frequency: 1,
		})
	}
	return entries
}

func Seed(ctx context.Context, store PhraseSeeder) (int, error) {
	return LoadPhrases(ctx, store, SeedEntries())
}
