package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/deidaraiorek/lifeline/internal/storage"
)

type TrainConfig struct {
	// TopN caps how many of the most frequent n-grams are kept.
	TopN int
	// MinLength drops phrases of this many characters or fewer.
	MinLength int
	Category  string
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TopN:      5000,
		MinLength: 5,
		Category:  storage.CategoryLiterature,
	}
}

// Train counts word bigrams and trigrams in raw text and returns the most
// frequent ones as corpus entries. Text is lower-cased and reduced to
// letters before counting.
func Train(r io.Reader, config TrainConfig) ([]storage.CorpusEntry, error) {
	if config.TopN <= 0 {
		config.TopN = DefaultTrainConfig().TopN
	}
	if config.Category == "" {
		config.Category = storage.CategoryLiterature
	}

	words, err := readWords(r)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := 0; i+1 < len(words); i++ {
		counts[words[i]+" "+words[i+1]]++
		if i+2 < len(words) {
			counts[words[i]+" "+words[i+1]+" "+words[i+2]]++
		}
	}

	phrases := make([]string, 0, len(counts))
	for p := range counts {
		phrases = append(phrases, p)
	}
	sort.Slice(phrases, func(a, b int) bool {
		if counts[phrases[a]] != counts[phrases[b]] {
			return counts[phrases[a]] > counts[phrases[b]]
		}
		return phrases[a] < phrases[b]
	})
	if len(phrases) > config.TopN {
		phrases = phrases[:config.TopN]
	}

	entries := make([]storage.CorpusEntry, 0, len(phrases))
	for _, p := range phrases {
		if len(p) <= config.MinLength {
			continue
		}
		entries = append(entries, storage.CorpusEntry{
			Phrase:    p,
			Category:  config.Category,
			Frequency: counts[p],
		})
	}
	return entries, nil
}

func readWords(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanWords)

	var words []string
	for scanner.Scan() {
		w := strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' {
				return r
			}
			return -1
		}, strings.ToLower(scanner.Text()))
		if w != "" {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read training text: %w", err)
	}
	return words, nil
}

// LoadPhrases stores trained entries. Existing frequencies are never
// lowered.
func LoadPhrases(ctx context.Context, store PhraseSeeder, entries []storage.CorpusEntry) (int, error) {
	n, err := store.SeedPhrases(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("failed to load phrases: %w", err)
	}
	return n, nil
}
