// Package textprocessor applies tokenization and stemming, producing the
// term sequences used for both queries and stored documents.
package textprocessor

import (
	"github.com/deidaraiorek/lifeline/internal/tokenizer"
)

type TextProcessor struct {
	tokenizer *tokenizer.Tokenizer
	stemmer   *Stemmer
}

func NewTextProcessor() *TextProcessor {
	return &TextProcessor{
		tokenizer: tokenizer.NewTokenizer(),
		stemmer:   NewStemmer(),
	}
}

// Process returns the full stemmed token sequence, duplicates included.
func (tp *TextProcessor) Process(text string) []string {
	tokens := tp.tokenizer.Tokenize(text)

	stemmed := make([]string, len(tokens))
	for i, token := range tokens {
		stemmed[i] = tp.stemmer.Stem(token)
	}
	return stemmed
}

// Normalize is Process with duplicates removed, keeping first occurrence order.
func (tp *TextProcessor) Normalize(text string) []string {
	tokens := tp.Process(text)

	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if seen[token] {
			continue
		}
		seen[token] = true
		unique = append(unique, token)
	}
	return unique
}

type DocumentFields struct {
	Title   string
	Content string
}

type ProcessedDocument struct {
	Tokens          []string
	TermFrequencies map[string]int
	TotalTerms      int
	UniqueTerms     int
}

func (tp *TextProcessor) ProcessDocument(doc DocumentFields) ProcessedDocument {
	tokens := tp.Process(doc.Title + " " + doc.Content)
	termFreq := frequencies(tokens)

	return ProcessedDocument{
		Tokens:          tokens,
		TermFrequencies: termFreq,
		TotalTerms:      len(tokens),
		UniqueTerms:     len(termFreq),
	}
}

func frequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, token := range tokens {
		freq[token]++
	}
	return freq
}
