// Package bm25 scores candidate documents against a query with Okapi BM25.
// Length statistics come from the candidate set; N comes from the
// configured corpus size when one is known.
package bm25

import "math"

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type Scorer struct {
	K1 float64
	B  float64
	// CorpusSize is the total number of documents in the corpus. Zero
	// means unknown, in which case the candidate count is used.
	CorpusSize int
}

func New(corpusSize int) Scorer {
	return Scorer{K1: DefaultK1, B: DefaultB, CorpusSize: corpusSize}
}

// Score returns one score per document, in input order. Documents without
// tokens score 0.
func (s Scorer) Score(queryTokens []string, docs [][]string) []float64 {
	scores := make([]float64, len(docs))
	if len(queryTokens) == 0 || len(docs) == 0 {
		return scores
	}

	totalLen := 0
	termFreqs := make([]map[string]int, len(docs))
	docFreq := make(map[string]int)
	for i, tokens := range docs {
		totalLen += len(tokens)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		termFreqs[i] = tf
		for term := range tf {
			docFreq[term]++
		}
	}

	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		avgLen = 1
	}

	n := float64(len(docs))
	if s.CorpusSize > len(docs) {
		n = float64(s.CorpusSize)
	}

	for i, tokens := range docs {
		if len(tokens) == 0 {
			continue
		}
		docLen := float64(len(tokens))
		score := 0.0
		for _, q := range queryTokens {
			tf := float64(termFreqs[i][q])
			if tf == 0 {
				continue
			}
			score += s.IDF(n, docFreq[q]) * tf * (s.K1 + 1) /
				(tf + s.K1*(1-s.B+s.B*docLen/avgLen))
		}
		scores[i] = score
	}
	return scores
}

// IDF is the non-negative BM25 inverse document frequency.
func (s Scorer) IDF(n float64, df int) float64 {
	d := float64(df)
	return math.Log((n-d+0.5)/(d+0.5) + 1)
}
