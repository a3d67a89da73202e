package textprocessor

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kljensen/snowball"
)

const defaultStemCacheSize = 50000

// Stemmer reduces English words to snowball stems and remembers recent
// answers. It is safe for concurrent use.
type Stemmer struct {
	cache *lru.Cache[string, string]
}

func NewStemmer() *Stemmer {
	return NewStemmerSize(defaultStemCacheSize)
}

func NewStemmerSize(cacheSize int) *Stemmer {
	if cacheSize <= 0 {
		cacheSize = defaultStemCacheSize
	}
	cache, _ := lru.New[string, string](cacheSize)
	return &Stemmer{cache: cache}
}

// Stem returns word unchanged when snowball cannot handle it.
func (s *Stemmer) Stem(word string) string {
	if stem, ok := s.cache.Get(word); ok {
		return stem
	}
	stem, err := snowball.Stem(word, "english", true)
	if err != nil {
		stem = word
	}
	s.cache.Add(word, stem)
	return stem
}

func (s *Stemmer) Cached() int {
	return s.cache.Len()
}
