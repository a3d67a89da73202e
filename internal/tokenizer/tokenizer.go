// Package tokenizer turns free text into the lower-case word tokens that
// both queries and documents are indexed by.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	DefaultMinLength = 2
	DefaultMaxLength = 50
)

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// entities left behind by scraped HTML; hyphens and underscores split words.
var separators = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", " and ",
	"&lt;", " ",
	"&gt;", " ",
	"-", " ",
	"_", " ",
)

type Tokenizer struct {
	stopWords map[string]bool
	minLength int
	maxLength int
}

type Option func(*Tokenizer)

// WithStopWords adds words to the built-in stop list.
func WithStopWords(words ...string) Option {
	return func(t *Tokenizer) {
		for _, w := range words {
			t.stopWords[strings.ToLower(w)] = true
		}
	}
}

func WithLengthBounds(minLength, maxLength int) Option {
	return func(t *Tokenizer) {
		if minLength > 0 {
			t.minLength = minLength
		}
		if maxLength >= t.minLength {
			t.maxLength = maxLength
		}
	}
}

func NewTokenizer(opts ...Option) *Tokenizer {
	t := &Tokenizer{
		stopWords: defaultStopWords(),
		minLength: DefaultMinLength,
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize keeps word order and duplicates. Stop words, out-of-bounds
// lengths and numeric noise are dropped.
func (t *Tokenizer) Tokenize(text string) []string {
	words := wordPattern.FindAllString(separators.Replace(strings.ToLower(text)), -1)

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if t.keep(word) {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

func (t *Tokenizer) keep(word string) bool {
	if t.stopWords[word] {
		return false
	}
	if len(word) < t.minLength || len(word) > t.maxLength {
		return false
	}
	return t.IsValidToken(word)
}

func (t *Tokenizer) IsStopWord(word string) bool {
	return t.stopWords[strings.ToLower(word)]
}

// IsValidToken rejects numeric noise: all-digit words other than
// three-digit service numbers (911, 112), and words with more digits than
// letters.
func (t *Tokenizer) IsValidToken(word string) bool {
	var letters, digits int
	for _, r := range word {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	if letters == 0 {
		return digits == 3
	}
	return digits <= letters
}

// CleanPhrase lower-cases text, drops punctuation and collapses whitespace.
// Stop words are kept so the phrase reads the way the user typed it.
func CleanPhrase(text string) string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	return strings.Join(words, " ")
}

const stopList = `
a an the
i me my myself we our ours ourselves you your yours yourself yourselves
he him his himself she her hers herself it its itself
they them their theirs themselves
of at by for with about against between into through during before after
above below to from up down in out on off over under
and or but if while because as until than so nor yet
is am are was were be been being have has had having do does did doing
will would should could can may might must
this that these those what which who whom whose when where why how
all each every both few more most other some such
no not only own same then there too very
just now get got please near also any
`

func defaultStopWords() map[string]bool {
	words := strings.Fields(stopList)
	stop := make(map[string]bool, len(words))
	for _, w := range words {
		stop[w] = true
	}
	return stop
}
