package textprocessor_test

import (
	"testing"

	"github.com/deidaraiorek/lifeline/internal/textprocessor"
)

func TestStem(t *testing.T) {
	stemmer := textprocessor.NewStemmer()

	tests := []struct {
		input    string
		expected string
	}{
		{"running", "run"},
		{"runs", "run"},
		{"walking", "walk"},
		{"walked", "walk"},

		{"floods", "flood"},
		{"warnings", "warn"},
		{"shelters", "shelter"},
		{"burns", "burn"},
		{"searches", "search"},
		{"companies", "compani"},

		{"911", "911"},
		{"data", "data"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := stemmer.Stem(tt.input)
			if result != tt.expected {
				t.Errorf("Stem(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStemCachesResults(t *testing.T) {
	stemmer := textprocessor.NewStemmerSize(2)

	for _, word := range []string{"floods", "floods", "warnings"} {
		stemmer.Stem(word)
	}
	if got := stemmer.Cached(); got != 2 {
		t.Fatalf("Cached() = %d, want 2", got)
	}

	stemmer.Stem("shelters")
	if got := stemmer.Cached(); got != 2 {
		t.Errorf("Cached() = %d after eviction, want 2", got)
	}
	if got := stemmer.Stem("floods"); got != "flood" {
		t.Errorf("Stem(floods) after eviction = %q, want flood", got)
	}
}
