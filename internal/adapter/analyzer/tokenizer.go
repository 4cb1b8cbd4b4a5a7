package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer turns raw text into normalized terms. Documents and queries must
// go through the same Tokenizer so that term identity is consistent.
type Tokenizer struct {
	stopwords map[string]struct{}
	useStem   bool
	useStop   bool
	minLen    int
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithStopwords toggles English stop word removal (enabled by default).
func WithStopwords(enabled bool) Option {
	return func(t *Tokenizer) { t.useStop = enabled }
}

// WithMinTokenLen drops terms shorter than n runes (default 2).
func WithMinTokenLen(n int) Option {
	return func(t *Tokenizer) {
		if n > 0 {
			t.minLen = n
		}
	}
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(useStemming bool, opts ...Option) *Tokenizer {
	t := &Tokenizer{
		stopwords: defaultStopwords(),
		useStem:   useStemming,
		useStop:   true,
		minLen:    2,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize splits text into normalized terms.
func (t *Tokenizer) Tokenize(text string) []string {
	raw := splitWords(text)
	tokens := make([]string, 0, len(raw))

	for _, word := range raw {
		word = cleanWord(word)
		if utf8.RuneCountInString(word) < t.minLen {
			continue
		}
		if t.useStop {
			if _, isStop := t.stopwords[word]; isStop {
				continue
			}
		}
		if t.useStem {
			word = english.Stem(word, false)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CountTokens returns the number of raw words in text, before filtering.
func (t *Tokenizer) CountTokens(text string) int {
	return len(splitWords(text))
}

// splitWords segments NFKC-normalized text on UAX#29 word boundaries and
// keeps only segments carrying at least one letter or digit.
func splitWords(text string) []string {
	var out []string

	segments := words.FromString(norm.NFKC.String(text))
	for segments.Next() {
		seg := segments.Value()
		if strings.IndexFunc(seg, isWordRune) < 0 {
			continue
		}
		out = append(out, seg)
	}

	return out
}

// cleanWord lowercases w and strips every rune that is not a letter or digit,
// so "Don't" and "dont" become the same term.
func cleanWord(w string) string {
	var b strings.Builder
	b.Grow(len(w))
	for _, r := range strings.ToLower(w) {
		if isWordRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
