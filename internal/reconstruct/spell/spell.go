// Package spell implements the approximate spelling fallback of the
// reconstruction pipeline: given a word that is neither a dictionary entry nor
// reachable through confusion-group substitution, it proposes the nearest
// dictionary word.
//
// Candidates are ranked in this order:
//
//  1. Smallest Damerau-Levenshtein distance, up to the configured maximum
//     (default 2). A word one edit away always beats a word two edits away.
//  2. Highest dictionary frequency.
//  3. Highest Jaro-Winkler similarity to the input (favours shared prefixes).
//  4. Lexical order, so the result is fully deterministic.
package spell

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const defaultMaxDistance = 2

// Vocabulary is the read-only word source a [Checker] corrects against.
// [lexicon.Lexicon] satisfies it.
type Vocabulary interface {
	// Contains reports whether word is a known word.
	Contains(word string) bool

	// Frequency returns the relative frequency of a known word.
	Frequency(word string) int

	// WordsOfLength returns the known words of exactly n runes.
	WordsOfLength(n int) []string

	// MaxWordLength returns the rune length of the longest known word.
	MaxWordLength() int
}

// Option is a functional option for configuring a [Checker].
type Option func(*Checker)

// WithMaxDistance sets the largest edit distance a suggestion may have.
// Values below 1 are ignored. Default: 2.
func WithMaxDistance(d int) Option {
	return func(c *Checker) {
		if d >= 1 {
			c.maxDistance = d
		}
	}
}

// Checker proposes dictionary words for misspelled input. It is read-only
// after construction and safe for concurrent use.
type Checker struct {
	vocab       Vocabulary
	maxDistance int
}

// New returns a [Checker] over vocab.
func New(vocab Vocabulary, opts ...Option) *Checker {
	c := &Checker{
		vocab:       vocab,
		maxDistance: defaultMaxDistance,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correction returns the best dictionary word for word. ok is false when no
// dictionary word lies within the maximum edit distance; word is then
// returned unchanged. A word that already is in the vocabulary is returned
// as-is with ok true.
func (c *Checker) Correction(word string) (corrected string, ok bool) {
	if word == "" {
		return word, false
	}
	if c.vocab.Contains(word) {
		return word, true
	}

	n := utf8.RuneCountInString(word)
	lo := max(1, n-c.maxDistance)
	hi := min(c.vocab.MaxWordLength(), n+c.maxDistance)

	var best candidate
	for length := lo; length <= hi; length++ {
		for _, w := range c.vocab.WordsOfLength(length) {
			d := matchr.DamerauLevenshtein(word, w)
			if d > c.maxDistance {
				continue
			}
			cand := candidate{
				word:     w,
				distance: d,
				freq:     c.vocab.Frequency(w),
				sim:      matchr.JaroWinkler(word, w, false),
			}
			if best.word == "" || cand.better(best) {
				best = cand
			}
		}
	}

	if best.word == "" {
		return word, false
	}
	return best.word, true
}

type candidate struct {
	word     string
	distance int
	freq     int
	sim      float64
}

func (a candidate) better(b candidate) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	if a.freq != b.freq {
		return a.freq > b.freq
	}
	if a.sim != b.sim {
		return a.sim > b.sim
	}
	return a.word < b.word
}
