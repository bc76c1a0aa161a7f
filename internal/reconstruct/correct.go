package reconstruct

import (
	"unicode/utf8"

	"github.com/MrWong99/signspeak/pkg/types"
)

// DefaultMaxTokenLength is the longest token the confusion search runs on.
const DefaultMaxTokenLength = 32

// ConfusionDictionary is a [Dictionary] that also knows which letters are
// confusable and can list its words by length. [lexicon.Lexicon] satisfies
// it.
type ConfusionDictionary interface {
	Dictionary

	// WordsOfLength returns the entries of exactly n runes.
	WordsOfLength(n int) []string

	// Alternatives returns c followed by the lower-case members of its
	// confusion group, in configured order.
	Alternatives(c rune) []rune
}

// SpellChecker proposes the nearest known word for a misspelled one. ok is
// false when it has no proposal.
type SpellChecker interface {
	Correction(word string) (corrected string, ok bool)
}

// CorrectorOption is a functional option for configuring a [Corrector].
type CorrectorOption func(*Corrector)

// WithSpellChecker attaches the approximate-correction fallback. When nil
// (the default), tokens that survive the confusion search pass through.
func WithSpellChecker(sc SpellChecker) CorrectorOption {
	return func(c *Corrector) {
		c.spell = sc
	}
}

// WithMaxTokenLength sets the longest token (in runes) the confusion search
// is attempted on. Longer tokens go straight to the spelling fallback.
// Values below 1 are ignored. Default: 32.
func WithMaxTokenLength(n int) CorrectorOption {
	return func(c *Corrector) {
		if n >= 1 {
			c.maxTokenLen = n
		}
	}
}

// Corrector resolves a segmenter token to a dictionary word. It is read-only
// after construction and safe for concurrent use.
type Corrector struct {
	dict        ConfusionDictionary
	spell       SpellChecker
	maxTokenLen int
}

// NewCorrector returns a [Corrector] over dict.
func NewCorrector(dict ConfusionDictionary, opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		dict:        dict,
		maxTokenLen: DefaultMaxTokenLength,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns the word for tok, trying in order:
//
//  1. Exact dictionary match.
//  2. Confusion substitution: the candidate space is the Cartesian product of
//     every letter's alternatives ([ConfusionDictionary.Alternatives]),
//     enumerated with the last position varying fastest. The first candidate
//     in that order that is a dictionary word wins.
//  3. The spelling fallback, when configured.
//  4. The token itself.
//
// Correct never fails; not finding a better word is the pass-through outcome.
func (c *Corrector) Correct(tok types.Token) types.CorrectedToken {
	word := string(tok)
	if c.dict.Contains(word) {
		return types.CorrectedToken{Token: tok, Word: word, Method: types.MethodExact}
	}
	if w, ok := c.confusionMatch(word); ok {
		return types.CorrectedToken{Token: tok, Word: w, Method: types.MethodConfusion}
	}
	if c.spell != nil {
		if w, ok := c.spell.Correction(word); ok {
			return types.CorrectedToken{Token: tok, Word: w, Method: types.MethodSpelling}
		}
	}
	return types.CorrectedToken{Token: tok, Word: word, Method: types.MethodPassthrough}
}

// confusionMatch finds the earliest dictionary word in the product
// enumeration without expanding it. Substitution preserves length, so only
// words with as many runes as the token can match; for each of them the rank
// vector (index of each letter within its position's alternatives) is
// compared lexicographically, which is exactly enumeration order. Cost is
// O(|words of that length| × len(word)) instead of ∏|alternatives|.
func (c *Corrector) confusionMatch(word string) (string, bool) {
	n := utf8.RuneCountInString(word)
	if n == 0 || n > c.maxTokenLen {
		return "", false
	}
	candidates := c.dict.WordsOfLength(n)
	if len(candidates) == 0 {
		return "", false
	}

	alts := make([][]rune, 0, n)
	for _, r := range word {
		alts = append(alts, c.dict.Alternatives(r))
	}

	var (
		best     string
		bestRank []int
		rank     = make([]int, n)
	)
	for _, w := range candidates {
		if !rankWord(w, alts, rank) {
			continue
		}
		if bestRank == nil || lessRank(rank, bestRank) {
			best = w
			bestRank = append(bestRank[:0], rank...)
		}
	}
	return best, bestRank != nil
}

// rankWord fills rank with the position of each letter of w within alts and
// reports whether w is reachable at all.
func rankWord(w string, alts [][]rune, rank []int) bool {
	i := 0
	for _, r := range w {
		k := indexRune(alts[i], r)
		if k < 0 {
			return false
		}
		rank[i] = k
		i++
	}
	return true
}

func indexRune(rs []rune, r rune) int {
	for i, x := range rs {
		if x == r {
			return i
		}
	}
	return -1
}

func lessRank(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
