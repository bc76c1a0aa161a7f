// Package lexicon holds the read-only vocabulary the reconstruction pipeline
// corrects against: the dictionary of valid words, their relative
// frequencies, and the table of visually confusable letters.
//
// A [Lexicon] is built exactly once by [New], [Load], [LoadFromReader] or
// [Default] and never changes afterwards. All methods are safe for concurrent
// use without locking; callers only need to finish construction before
// sharing the value.
package lexicon

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyDictionary is returned when a lexicon is built without any words.
var ErrEmptyDictionary = errors.New("lexicon: dictionary is empty")

// Lexicon is an immutable dictionary plus confusion table.
type Lexicon struct {
	language  string
	words     map[string]int // word → frequency
	sorted    []string
	byLength  map[int][]string
	maxLen    int
	confusion map[rune][]rune // upper-case letter → upper-case confusables
}

// Spec is the raw material for a [Lexicon]. It mirrors the YAML lexicon file
// format; see [LoadFromReader].
type Spec struct {
	// Language is a BCP-47 tag describing the dictionary (e.g., "tl").
	Language string `yaml:"language"`

	// Words lists the valid words. Case and Unicode form are normalised.
	Words []string `yaml:"words"`

	// Frequencies optionally assigns a relative frequency to words. Words
	// without an entry get frequency 1. Entries for words not in Words are
	// an error.
	Frequencies map[string]int `yaml:"frequencies"`

	// Confusion maps a single letter to the letters it is commonly
	// misclassified as. Keys and values are case-insensitive single letters.
	Confusion map[string][]string `yaml:"confusion"`
}

// New validates spec and builds a [Lexicon]. It returns a joined error
// listing every problem found.
func New(spec Spec) (*Lexicon, error) {
	var errs []error

	lx := &Lexicon{
		language:  spec.Language,
		words:     make(map[string]int, len(spec.Words)),
		byLength:  make(map[int][]string),
		confusion: make(map[rune][]rune, len(spec.Confusion)),
	}

	for i, raw := range spec.Words {
		w := normalizeWord(raw)
		if err := checkWord(w); err != nil {
			errs = append(errs, fmt.Errorf("words[%d]: %w", i, err))
			continue
		}
		if _, dup := lx.words[w]; dup {
			continue
		}
		lx.words[w] = 1
		lx.sorted = append(lx.sorted, w)
		n := utf8.RuneCountInString(w)
		lx.byLength[n] = append(lx.byLength[n], w)
		if n > lx.maxLen {
			lx.maxLen = n
		}
	}
	if len(lx.words) == 0 && len(errs) == 0 {
		errs = append(errs, ErrEmptyDictionary)
	}

	for raw, freq := range spec.Frequencies {
		w := normalizeWord(raw)
		if _, ok := lx.words[w]; !ok {
			errs = append(errs, fmt.Errorf("frequencies: %q is not a dictionary word", raw))
			continue
		}
		if freq <= 0 {
			errs = append(errs, fmt.Errorf("frequencies: %q has non-positive frequency %d", raw, freq))
			continue
		}
		lx.words[w] = freq
	}

	for key, group := range spec.Confusion {
		k, err := parseLetter(key)
		if err != nil {
			errs = append(errs, fmt.Errorf("confusion key %q: %w", key, err))
			continue
		}
		members := make([]rune, 0, len(group))
		for _, m := range group {
			r, err := parseLetter(m)
			if err != nil {
				errs = append(errs, fmt.Errorf("confusion[%s] member %q: %w", key, m, err))
				continue
			}
			members = append(members, r)
		}
		lx.confusion[k] = members
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	slices.Sort(lx.sorted)
	for n := range lx.byLength {
		slices.Sort(lx.byLength[n])
	}
	return lx, nil
}

// Language returns the lexicon's BCP-47 language tag (may be empty).
func (lx *Lexicon) Language() string {
	return lx.language
}

// Contains reports whether word is in the dictionary. Matching is exact:
// callers are expected to pass lower-case words.
func (lx *Lexicon) Contains(word string) bool {
	_, ok := lx.words[word]
	return ok
}

// Frequency returns the relative frequency of word, or 0 if it is unknown.
func (lx *Lexicon) Frequency(word string) int {
	return lx.words[word]
}

// Len returns the number of dictionary words.
func (lx *Lexicon) Len() int {
	return len(lx.sorted)
}

// MaxWordLength returns the rune length of the longest dictionary word.
func (lx *Lexicon) MaxWordLength() int {
	return lx.maxLen
}

// Words returns the dictionary in lexical order. The returned slice is a copy.
func (lx *Lexicon) Words() []string {
	return slices.Clone(lx.sorted)
}

// WordsOfLength returns the dictionary words of exactly n runes in lexical
// order. The returned slice must not be modified.
func (lx *Lexicon) WordsOfLength(n int) []string {
	return lx.byLength[n]
}

// Alternatives returns the letters c may have been confused with, starting
// with c itself followed by the members of the confusion group of c's
// upper-case form, lower-cased, in configured order. Letters without a group
// only have themselves as an alternative.
func (lx *Lexicon) Alternatives(c rune) []rune {
	group := lx.confusion[unicode.ToUpper(c)]
	alts := make([]rune, 0, len(group)+1)
	alts = append(alts, c)
	for _, g := range group {
		alts = append(alts, unicode.ToLower(g))
	}
	return alts
}

// ConfusionGroup returns the configured confusables for the upper-case letter
// c. The returned slice must not be modified.
func (lx *Lexicon) ConfusionGroup(c rune) []rune {
	return lx.confusion[unicode.ToUpper(c)]
}

// normalizeWord brings a word into the canonical form stored in the
// dictionary: NFC, trimmed and lower-cased.
func normalizeWord(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

func checkWord(w string) error {
	if w == "" {
		return errors.New("empty word")
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return fmt.Errorf("word %q contains non-letter %q", w, r)
		}
	}
	return nil
}

func parseLetter(s string) (rune, error) {
	s = norm.NFC.String(strings.TrimSpace(s))
	r, size := utf8.DecodeRuneInString(s)
	if s == "" || size != len(s) {
		return 0, errors.New("must be a single letter")
	}
	if !unicode.IsLetter(r) {
		return 0, fmt.Errorf("%q is not a letter", r)
	}
	return unicode.ToUpper(r), nil
}
