package reconstruct

import (
	"github.com/MrWong99/signspeak/pkg/types"
)

// Dictionary is the read-only word set the segmenter and corrector match
// against. [lexicon.Lexicon] satisfies it.
type Dictionary interface {
	// Contains reports whether word is a dictionary entry.
	Contains(word string) bool

	// MaxWordLength returns the rune length of the longest entry.
	MaxWordLength() int
}

// Segmenter splits an unpunctuated letter string into word-sized tokens using
// greedy longest-match against a [Dictionary]. It is safe for concurrent use.
type Segmenter struct {
	dict Dictionary
}

// NewSegmenter returns a [Segmenter] over dict.
func NewSegmenter(dict Dictionary) *Segmenter {
	return &Segmenter{dict: dict}
}

// Segment partitions s into tokens. At each position the longest substring
// that is a dictionary word is taken; when no substring starting there is a
// word, the single letter becomes its own token.
//
// The tokens always concatenate back to s, and every token is at least one
// letter long. Lengths above the longest dictionary word are not tried since
// they can never match.
func (s *Segmenter) Segment(text string) []types.Token {
	runes := []rune(text)
	tokens := make([]types.Token, 0, len(runes))
	maxLen := s.dict.MaxWordLength()

	i := 0
	for i < len(runes) {
		n := min(len(runes)-i, maxLen)
		matched := false
		for ; n >= 1; n-- {
			seg := string(runes[i : i+n])
			if s.dict.Contains(seg) {
				tokens = append(tokens, types.Token(seg))
				i += n
				matched = true
				break
			}
		}
		if !matched {
			tokens = append(tokens, types.Token(string(runes[i])))
			i++
		}
	}
	return tokens
}
