package reconstruct

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Capitalization selects how the assembled sentence is capitalised.
type Capitalization string

const (
	// CapitalizeFirst upper-cases the first letter and leaves the rest
	// untouched.
	CapitalizeFirst Capitalization = "first"

	// CapitalizeLowerRest upper-cases the first letter and lower-cases
	// everything after it.
	CapitalizeLowerRest Capitalization = "lower_rest"
)

// IsValid reports whether c is a recognised capitalisation mode.
func (c Capitalization) IsValid() bool {
	return c == CapitalizeFirst || c == CapitalizeLowerRest
}

// Assembler joins corrected words into a sentence. It is safe for concurrent
// use.
type Assembler struct {
	mode Capitalization
	tag  language.Tag
}

// NewAssembler returns an [Assembler] using the casing rules of lang (a BCP-47
// tag such as "tl"; empty means language-neutral).
func NewAssembler(mode Capitalization, lang string) (*Assembler, error) {
	if mode == "" {
		mode = CapitalizeFirst
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("reconstruct: capitalization %q is invalid; valid values: first, lower_rest", mode)
	}
	tag := language.Und
	if lang != "" {
		t, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("reconstruct: language %q: %w", lang, err)
		}
		tag = t
	}
	return &Assembler{mode: mode, tag: tag}, nil
}

// Assemble joins words with single spaces and capitalises the result as a
// whole. No words yields the empty string.
func (a *Assembler) Assemble(words []string) string {
	sentence := strings.Join(words, " ")
	if sentence == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(sentence)
	rest := sentence[size:]
	if a.mode == CapitalizeLowerRest {
		rest = cases.Lower(a.tag).String(rest)
	}
	// Casers are stateful and must not be shared between goroutines.
	return cases.Upper(a.tag).String(string(first)) + rest
}
