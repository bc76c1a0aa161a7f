// Package types defines the shared types used across all SignSpeak packages.
//
// These types form the lingua franca between the recognition providers, the
// reconstruction pipeline and the HTTP service. They are intentionally
// minimal: each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidLabel is returned when a present [FrameLabel] does not carry a
// single upper-case letter.
var ErrInvalidLabel = errors.New("invalid frame label")

// Frame is a single sampled video frame written to disk by a frame extractor.
type Frame struct {
	// Index is the position of the frame in the source video (0-based, before
	// sampling).
	Index int

	// Path is the location of the encoded image on disk.
	Path string
}

// FrameLabel is the classifier's verdict for one sampled, hand-present frame.
// It is either a symbol (an upper-case letter) or absent. The zero value is
// absent.
type FrameLabel struct {
	symbol  rune
	present bool
}

// Label returns a present [FrameLabel] carrying r. It does not validate r; use
// [FrameLabel.Validate] or [ParseLabel] for untrusted input.
func Label(r rune) FrameLabel {
	return FrameLabel{symbol: r, present: true}
}

// Absent returns the "no symbol" label.
func Absent() FrameLabel {
	return FrameLabel{}
}

// ParseLabel converts a classifier string into a [FrameLabel]. The empty
// string is absent; anything else must be exactly one upper-case letter.
func ParseLabel(s string) (FrameLabel, error) {
	if s == "" {
		return Absent(), nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return FrameLabel{}, fmt.Errorf("%w: %q is not a single letter", ErrInvalidLabel, s)
	}
	l := Label(r)
	if err := l.Validate(); err != nil {
		return FrameLabel{}, err
	}
	return l, nil
}

// Symbol returns the letter and whether the label is present.
func (l FrameLabel) Symbol() (rune, bool) {
	return l.symbol, l.present
}

// IsAbsent reports whether the label carries no symbol.
func (l FrameLabel) IsAbsent() bool {
	return !l.present
}

// Validate reports an error wrapping [ErrInvalidLabel] when l is present but
// not an upper-case letter. Absent labels are always valid.
func (l FrameLabel) Validate() error {
	if !l.present {
		return nil
	}
	if !unicode.IsLetter(l.symbol) || !unicode.IsUpper(l.symbol) {
		return fmt.Errorf("%w: %q is not an upper-case letter", ErrInvalidLabel, l.symbol)
	}
	return nil
}

// String returns the letter, or "<absent>".
func (l FrameLabel) String() string {
	if !l.present {
		return "<absent>"
	}
	return string(l.symbol)
}

// MarshalJSON encodes a present label as a one-letter string and an absent
// label as null.
func (l FrameLabel) MarshalJSON() ([]byte, error) {
	if !l.present {
		return []byte("null"), nil
	}
	return json.Marshal(string(l.symbol))
}

// UnmarshalJSON accepts null, "" (both absent) or a one-letter string.
func (l *FrameLabel) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = Absent()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLabel, err)
	}
	parsed, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Token is a contiguous substring of the compressed letter string produced by
// the lexical segmenter.
type Token string

// Method records which correction stage resolved a [Token].
type Method string

const (
	// MethodExact means the token already was a dictionary word.
	MethodExact Method = "exact"

	// MethodConfusion means the word was reached by substituting letters with
	// members of their confusion groups.
	MethodConfusion Method = "confusion"

	// MethodSpelling means the word was proposed by the approximate spelling
	// corrector.
	MethodSpelling Method = "spelling"

	// MethodPassthrough means no better word was found and the token is kept.
	MethodPassthrough Method = "passthrough"
)

// CorrectedToken is the final word chosen for a [Token].
type CorrectedToken struct {
	// Token is the segmenter output the word was derived from.
	Token Token `json:"token"`

	// Word is the chosen output word.
	Word string `json:"word"`

	// Method is the stage that produced Word.
	Method Method `json:"method"`
}

// Changed reports whether the corrector replaced the token.
func (c CorrectedToken) Changed() bool {
	return string(c.Token) != c.Word
}
