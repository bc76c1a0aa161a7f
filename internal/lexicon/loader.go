package lexicon

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tagalog.yaml
var tagalogYAML string

// Load reads a YAML lexicon file from disk and builds a [Lexicon].
//
// Example:
//
//	language: tl
//	words: [kumusta, ka, ako]
//	frequencies:
//	  ka: 3
//	confusion:
//	  A: [E, S, M, N]
func Load(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer f.Close()

	lx, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("lexicon: parse %q: %w", path, err)
	}
	return lx, nil
}

// LoadFromReader decodes a YAML lexicon from r and builds a [Lexicon].
// Unknown keys are rejected to catch typos.
func LoadFromReader(r io.Reader) (*Lexicon, error) {
	var spec Spec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("lexicon: decode yaml: %w", err)
	}
	return New(spec)
}

// Default builds the built-in Tagalog lexicon with the Filipino Sign Language
// confusion groups. Each call returns a new, independent value.
func Default() (*Lexicon, error) {
	return LoadFromReader(strings.NewReader(tagalogYAML))
}
