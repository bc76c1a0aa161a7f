package spell_test

import (
	"testing"

	"github.com/MrWong99/signspeak/internal/lexicon"
	"github.com/MrWong99/signspeak/internal/reconstruct/spell"
)

func newChecker(t *testing.T, spec lexicon.Spec, opts ...spell.Option) *spell.Checker {
	t.Helper()
	lx, err := lexicon.New(spec)
	if err != nil {
		t.Fatalf("lexicon.New: %v", err)
	}
	return spell.New(lx, opts...)
}

func TestCorrection(t *testing.T) {
	t.Parallel()

	lx, err := lexicon.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	c := spell.New(lx)

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "salamat", want: "salamat", wantOK: true},  // known word
		{in: "slamat", want: "salamat", wantOK: true},   // deletion
		{in: "trabahho", want: "trabaho", wantOK: true}, // insertion
		{in: "tubgi", want: "tubig", wantOK: true},      // transposition
		{in: "ngayun", want: "ngayon", wantOK: true},    // substitution
		{in: "xyzxyzxyz", want: "xyzxyzxyz", wantOK: false},
		{in: "", want: "", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := c.Correction(tc.in)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("Correction(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestCorrection_PrefersSmallerDistance(t *testing.T) {
	t.Parallel()

	c := newChecker(t, lexicon.Spec{
		Words:       []string{"kape", "kapeng"},
		Frequencies: map[string]int{"kapeng": 100},
	})

	// kapeng is three edits away despite its frequency; kape is one.
	if got, _ := c.Correction("kap"); got != "kape" {
		t.Errorf("Correction(kap) = %q, want kape", got)
	}
}

func TestCorrection_FrequencyBreaksTies(t *testing.T) {
	t.Parallel()

	c := newChecker(t, lexicon.Spec{
		Words:       []string{"bili", "bila"},
		Frequencies: map[string]int{"bila": 5},
	})

	if got, _ := c.Correction("bilo"); got != "bila" {
		t.Errorf("Correction(bilo) = %q, want bila (higher frequency)", got)
	}
}

func TestCorrection_DeterministicOnFullTie(t *testing.T) {
	t.Parallel()

	c := newChecker(t, lexicon.Spec{Words: []string{"ab", "ac"}})

	first, _ := c.Correction("ax")
	for range 20 {
		if got, _ := c.Correction("ax"); got != first {
			t.Fatalf("Correction(ax) = %q, then %q; want stable result", first, got)
		}
	}
}

func TestWithMaxDistance(t *testing.T) {
	t.Parallel()

	c := newChecker(t, lexicon.Spec{Words: []string{"pagkain"}}, spell.WithMaxDistance(1))

	if _, ok := c.Correction("pakain"); !ok {
		t.Error("one edit away should be corrected with max distance 1")
	}
	if got, ok := c.Correction("pkain"); ok {
		t.Errorf("two edits away corrected to %q with max distance 1", got)
	}
}
