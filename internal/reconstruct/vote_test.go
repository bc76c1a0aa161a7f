package reconstruct_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/signspeak/internal/reconstruct"
	"github.com/MrWong99/signspeak/pkg/types"
)

// labels builds a label slice from a pattern where '_' is absent.
func labels(pattern string) []types.FrameLabel {
	out := make([]types.FrameLabel, 0, len(pattern))
	for _, r := range pattern {
		if r == '_' {
			out = append(out, types.Absent())
			continue
		}
		out = append(out, types.Label(r))
	}
	return out
}

func TestNewVoter_RejectsNonPositiveWindow(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -3} {
		if _, err := reconstruct.NewVoter(n); err == nil {
			t.Errorf("NewVoter(%d) returned nil error", n)
		}
	}
}

func TestVoter_Vote(t *testing.T) {
	t.Parallel()

	v, err := reconstruct.NewVoter(3)
	if err != nil {
		t.Fatalf("NewVoter: %v", err)
	}

	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{name: "empty", pattern: "", want: ""},
		{name: "unanimous windows", pattern: "KKKUUUMMMUUUSSSTTTAAA", want: "KUMUSTA"},
		{name: "majority wins", pattern: "KVKUUR", want: "KU"},
		{name: "tie goes to earliest", pattern: "KUA", want: "K"},
		{name: "tie goes to earliest later window", pattern: "AAAPKV", want: "AP"},
		{name: "trailing partial window dropped", pattern: "KKKAA", want: "K"},
		{name: "shorter than one window", pattern: "KK", want: ""},
		{name: "absent majority emits nothing", pattern: "__KAAA", want: "A"},
		{name: "absent loses to majority", pattern: "K_K", want: "K"},
		{name: "absent wins tie when first", pattern: "_KU", want: ""},
		{name: "all absent", pattern: "______", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := v.Vote(labels(tc.pattern))
			if err != nil {
				t.Fatalf("Vote: %v", err)
			}
			if string(got) != tc.want {
				t.Errorf("Vote(%q) = %q, want %q", tc.pattern, string(got), tc.want)
			}
		})
	}
}

func TestVoter_OutputLengthIsFloorOfInputOverWindow(t *testing.T) {
	t.Parallel()

	for size := 1; size <= 5; size++ {
		v, err := reconstruct.NewVoter(size)
		if err != nil {
			t.Fatalf("NewVoter(%d): %v", size, err)
		}
		for n := 0; n <= 17; n++ {
			in := make([]types.FrameLabel, n)
			for i := range in {
				in[i] = types.Label(rune('A' + i%26))
			}
			got, err := v.Vote(in)
			if err != nil {
				t.Fatalf("Vote: %v", err)
			}
			if len(got) != n/size {
				t.Errorf("size=%d n=%d: len = %d, want %d", size, n, len(got), n/size)
			}
		}
	}
}

func TestVoter_RejectsMalformedLabels(t *testing.T) {
	t.Parallel()

	v, err := reconstruct.NewVoter(3)
	if err != nil {
		t.Fatalf("NewVoter: %v", err)
	}

	for _, bad := range []rune{'k', '1', '?', ' '} {
		in := []types.FrameLabel{types.Label('K'), types.Label(bad), types.Label('K')}
		got, err := v.Vote(in)
		if !errors.Is(err, types.ErrInvalidLabel) {
			t.Errorf("Vote with %q: err = %v, want ErrInvalidLabel", bad, err)
		}
		if got != nil {
			t.Errorf("Vote with %q returned letters %q alongside error", bad, string(got))
		}
	}
}

func TestVoter_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	v, _ := reconstruct.NewVoter(3)
	in := labels("KUAKKK")
	orig := slices.Clone(in)
	if _, err := v.Vote(in); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if !slices.Equal(in, orig) {
		t.Error("Vote modified its input")
	}
}

func TestCompressRepeats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "a"},
		{"kumusta", "kumusta"},
		{"kkuummuusstta", "kumusta"},
		{"aaaa", "a"},
		{"abab", "abab"},
		{"oo", "o"},
	}

	for _, tc := range tests {
		got := string(reconstruct.CompressRepeats([]rune(tc.in)))
		if got != tc.want {
			t.Errorf("CompressRepeats(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCompressRepeats_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "x", "aabbccaabb", "kumusta", "zzzzzyzzz", "ññnnñ"}
	for _, in := range inputs {
		once := reconstruct.CompressRepeats([]rune(in))
		twice := reconstruct.CompressRepeats(once)
		if !slices.Equal(once, twice) {
			t.Errorf("CompressRepeats not idempotent on %q: %q vs %q", in, string(once), string(twice))
		}
		for i := 1; i < len(once); i++ {
			if once[i] == once[i-1] {
				t.Errorf("CompressRepeats(%q) = %q has adjacent duplicates", in, string(once))
			}
		}
	}
}
