package reconstruct

// CompressRepeats collapses every run of identical adjacent letters into a
// single letter, so a sign held across several voting windows counts once.
// It is pure and idempotent; the input is not modified.
func CompressRepeats(letters []rune) []rune {
	out := make([]rune, 0, len(letters))
	for i, r := range letters {
		if i > 0 && r == letters[i-1] {
			continue
		}
		out = append(out, r)
	}
	return out
}
