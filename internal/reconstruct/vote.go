package reconstruct

import (
	"errors"
	"fmt"

	"github.com/MrWong99/signspeak/pkg/types"
)

// DefaultWindowSize is the number of consecutive frame labels reduced to one
// letter by the [Voter].
const DefaultWindowSize = 3

// Voter stabilises a jittery per-frame label stream by majority vote over
// fixed-size, non-overlapping windows. It is stateless between calls and safe
// for concurrent use.
type Voter struct {
	size int
}

// NewVoter returns a [Voter] with the given window size.
func NewVoter(size int) (*Voter, error) {
	if size < 1 {
		return nil, fmt.Errorf("reconstruct: window size must be at least 1, got %d", size)
	}
	return &Voter{size: size}, nil
}

// WindowSize returns the configured window size.
func (v *Voter) WindowSize() int {
	return v.size
}

// Vote consumes labels left to right in windows of [Voter.WindowSize] and
// returns one letter per complete window. A trailing window with fewer
// labels is dropped.
//
// Within a window the most frequent label wins; on a tie the label whose
// first occurrence comes earliest wins. Absent labels take part in the vote
// like any other label, and a window won by "absent" emits nothing.
//
// Every present label must be an upper-case letter; otherwise Vote returns
// an error wrapping [types.ErrInvalidLabel] and no letters.
func (v *Voter) Vote(labels []types.FrameLabel) ([]rune, error) {
	var errs []error
	for i, l := range labels {
		if err := l.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("frame %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	letters := make([]rune, 0, len(labels)/v.size)
	w := newWindow(v.size)
	for _, l := range labels {
		if !w.push(l) {
			continue
		}
		if r, ok := w.winner().Symbol(); ok {
			letters = append(letters, r)
		}
		w.reset()
	}
	return letters, nil
}

// window is a bounded buffer of labels. push reports true once the buffer is
// full; it must then be drained with reset before the next push.
type window struct {
	labels []types.FrameLabel
}

func newWindow(size int) *window {
	return &window{labels: make([]types.FrameLabel, 0, size)}
}

func (w *window) push(l types.FrameLabel) (full bool) {
	w.labels = append(w.labels, l)
	return len(w.labels) == cap(w.labels)
}

func (w *window) reset() {
	w.labels = w.labels[:0]
}

// winner returns the most frequent label, earliest first occurrence on ties.
// Windows are small, so the quadratic count is cheaper than a map.
func (w *window) winner() types.FrameLabel {
	best, bestCount := w.labels[0], 0
	for i, l := range w.labels {
		if firstIndex(w.labels, l) != i {
			continue
		}
		n := 0
		for _, o := range w.labels[i:] {
			if o == l {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = l, n
		}
	}
	return best
}

func firstIndex(labels []types.FrameLabel, l types.FrameLabel) int {
	for i, o := range labels {
		if o == l {
			return i
		}
	}
	return -1
}
