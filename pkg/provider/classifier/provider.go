// Package classifier defines the Classifier interface for per-frame
// handshape recognition.
//
// A classifier maps each frame image to one letter of the fingerspelling
// alphabet, or to absent when it cannot commit to a letter. Temporal
// smoothing happens downstream; classifiers label frames independently.
//
// Implementations must be safe for concurrent use.
package classifier

import (
	"context"
	"fmt"

	"github.com/MrWong99/signspeak/pkg/types"
)

// Alphabet is the class order of the bundled letter models: output index i
// is Alphabet[i].
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Classifier labels frames.
type Classifier interface {
	// Classify returns one label per frame, in input order.
	Classify(ctx context.Context, frames []types.Frame) ([]types.FrameLabel, error)
}

// Argmax returns the label of the highest score, with ties resolved to the
// lowest index. classes names the label of each score position; scores must
// not be longer than classes. An empty score vector is absent.
func Argmax(scores []float32, classes []rune) (types.FrameLabel, error) {
	if len(scores) > len(classes) {
		return types.FrameLabel{}, fmt.Errorf("classifier: %d scores for %d classes", len(scores), len(classes))
	}
	if len(scores) == 0 {
		return types.Absent(), nil
	}
	best := 0
	for i, s := range scores[1:] {
		if s > scores[best] {
			best = i + 1
		}
	}
	return types.Label(classes[best]), nil
}
