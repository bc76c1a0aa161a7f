// Package all provides a hands.Detector that reports a hand in every frame.
// It is the choice when clips are pre-cropped to the signer's hand or when no
// detector is installed.
package all

import (
	"context"

	"github.com/MrWong99/signspeak/pkg/provider/hands"
	"github.com/MrWong99/signspeak/pkg/types"
)

var _ hands.Detector = Detector{}

// Detector keeps every frame.
type Detector struct{}

// New returns a Detector.
func New() Detector { return Detector{} }

// Detect implements hands.Detector.
func (Detector) Detect(ctx context.Context, frames []types.Frame) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]bool, len(frames))
	for i := range out {
		out[i] = true
	}
	return out, nil
}
