// Package hands defines the Detector interface used to drop frames in which
// no hand is visible before they reach the letter classifier.
//
// Implementations must be safe for concurrent use.
package hands

import (
	"context"
	"fmt"

	"github.com/MrWong99/signspeak/pkg/types"
)

// Detector reports, for each frame, whether a hand is visible in it.
type Detector interface {
	// Detect returns one flag per frame, in input order.
	Detect(ctx context.Context, frames []types.Frame) ([]bool, error)
}

// Filter keeps the frames whose flag is set, preserving order. present must
// have one entry per frame.
func Filter(frames []types.Frame, present []bool) ([]types.Frame, error) {
	if len(present) != len(frames) {
		return nil, fmt.Errorf("hands: detector returned %d flags for %d frames", len(present), len(frames))
	}
	out := make([]types.Frame, 0, len(frames))
	for i, f := range frames {
		if present[i] {
			out = append(out, f)
		}
	}
	return out, nil
}
