// Package mock provides a test double for hands.Detector.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/signspeak/pkg/provider/hands"
	"github.com/MrWong99/signspeak/pkg/types"
)

// DetectCall records a single invocation of Detect.
type DetectCall struct {
	// Frames is a copy of the frames passed to Detect.
	Frames []types.Frame
}

// Detector is a mock implementation of hands.Detector.
type Detector struct {
	mu sync.Mutex

	// Present, when set, decides the flag for each frame. When nil every
	// frame is reported as containing a hand.
	Present func(types.Frame) bool

	// Err, if non-nil, is returned from Detect.
	Err error

	// Calls records every call to Detect in order.
	Calls []DetectCall
}

// Detect records the call and applies Present to each frame.
func (d *Detector) Detect(_ context.Context, frames []types.Frame) ([]bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, DetectCall{Frames: append([]types.Frame(nil), frames...)})
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]bool, len(frames))
	for i, f := range frames {
		out[i] = d.Present == nil || d.Present(f)
	}
	return out, nil
}

// CallCount returns the number of Detect calls. Thread-safe.
func (d *Detector) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}

var _ hands.Detector = (*Detector)(nil)
