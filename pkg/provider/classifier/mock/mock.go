// Package mock provides a test double for classifier.Classifier.
//
// Example:
//
//	c := &mock.Classifier{Label: func(f types.Frame) types.FrameLabel {
//	    return types.Label('A')
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/signspeak/pkg/provider/classifier"
	"github.com/MrWong99/signspeak/pkg/types"
)

// ClassifyCall records a single invocation of Classify.
type ClassifyCall struct {
	// Frames is a copy of the frames passed to Classify.
	Frames []types.Frame
}

// Classifier is a mock implementation of classifier.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Label decides each frame's label. When nil every frame is absent.
	Label func(types.Frame) types.FrameLabel

	// Err, if non-nil, is returned from Classify.
	Err error

	// Calls records every call to Classify in order.
	Calls []ClassifyCall
}

// Classify records the call and applies Label to each frame.
func (c *Classifier) Classify(_ context.Context, frames []types.Frame) ([]types.FrameLabel, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, ClassifyCall{Frames: append([]types.Frame(nil), frames...)})
	label, err := c.Label, c.Err
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	out := make([]types.FrameLabel, len(frames))
	for i, f := range frames {
		if label != nil {
			out[i] = label(f)
		}
	}
	return out, nil
}

// CallCount returns the number of Classify calls. Thread-safe.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}

var _ classifier.Classifier = (*Classifier)(nil)
