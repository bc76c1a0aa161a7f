package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/signspeak/pkg/provider/classifier"
	"github.com/MrWong99/signspeak/pkg/types"
)

// ErrLabelCount is returned when a classifier answers a batch with a
// different number of labels than it was given frames.
var ErrLabelCount = errors.New("resilience: label count does not match frame count")

// Classifiers is a [classifier.Classifier] backed by a [Failover] of
// classifiers. A batch is never split across backends; a backend that
// fails, or miscounts its labels, hands the whole batch to the next one.
type Classifiers struct {
	failover *Failover[classifier.Classifier]
	onServe  func(ctx context.Context, backend string)
}

var _ classifier.Classifier = (*Classifiers)(nil)

// ClassifiersOption is a functional option for [NewClassifiers].
type ClassifiersOption func(*Classifiers)

// OnServe registers fn to be called with the name of the backend that
// labelled each batch.
func OnServe(fn func(ctx context.Context, backend string)) ClassifiersOption {
	return func(c *Classifiers) { c.onServe = fn }
}

// NewClassifiers returns an empty group. Register the primary first with
// [Classifiers.Add].
func NewClassifiers(cfg BreakerConfig, opts ...ClassifiersOption) *Classifiers {
	c := &Classifiers{failover: NewFailover[classifier.Classifier](cfg)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Add appends a backend in preference order.
func (c *Classifiers) Add(name string, cl classifier.Classifier) {
	c.failover.Add(name, cl)
}

// Classify implements [classifier.Classifier].
func (c *Classifiers) Classify(ctx context.Context, frames []types.Frame) ([]types.FrameLabel, error) {
	labels, name, err := Call(ctx, c.failover, func(ctx context.Context, cl classifier.Classifier) ([]types.FrameLabel, error) {
		got, err := cl.Classify(ctx, frames)
		if err != nil {
			return nil, err
		}
		if len(got) != len(frames) {
			return nil, fmt.Errorf("%w: %d labels for %d frames", ErrLabelCount, len(got), len(frames))
		}
		return got, nil
	})
	if err != nil {
		return nil, err
	}
	if c.onServe != nil {
		c.onServe(ctx, name)
	}
	return labels, nil
}

// Status returns each backend's breaker state.
func (c *Classifiers) Status() []EntryStatus { return c.failover.Status() }

// Available reports whether some backend would accept a batch.
func (c *Classifiers) Available() bool { return c.failover.Available() }
