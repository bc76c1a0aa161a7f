// Package exec provides a classifier.Classifier backed by an external helper
// program wrapping a trained letter model.
//
// Protocol: the helper receives one frame path per line on stdin and prints
// a JSON array with one entry per path to stdout. Each entry is a one-letter
// upper-case string or null when the model cannot commit to a letter. When a
// model is configured it is passed as "--model <path>".
package exec

import (
	"context"
	"fmt"

	"github.com/MrWong99/signspeak/pkg/provider/classifier"
	"github.com/MrWong99/signspeak/pkg/provider/internal/execjson"
	"github.com/MrWong99/signspeak/pkg/types"
)

var _ classifier.Classifier = (*Classifier)(nil)

// Classifier runs the helper once per Classify call. Safe for concurrent use.
type Classifier struct {
	cmd   *execjson.Command
	model string
}

// Option is a functional option for Classifier.
type Option func(*Classifier)

// WithModel passes a model path to the helper.
func WithModel(path string) Option {
	return func(c *Classifier) {
		c.model = path
	}
}

// New parses command and returns a Classifier.
func New(command string, opts ...Option) (*Classifier, error) {
	cmd, err := execjson.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("classifier exec: %w", err)
	}
	c := &Classifier{cmd: cmd}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Classify implements classifier.Classifier. Labels the helper prints that
// are not single upper-case letters fail the whole call with an error
// wrapping types.ErrInvalidLabel.
func (c *Classifier) Classify(ctx context.Context, frames []types.Frame) ([]types.FrameLabel, error) {
	if len(frames) == 0 {
		return []types.FrameLabel{}, nil
	}
	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.Path
	}

	var extra []string
	if c.model != "" {
		extra = append(extra, "--model", c.model)
	}

	var labels []types.FrameLabel
	if err := c.cmd.Decode(ctx, execjson.Lines(paths), &labels, extra...); err != nil {
		return nil, fmt.Errorf("classifier exec: %w", err)
	}
	if len(labels) != len(frames) {
		return nil, fmt.Errorf("classifier exec: helper returned %d labels for %d frames", len(labels), len(frames))
	}
	return labels, nil
}
