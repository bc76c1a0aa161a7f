// Package exec provides a hands.Detector backed by an external helper
// program, typically a small MediaPipe Hands script.
//
// Protocol: the helper receives one frame path per line on stdin and must
// print a JSON array of booleans, one per path and in the same order, to
// stdout. When a model is configured it is passed as "--model <path>".
package exec

import (
	"context"
	"fmt"

	"github.com/MrWong99/signspeak/pkg/provider/hands"
	"github.com/MrWong99/signspeak/pkg/provider/internal/execjson"
	"github.com/MrWong99/signspeak/pkg/types"
)

var _ hands.Detector = (*Detector)(nil)

// Detector runs the helper once per Detect call. Safe for concurrent use.
type Detector struct {
	cmd   *execjson.Command
	model string
}

// Option is a functional option for Detector.
type Option func(*Detector)

// WithModel passes a model file to the helper.
func WithModel(path string) Option {
	return func(d *Detector) {
		d.model = path
	}
}

// New parses command and returns a Detector.
func New(command string, opts ...Option) (*Detector, error) {
	cmd, err := execjson.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("hands exec: %w", err)
	}
	d := &Detector{cmd: cmd}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Detect implements hands.Detector.
func (d *Detector) Detect(ctx context.Context, frames []types.Frame) ([]bool, error) {
	if len(frames) == 0 {
		return []bool{}, nil
	}
	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.Path
	}

	var extra []string
	if d.model != "" {
		extra = append(extra, "--model", d.model)
	}

	var present []bool
	if err := d.cmd.Decode(ctx, execjson.Lines(paths), &present, extra...); err != nil {
		return nil, fmt.Errorf("hands exec: %w", err)
	}
	if len(present) != len(frames) {
		return nil, fmt.Errorf("hands exec: helper returned %d flags for %d frames", len(present), len(frames))
	}
	return present, nil
}
