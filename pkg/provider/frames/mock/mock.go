// Package mock provides a test double for frames.Extractor.
//
// When Frames is nil, Extract writes Count empty PNG placeholder files into
// the target directory and returns them, so downstream code that touches the
// files still works.
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrWong99/signspeak/pkg/provider/frames"
	"github.com/MrWong99/signspeak/pkg/types"
)

// ExtractCall records a single invocation of Extract.
type ExtractCall struct {
	VideoPath string
	Dir       string
}

// Extractor is a mock implementation of frames.Extractor.
type Extractor struct {
	mu sync.Mutex

	// Frames is returned by Extract when non-nil.
	Frames []types.Frame

	// Count is the number of placeholder files written when Frames is nil.
	Count int

	// Err, if non-nil, is returned from Extract.
	Err error

	// Calls records every call to Extract in order.
	Calls []ExtractCall
}

// Extract records the call and returns Frames or Count placeholders.
func (e *Extractor) Extract(_ context.Context, videoPath, dir string) ([]types.Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, ExtractCall{VideoPath: videoPath, Dir: dir})
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Frames != nil {
		return e.Frames, nil
	}
	out := make([]types.Frame, 0, e.Count)
	for i := range e.Count {
		p := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i+1))
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			return nil, err
		}
		out = append(out, types.Frame{Index: i, Path: p})
	}
	return out, nil
}

// CallCount returns the number of Extract calls. Thread-safe.
func (e *Extractor) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

var _ frames.Extractor = (*Extractor)(nil)
