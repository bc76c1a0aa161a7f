// Package frames defines the Extractor interface for turning an uploaded
// video into still frames on disk.
//
// Implementations must be safe for concurrent use.
package frames

import (
	"context"

	"github.com/MrWong99/signspeak/pkg/types"
)

// DefaultStride keeps every fourth decoded frame. Consecutive frames of a
// held handshape are near-identical, so sampling trades nothing for speed.
const DefaultStride = 4

// Extractor samples frames from a video.
type Extractor interface {
	// Extract decodes videoPath and writes the sampled frames as image files
	// into dir, which must exist and be empty. Frames are returned in
	// playback order; Frame.Index is the position of the frame in the
	// decoded stream.
	//
	// A video with no decodable frames yields an empty slice and no error.
	Extract(ctx context.Context, videoPath, dir string) ([]types.Frame, error)
}
