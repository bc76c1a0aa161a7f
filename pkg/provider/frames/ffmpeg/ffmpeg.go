// Package ffmpeg provides a frames.Extractor that shells out to the ffmpeg
// command-line tool.
//
// Every stride-th decoded frame is written to the target directory as a PNG
// named frame_000001.png, frame_000002.png, ... and the files are returned in
// that order.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrWong99/signspeak/pkg/provider/frames"
	"github.com/MrWong99/signspeak/pkg/provider/internal/execjson"
	"github.com/MrWong99/signspeak/pkg/types"
)

// DefaultCommand is the ffmpeg invocation used when none is configured.
const DefaultCommand = "ffmpeg"

const (
	framePrefix = "frame_"
	frameExt    = ".png"
)

var _ frames.Extractor = (*Extractor)(nil)

// Extractor implements frames.Extractor with ffmpeg. Safe for concurrent use.
type Extractor struct {
	cmd    *execjson.Command
	stride int
}

// Option is a functional option for Extractor.
type Option func(*Extractor)

// WithStride keeps every n-th frame. Values below 1 are ignored.
// Default: frames.DefaultStride.
func WithStride(n int) Option {
	return func(e *Extractor) {
		if n >= 1 {
			e.stride = n
		}
	}
}

// New parses command (for example "ffmpeg" or "/usr/local/bin/ffmpeg
// -threads 2") and returns an Extractor. An empty command means
// DefaultCommand.
func New(command string, opts ...Option) (*Extractor, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	cmd, err := execjson.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	e := &Extractor{cmd: cmd, stride: frames.DefaultStride}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Stride returns the sampling stride.
func (e *Extractor) Stride() int { return e.stride }

// Extract implements frames.Extractor.
func (e *Extractor) Extract(ctx context.Context, videoPath, dir string) ([]types.Frame, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if _, err := e.cmd.Output(ctx, nil, e.args(videoPath, dir)...); err != nil {
		return nil, fmt.Errorf("ffmpeg: extract %s: %w", filepath.Base(videoPath), err)
	}
	return collect(dir, e.stride)
}

// args builds the per-call ffmpeg arguments. The select filter keeps frames
// whose decode index n is a multiple of the stride.
func (e *Extractor) args(videoPath, dir string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", videoPath,
		"-vf", fmt.Sprintf(`select=not(mod(n\,%d))`, e.stride),
		"-fps_mode", "vfr",
		filepath.Join(dir, framePrefix+"%06d"+frameExt),
	}
}

// collect lists the frames ffmpeg wrote into dir. ffmpeg numbers output
// files from 1; the n-th file is decoded frame (n-1)*stride.
func collect(dir string, stride int) ([]types.Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: list frames: %w", err)
	}
	out := make([]types.Frame, 0, len(entries))
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasPrefix(name, framePrefix) || !strings.HasSuffix(name, frameExt) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, framePrefix), frameExt))
		if err != nil || seq < 1 {
			continue
		}
		out = append(out, types.Frame{
			Index: (seq - 1) * stride,
			Path:  filepath.Join(dir, name),
		})
	}
	return out, nil
}
