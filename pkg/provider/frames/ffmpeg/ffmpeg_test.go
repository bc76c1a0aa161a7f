package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/MrWong99/signspeak/pkg/provider/frames"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	e, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.cmd.Name() != DefaultCommand {
		t.Errorf("command = %q, want %q", e.cmd.Name(), DefaultCommand)
	}
	if e.Stride() != frames.DefaultStride {
		t.Errorf("stride = %d, want %d", e.Stride(), frames.DefaultStride)
	}

	e, err = New("ffmpeg", WithStride(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Stride() != frames.DefaultStride {
		t.Errorf("WithStride(0) changed stride to %d", e.Stride())
	}
}

func TestExtractor_Args(t *testing.T) {
	t.Parallel()

	e, err := New("ffmpeg -threads 2", WithStride(5))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	args := e.args("in.mp4", "/tmp/f")
	if !slices.Contains(args, `select=not(mod(n\,5))`) {
		t.Errorf("args %q missing stride filter", args)
	}
	if got := args[len(args)-1]; got != filepath.Join("/tmp/f", "frame_%06d.png") {
		t.Errorf("output pattern = %q", got)
	}
}

func TestCollect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"frame_000002.png", "frame_000001.png", "frame_000003.png", "notes.txt", "frame_x.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	got, err := collect(dir, 4)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d frames, want 3: %+v", len(got), got)
	}
	for i, f := range got {
		if f.Index != i*4 {
			t.Errorf("frame %d index = %d, want %d", i, f.Index, i*4)
		}
	}
	if filepath.Base(got[0].Path) != "frame_000001.png" {
		t.Errorf("first frame = %s", got[0].Path)
	}
}

func TestExtractor_MissingVideo(t *testing.T) {
	t.Parallel()

	e, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), t.TempDir()); err == nil {
		t.Error("expected error for missing video")
	}
}

func TestExtractor_Extract(t *testing.T) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	gen := exec.Command(bin, "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=1:size=64x64:rate=12",
		"-pix_fmt", "yuv420p", video)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test clip: %v: %s", err, out)
	}

	out := filepath.Join(dir, "frames")
	if err := os.Mkdir(out, 0o700); err != nil {
		t.Fatal(err)
	}

	e, err := New(bin, WithStride(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := e.Extract(context.Background(), video, out)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d frames from 12, want 3", len(got))
	}
	if got[2].Index != 8 {
		t.Errorf("third frame index = %d, want 8", got[2].Index)
	}
}
