// Package onnx provides an in-process classifier.Classifier that runs a
// letter model exported to ONNX through ONNX Runtime.
//
// Frames are decoded, resized to the model's square input size, scaled to
// [0,1] RGB and batched into one tensor per Classify call. The model must
// produce one score per letter of classifier.Alphabet for each frame; the
// label is the argmax.
//
// The ONNX Runtime shared library is loaded once per process on the first
// call to New.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoders
	_ "image/png"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"

	"github.com/MrWong99/signspeak/pkg/provider/classifier"
	"github.com/MrWong99/signspeak/pkg/types"
)

// Layout is the memory order of the input tensor.
type Layout string

const (
	// NHWC is batch, height, width, channel. Keras exports use it.
	NHWC Layout = "nhwc"

	// NCHW is batch, channel, height, width. PyTorch exports use it.
	NCHW Layout = "nchw"
)

// DefaultInputSize is the side length of the square model input.
const DefaultInputSize = 224

var _ classifier.Classifier = (*Classifier)(nil)

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the runtime library. Only the first call's library
// path has any effect.
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

type config struct {
	libraryPath string
	inputName   string
	outputName  string
	size        int
	layout      Layout
	threads     int
}

// Option is a functional option for New.
type Option func(*config)

// WithLibraryPath sets the path to the onnxruntime shared library. Default:
// the platform's library search path.
func WithLibraryPath(p string) Option {
	return func(c *config) { c.libraryPath = p }
}

// WithTensorNames sets the model's input and output tensor names. Default:
// "input" and "output".
func WithTensorNames(input, output string) Option {
	return func(c *config) {
		c.inputName = input
		c.outputName = output
	}
}

// WithInputSize sets the square input side length. Default: 224.
func WithInputSize(n int) Option {
	return func(c *config) { c.size = n }
}

// WithLayout sets the input tensor layout. Default: NHWC.
func WithLayout(l Layout) Option {
	return func(c *config) { c.layout = l }
}

// WithIntraOpThreads caps the runtime's per-inference thread pool. Zero keeps
// the runtime default.
func WithIntraOpThreads(n int) Option {
	return func(c *config) { c.threads = n }
}

// Classifier runs an ONNX letter model. Safe for concurrent use; call Close
// when done.
type Classifier struct {
	session *ort.DynamicAdvancedSession
	size    int
	layout  Layout
	classes []rune
}

// New loads the model at modelPath.
func New(modelPath string, opts ...Option) (*Classifier, error) {
	cfg := config{
		inputName:  "input",
		outputName: "output",
		size:       DefaultInputSize,
		layout:     NHWC,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.size < 1 {
		return nil, fmt.Errorf("onnx classifier: input size must be positive, got %d", cfg.size)
	}
	if cfg.layout != NHWC && cfg.layout != NCHW {
		return nil, fmt.Errorf("onnx classifier: unknown layout %q", cfg.layout)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx classifier: %w", err)
	}
	if err := initEnvironment(cfg.libraryPath); err != nil {
		return nil, fmt.Errorf("onnx classifier: init runtime: %w", err)
	}

	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx classifier: session options: %w", err)
	}
	defer so.Destroy()
	if cfg.threads > 0 {
		if err := so.SetIntraOpNumThreads(cfg.threads); err != nil {
			return nil, fmt.Errorf("onnx classifier: set threads: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{cfg.inputName}, []string{cfg.outputName}, so)
	if err != nil {
		return nil, fmt.Errorf("onnx classifier: load %s: %w", modelPath, err)
	}
	return &Classifier{
		session: sess,
		size:    cfg.size,
		layout:  cfg.layout,
		classes: []rune(classifier.Alphabet),
	}, nil
}

// Classify implements classifier.Classifier.
func (c *Classifier) Classify(ctx context.Context, frames []types.Frame) ([]types.FrameLabel, error) {
	if len(frames) == 0 {
		return []types.FrameLabel{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := tensorize(frames, c.size, c.layout)
	if err != nil {
		return nil, fmt.Errorf("onnx classifier: %w", err)
	}

	n := int64(len(frames))
	var shape ort.Shape
	if c.layout == NCHW {
		shape = ort.NewShape(n, 3, int64(c.size), int64(c.size))
	} else {
		shape = ort.NewShape(n, int64(c.size), int64(c.size), 3)
	}
	in, err := ort.NewTensor(shape, data)
	if err != nil {
		return nil, fmt.Errorf("onnx classifier: input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(n, int64(len(c.classes))))
	if err != nil {
		return nil, fmt.Errorf("onnx classifier: output tensor: %w", err)
	}
	defer out.Destroy()

	if err := c.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx classifier: run: %w", err)
	}

	scores := out.GetData()
	k := len(c.classes)
	labels := make([]types.FrameLabel, len(frames))
	for i := range labels {
		if labels[i], err = classifier.Argmax(scores[i*k:(i+1)*k], c.classes); err != nil {
			return nil, err
		}
	}
	return labels, nil
}

// Close releases the model session.
func (c *Classifier) Close() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	return err
}

// tensorize decodes, resizes and normalises frames into one float32 buffer
// in the given layout.
func tensorize(frames []types.Frame, size int, layout Layout) ([]float32, error) {
	plane := size * size
	data := make([]float32, len(frames)*3*plane)
	dst := image.NewRGBA(image.Rect(0, 0, size, size))

	var errs []error
	for i, f := range frames {
		src, err := decode(f.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("frame %d: %w", f.Index, err))
			continue
		}
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

		base := i * 3 * plane
		for y := range size {
			for x := range size {
				o := dst.PixOffset(x, y)
				r := float32(dst.Pix[o]) / 255
				g := float32(dst.Pix[o+1]) / 255
				b := float32(dst.Pix[o+2]) / 255
				p := y*size + x
				if layout == NCHW {
					data[base+p] = r
					data[base+plane+p] = g
					data[base+2*plane+p] = b
				} else {
					data[base+3*p] = r
					data[base+3*p+1] = g
					data[base+3*p+2] = b
				}
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return data, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
