// Package recognize turns an uploaded sign-language video into the per-frame
// letter labels consumed by the reconstruction pipeline.
//
// A [Recognizer] runs three provider stages:
//
//  1. Frame extraction into a private temporary directory, removed when the
//     call returns.
//  2. Hand detection; frames without a visible hand are dropped.
//  3. Letter classification in fixed-size batches, several batches in
//     flight at once. Labels are returned in frame order regardless of
//     which batch finishes first.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/signspeak/internal/observe"
	"github.com/MrWong99/signspeak/pkg/provider/classifier"
	"github.com/MrWong99/signspeak/pkg/provider/frames"
	"github.com/MrWong99/signspeak/pkg/provider/hands"
	"github.com/MrWong99/signspeak/pkg/types"
)

const (
	// DefaultBatchSize is the number of frames per classifier call.
	DefaultBatchSize = 32

	// DefaultConcurrency is the number of classifier calls in flight.
	DefaultConcurrency = 4
)

// Config wires the providers of a [Recognizer]. Extractor, Detector and
// Classifier are required; everything else has a default.
type Config struct {
	Extractor  frames.Extractor
	Detector   hands.Detector
	Classifier classifier.Classifier

	// Provider names reported in metrics. Default: "frames", "hands",
	// "classifier".
	ExtractorName  string
	DetectorName   string
	ClassifierName string

	// TempDir is the parent of the per-call frame directories. Default:
	// os.TempDir().
	TempDir string

	// BatchSize and Concurrency tune classification. Zero means the default.
	BatchSize   int
	Concurrency int

	// Metrics, when set, receives stage timings and frame counts.
	Metrics *observe.Metrics
}

func (c Config) validate() error {
	var errs []error
	if c.Extractor == nil {
		errs = append(errs, errors.New("extractor is required"))
	}
	if c.Detector == nil {
		errs = append(errs, errors.New("hand detector is required"))
	}
	if c.Classifier == nil {
		errs = append(errs, errors.New("classifier is required"))
	}
	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch size must not be negative, got %d", c.BatchSize))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	return errors.Join(errs...)
}

// Recognizer runs the recognition stages. Safe for concurrent use.
type Recognizer struct {
	cfg Config
}

// New validates cfg, fills in defaults and returns a [Recognizer].
func New(cfg Config) (*Recognizer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	if cfg.ExtractorName == "" {
		cfg.ExtractorName = "frames"
	}
	if cfg.DetectorName == "" {
		cfg.DetectorName = "hands"
	}
	if cfg.ClassifierName == "" {
		cfg.ClassifierName = "classifier"
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Recognizer{cfg: cfg}, nil
}

// Recognize returns one label per hand-bearing frame of the video at
// videoPath, in playback order. A video without usable frames yields an
// empty slice.
func (r *Recognizer) Recognize(ctx context.Context, videoPath string) ([]types.FrameLabel, error) {
	ctx, span := observe.StartSpan(ctx, "recognize")
	defer span.End()

	if m := r.cfg.Metrics; m != nil {
		m.ActiveRecognitions.Add(ctx, 1)
		defer m.ActiveRecognitions.Add(ctx, -1)
	}

	labels, err := r.recognize(ctx, videoPath)
	if err != nil {
		observe.FailSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("labels", len(labels)))
	return labels, nil
}

func (r *Recognizer) recognize(ctx context.Context, videoPath string) ([]types.FrameLabel, error) {
	dir, err := os.MkdirTemp(r.cfg.TempDir, "frames-*")
	if err != nil {
		return nil, fmt.Errorf("recognize: frame dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			observe.Logger(ctx).Warn("failed to remove frame dir", "dir", dir, "error", err)
		}
	}()

	var extracted []types.Frame
	err = r.call(ctx, r.cfg.ExtractorName, "frames", extractDuration, func() error {
		var err error
		extracted, err = r.cfg.Extractor.Extract(ctx, videoPath, dir)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recognize: extract: %w", err)
	}
	r.countFrames(ctx, "extracted", len(extracted))
	if len(extracted) == 0 {
		return []types.FrameLabel{}, nil
	}

	var present []bool
	err = r.call(ctx, r.cfg.DetectorName, "hands", handsDuration, func() error {
		var err error
		present, err = r.cfg.Detector.Detect(ctx, extracted)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recognize: detect hands: %w", err)
	}
	kept, err := hands.Filter(extracted, present)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	r.countFrames(ctx, "with_hands", len(kept))

	labels, err := r.classify(ctx, kept)
	if err != nil {
		return nil, fmt.Errorf("recognize: classify: %w", err)
	}
	r.countFrames(ctx, "classified", len(labels))

	observe.Logger(ctx).Debug("video recognised",
		"extracted", len(extracted),
		"with_hands", len(kept),
		"labels", len(labels),
	)
	return labels, nil
}

// classify labels kept in batches. Each batch writes its own slice of the
// result, so order is preserved without coordination.
func (r *Recognizer) classify(ctx context.Context, kept []types.Frame) ([]types.FrameLabel, error) {
	labels := make([]types.FrameLabel, len(kept))
	if len(kept) == 0 {
		return labels, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Concurrency)

	for start := 0; start < len(kept); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(kept))
		batch := kept[start:end]
		eg.Go(func() error {
			return r.call(egCtx, r.cfg.ClassifierName, "classifier", classifyDuration, func() error {
				got, err := r.cfg.Classifier.Classify(egCtx, batch)
				if err != nil {
					return err
				}
				if len(got) != len(batch) {
					return fmt.Errorf("frames %d-%d: got %d labels for %d frames", start, end-1, len(got), len(batch))
				}
				copy(labels[start:end], got)
				return nil
			})
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return labels, nil
}

// Instrument selectors for call.
func extractDuration(m *observe.Metrics) metric.Float64Histogram  { return m.ExtractDuration }
func handsDuration(m *observe.Metrics) metric.Float64Histogram    { return m.HandsDuration }
func classifyDuration(m *observe.Metrics) metric.Float64Histogram { return m.ClassifyDuration }

// call runs fn and records its duration and outcome for provider/kind.
func (r *Recognizer) call(ctx context.Context, provider, kind string, duration func(*observe.Metrics) metric.Float64Histogram, fn func() error) error {
	start := time.Now()
	err := fn()
	m := r.cfg.Metrics
	if m == nil {
		return err
	}
	duration(m).Record(ctx, time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		m.RecordProviderError(ctx, provider, kind)
	}
	m.RecordProviderRequest(ctx, provider, kind, status)
	return err
}

func (r *Recognizer) countFrames(ctx context.Context, stage string, n int) {
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordFrames(ctx, stage, n)
	}
}
