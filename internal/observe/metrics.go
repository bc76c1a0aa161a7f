// Package observe is the observability layer of signspeak: OpenTelemetry
// metrics and traces, trace-aware logging, and the HTTP middleware that
// ties a request's span, log lines and latency together.
//
// [InitProvider] installs the global meter and tracer providers with a
// Prometheus bridge. Production code records through [DefaultMetrics];
// tests build their own instruments with [NewMetrics] over a private
// provider.
package observe

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/signspeak"

// Metrics holds every instrument signspeak records to. Instruments are safe
// for concurrent use.
type Metrics struct {
	// Recognition, per video or per batch.
	ExtractDuration  metric.Float64Histogram
	HandsDuration    metric.Float64Histogram
	ClassifyDuration metric.Float64Histogram

	// FramesProcessed counts frames by "stage": extracted, with_hands,
	// classified.
	FramesProcessed metric.Int64Counter

	// ClassifierBatches counts batches by the "backend" that labelled them.
	ClassifierBatches metric.Int64Counter

	// ActiveRecognitions is the number of videos in flight.
	ActiveRecognitions metric.Int64UpDownCounter

	// Reconstruction.
	ReconstructDuration metric.Float64Histogram
	LettersEmitted      metric.Int64Counter

	// Corrections counts corrected tokens by "method".
	Corrections metric.Int64Counter

	// Providers, by "provider", "kind" and (requests only) "status".
	ProviderRequests metric.Int64Counter
	ProviderErrors   metric.Int64Counter

	// HTTP.
	HTTPRequestDuration metric.Float64Histogram
	UploadBytes         metric.Int64Histogram
}

// latencyBuckets run from a millisecond (a reconstruction) to half a minute
// (ffmpeg on a long clip).
var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// uploadBuckets run from 64 KiB to 256 MiB in powers of four.
var uploadBuckets = []float64{1 << 16, 1 << 18, 1 << 20, 1 << 22, 1 << 24, 1 << 26, 1 << 28}

// instruments collects the first error of a run of instrument creations.
type instruments struct {
	m    metric.Meter
	errs []error
}

func (in *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := in.m.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	in.errs = append(in.errs, err)
	return h
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.m.Int64Counter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return c
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{m: mp.Meter(meterName)}
	met := &Metrics{
		ExtractDuration:     in.seconds("signspeak.extract.duration", "Latency of frame extraction per video."),
		HandsDuration:       in.seconds("signspeak.hands.duration", "Latency of hand detection per video."),
		ClassifyDuration:    in.seconds("signspeak.classify.duration", "Latency of letter classification per batch."),
		ReconstructDuration: in.seconds("signspeak.reconstruct.duration", "Latency of sentence reconstruction."),

		FramesProcessed:   in.counter("signspeak.frames", "Frames by recognition stage."),
		ClassifierBatches: in.counter("signspeak.classifier.batches", "Classified batches by serving backend."),
		LettersEmitted:    in.counter("signspeak.letters", "Letters emitted by the temporal vote."),
		Corrections:       in.counter("signspeak.corrections", "Corrected tokens by correction method."),
		ProviderRequests:  in.counter("signspeak.provider.requests", "Provider calls by provider, kind and status."),
		ProviderErrors:    in.counter("signspeak.provider.errors", "Failed provider calls by provider and kind."),
	}

	var err error
	met.ActiveRecognitions, err = in.m.Int64UpDownCounter("signspeak.active_recognitions",
		metric.WithDescription("Videos currently being recognised."))
	in.errs = append(in.errs, err)

	met.HTTPRequestDuration, err = in.m.Float64Histogram("signspeak.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"))
	in.errs = append(in.errs, err)

	met.UploadBytes, err = in.m.Int64Histogram("signspeak.upload.size",
		metric.WithDescription("Size of accepted video uploads."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(uploadBuckets...))
	in.errs = append(in.errs, err)

	if err := errors.Join(in.errs...); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics], created on first use
// from [otel.GetMeterProvider]. Call [InitProvider] first so the instruments
// land on the exporting provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.GetMeterProvider()); err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrames adds n frames to stage.
func (m *Metrics) RecordFrames(ctx context.Context, stage string, n int) {
	m.FramesProcessed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordCorrection counts one token corrected by method.
func (m *Metrics) RecordCorrection(ctx context.Context, method string) {
	m.Corrections.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

// RecordBatch counts one batch labelled by backend.
func (m *Metrics) RecordBatch(ctx context.Context, backend string) {
	m.ClassifierBatches.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordUpload records the size of an accepted upload.
func (m *Metrics) RecordUpload(ctx context.Context, n int64) {
	m.UploadBytes.Record(ctx, n)
}

// RecordProviderRequest counts one provider call with its outcome.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordProviderError counts one failed provider call.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}
