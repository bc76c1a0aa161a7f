package observe

import (
	"context"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/signspeak"

// StartSpan starts an internal span named name on the global tracer
// provider. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// FailSpan marks span as failed with err. A nil err leaves span untouched.
func FailSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// CorrelationID returns the trace id of the span in ctx, or "" without one.
// Clients see it in the X-Correlation-ID response header.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with the trace_id and span_id of the
// span in ctx attached.
func Logger(ctx context.Context) *slog.Logger {
	attrs := spanAttrs(ctx)
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.New(slog.Default().Handler().WithAttrs(attrs))
}

// NewTraceHandler wraps h so that records logged with a context, such as
// slog.InfoContext, carry the trace_id and span_id of the span in that
// context.
func NewTraceHandler(h slog.Handler) slog.Handler {
	return traceHandler{Handler: h}
}

type traceHandler struct {
	slog.Handler
	// traced is set once a trace_id was bound with WithAttrs, as [Logger]
	// does.
	traced bool
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.traced {
		return h.Handler.Handle(ctx, r)
	}
	if attrs := spanAttrs(ctx); len(attrs) > 0 && !hasAttr(r, "trace_id") {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	traced := h.traced || slices.ContainsFunc(attrs, func(a slog.Attr) bool { return a.Key == "trace_id" })
	return traceHandler{Handler: h.Handler.WithAttrs(attrs), traced: traced}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{Handler: h.Handler.WithGroup(name), traced: h.traced}
}

func spanAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return nil
	}
	return []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}

func hasAttr(r slog.Record, key string) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		found = a.Key == key
		return !found
	})
	return found
}
