package observe

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const incomingTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

// routedServer mounts a small mux behind Middleware with private metric
// and trace providers.
func routedServer(t *testing.T, opts ...MiddlewareOption) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)
	tp, exp := newTestTracerProvider(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /reconstruct", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("bad") {
			http.Error(w, "invalid label", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"sentence":"Kumusta."}`))
	})
	mux.HandleFunc("POST /predict/{$}", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "classifier down", http.StatusBadGateway)
	})

	opts = append([]MiddlewareOption{WithTracerProvider(tp)}, opts...)
	return Middleware(m, opts...)(mux), reader, exp
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func durationPoint(t *testing.T, reader *sdkmetric.ManualReader) metricdata.HistogramDataPoint[float64] {
	t.Helper()
	met := findMetric(collect(t, reader), "signspeak.http.request.duration")
	if met == nil {
		t.Fatal("signspeak.http.request.duration not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("unexpected data %T", met.Data)
	}
	return hist.DataPoints[0]
}

func TestMiddleware_CorrelationIDMatchesSpan(t *testing.T) {
	t.Parallel()

	var seen string
	m, _ := newTestMetrics(t)
	tp, exp := newTestTracerProvider(t)
	h := Middleware(m, WithTracerProvider(tp))(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	rec := serve(h, http.MethodGet, "/")
	if len(seen) != 32 {
		t.Fatalf("handler correlation id = %q, want 32 hex digits", seen)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != seen {
		t.Errorf("X-Correlation-ID = %q, want %q", got, seen)
	}
	if got := exp.GetSpans()[0].SpanContext.TraceID().String(); got != seen {
		t.Errorf("span trace id = %q, want %q", got, seen)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	t.Parallel()

	h, _, exp := routedServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-"+incomingTraceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != incomingTraceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, incomingTraceID)
	}
	if !strings.Contains(rec.Header().Get("traceparent"), incomingTraceID) {
		t.Errorf("traceparent = %q, want the incoming trace", rec.Header().Get("traceparent"))
	}
	span := exp.GetSpans()[0]
	if got := span.Parent.SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("parent span id = %q", got)
	}
}

func TestMiddleware_SpanNamedByRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method, target string
		wantName       string
		wantStatus     int64
	}{
		{http.MethodPost, "/reconstruct", "POST /reconstruct", 200},
		{http.MethodPost, "/predict/", "POST /predict/{$}", 502},
		{http.MethodGet, "/nope", "HTTP GET", 404},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			t.Parallel()
			h, _, exp := routedServer(t)
			serve(h, tt.method, tt.target)

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Name != tt.wantName {
				t.Errorf("span name = %q, want %q", spans[0].Name, tt.wantName)
			}
			var status int64
			for _, a := range spans[0].Attributes {
				if a.Key == "http.response.status_code" {
					status = a.Value.AsInt64()
				}
			}
			if status != tt.wantStatus {
				t.Errorf("http.response.status_code = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}

func TestMiddleware_DurationAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, method, target string
		want                 map[string]string
	}{
		{
			name: "matched", method: http.MethodPost, target: "/reconstruct?bad=1",
			want: map[string]string{"method": "POST", "route": "POST /reconstruct", "status": "400"},
		},
		{
			name: "wildcard anchored", method: http.MethodPost, target: "/predict/",
			want: map[string]string{"route": "POST /predict/{$}", "status": "502"},
		},
		{
			name: "unmatched", method: http.MethodGet, target: "/random/4711",
			want: map[string]string{"route": unmatchedRoute, "status": "404"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, reader, _ := routedServer(t)
			serve(h, tt.method, tt.target)

			dp := durationPoint(t, reader)
			if dp.Count != 1 {
				t.Errorf("count = %d, want 1", dp.Count)
			}
			for k, want := range tt.want {
				v, ok := dp.Attributes.Value(attribute.Key(k))
				if !ok || v.AsString() != want {
					t.Errorf("%s = %q (present %v), want %q", k, v.AsString(), ok, want)
				}
			}
			if _, ok := dp.Attributes.Value("path"); ok {
				t.Error("raw path must not be a metric attribute")
			}
		})
	}
}

func TestResponseRecorder(t *testing.T) {
	t.Parallel()

	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder()}
	if rec.code() != http.StatusOK {
		t.Errorf("code() before writing = %d", rec.code())
	}
	_, _ = rec.Write([]byte("Kumusta."))
	rec.WriteHeader(http.StatusTeapot)
	if rec.code() != http.StatusOK {
		t.Errorf("code() = %d, want the implicit 200 of the first write", rec.code())
	}
	if rec.written != 8 {
		t.Errorf("written = %d, want 8", rec.written)
	}
	if rec.Unwrap() != rec.ResponseWriter {
		t.Error("Unwrap() does not return the wrapped writer")
	}
}

// The request log goes through the default logger, so these tests do not
// run in parallel.

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestMiddleware_QuietPathsLogAtDebug(t *testing.T) {
	buf := captureLog(t)
	h, _, _ := routedServer(t, WithQuietPaths("/healthz"))

	serve(h, http.MethodGet, "/healthz")
	if buf.Len() != 0 {
		t.Errorf("quiet path logged at info: %s", buf)
	}

	serve(h, http.MethodPost, "/reconstruct")
	out := buf.String()
	for _, want := range []string{"level=INFO", "path=/reconstruct", `route="POST /reconstruct"`, "status=200", "bytes=23"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestMiddleware_ServerErrorsLogAtWarn(t *testing.T) {
	buf := captureLog(t)
	h, _, _ := routedServer(t, WithQuietPaths("/predict/"))

	serve(h, http.MethodPost, "/predict/")
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "status=502") {
		t.Errorf("5xx should log at warn even on a quiet path: %s", buf)
	}
}
