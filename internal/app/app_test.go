package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/signspeak/internal/app"
	"github.com/MrWong99/signspeak/internal/config"
	"github.com/MrWong99/signspeak/internal/observe"
	classifiermock "github.com/MrWong99/signspeak/pkg/provider/classifier/mock"
	framesmock "github.com/MrWong99/signspeak/pkg/provider/frames/mock"
	handsmock "github.com/MrWong99/signspeak/pkg/provider/hands/mock"
	"github.com/MrWong99/signspeak/pkg/types"
)

// testConfig returns a defaulted config listening on a random local port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Upload.TempDir = filepath.Join(t.TempDir(), "uploads")
	return cfg
}

// closingClassifier counts Close calls.
type closingClassifier struct {
	*classifiermock.Classifier
	closed atomic.Int32
}

func (c *closingClassifier) Close() error {
	c.closed.Add(1)
	return nil
}

// kumusta labels 21 frames so that the 3-frame vote spells "KUMUSTA".
func kumusta(f types.Frame) types.FrameLabel {
	return types.Label(rune("KUMUSTA"[f.Index/3%7]))
}

// testProviders returns mock providers producing "Kumusta" for a 21-frame clip.
func testProviders() (*app.Providers, *closingClassifier) {
	cls := &closingClassifier{Classifier: &classifiermock.Classifier{Label: kumusta}}
	return &app.Providers{
		Frames:         &framesmock.Extractor{Count: 21},
		Hands:          &handsmock.Detector{},
		Classifier:     cls,
		ClassifierName: "mock",
	}, cls
}

func uploadRequest(t *testing.T) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("video", "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("not really a video"))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/predict/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	providers, _ := testProviders()

	application, err := app.New(context.Background(), cfg, providers)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application.Reconstructor() == nil {
		t.Fatal("Reconstructor() returned nil")
	}
	if info, err := os.Stat(cfg.Upload.TempDir); err != nil || !info.IsDir() {
		t.Errorf("upload dir not created: %v", err)
	}
}

func TestApp_PredictEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	providers, _ := testProviders()
	application, err := app.New(context.Background(), cfg, providers)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, uploadRequest(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		RawPrediction []string `json:"raw_prediction"`
		Sentence      string   `json:"tagalog_sentence"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Sentence != "Kumusta" {
		t.Errorf("tagalog_sentence = %q, want %q", body.Sentence, "Kumusta")
	}
	if strings.Join(body.RawPrediction, "") != "KUMUSTA" {
		t.Errorf("raw_prediction = %v", body.RawPrediction)
	}

	entries, err := os.ReadDir(cfg.Upload.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir should be empty after the request, has %d entries", len(entries))
	}
}

func TestApp_FallbackClassifier(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	providers, _ := testProviders()
	broken := &classifiermock.Classifier{Err: errors.New("model crashed")}
	backup := &classifiermock.Classifier{Label: kumusta}
	providers.Classifier = broken
	providers.ClassifierFallback = backup
	providers.ClassifierFallbackName = "backup"

	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	application, err := app.New(context.Background(), cfg, providers, app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, uploadRequest(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if broken.CallCount() == 0 || backup.CallCount() == 0 {
		t.Errorf("primary calls = %d, backup calls = %d; want both used", broken.CallCount(), backup.CallCount())
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	served := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			sum, ok := met.Data.(metricdata.Sum[int64])
			if met.Name != "signspeak.classifier.batches" || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("backend")
				served[v.AsString()] += dp.Value
			}
		}
	}
	if served["backup"] == 0 || served["mock"] != 0 {
		t.Errorf("batches by backend = %v, want all from backup", served)
	}
}

func TestApp_WithoutClassifier(t *testing.T) {
	t.Parallel()

	application, err := app.New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, uploadRequest(t))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/predict/ status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reconstruct", strings.NewReader(`{"labels":["A","A","A"]}`))
	application.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/reconstruct status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Lexicon.Path = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := app.New(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for missing lexicon file")
	}

	providers, _ := testProviders()
	providers.Frames = nil
	if _, err := app.New(context.Background(), testConfig(t), providers); err == nil {
		t.Error("expected error for classifier without frame extractor")
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	providers, cls := testProviders()
	application, err := app.New(context.Background(), cfg, providers)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	select {
	case <-application.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not start listening within 5s")
	}

	resp, err := http.Get("http://" + application.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "server started") {
		t.Errorf("GET / = %d %s", resp.StatusCode, data)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
	if n := cls.closed.Load(); n != 1 {
		t.Errorf("classifier Close calls = %d, want 1", n)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz after shutdown = %d, want 503", rec.Code)
	}
}
