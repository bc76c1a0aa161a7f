// Package app wires all SignSpeak subsystems into a running application.
//
// The App struct owns the full lifecycle: New loads the lexicon, builds the
// reconstruction pipeline and the recognition stages and mounts them on an
// HTTP server; Run serves until the context ends; Shutdown drains in-flight
// requests and releases provider resources.
//
// For testing, inject providers through [Providers] and observability
// through functional options. When an option is not provided, New falls back
// to the process-wide defaults.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/signspeak/internal/config"
	"github.com/MrWong99/signspeak/internal/health"
	"github.com/MrWong99/signspeak/internal/lexicon"
	"github.com/MrWong99/signspeak/internal/observe"
	"github.com/MrWong99/signspeak/internal/recognize"
	"github.com/MrWong99/signspeak/internal/reconstruct"
	"github.com/MrWong99/signspeak/internal/reconstruct/spell"
	"github.com/MrWong99/signspeak/internal/resilience"
	"github.com/MrWong99/signspeak/internal/server"
	"github.com/MrWong99/signspeak/pkg/provider/classifier"
	"github.com/MrWong99/signspeak/pkg/provider/frames"
	"github.com/MrWong99/signspeak/pkg/provider/hands"
)

// Providers holds one interface value per recognition stage. A nil
// Classifier disables /predict/; the other stages are then ignored.
// Populated by main.go via the config registry.
type Providers struct {
	Frames frames.Extractor
	Hands  hands.Detector

	Classifier     classifier.Classifier
	ClassifierName string

	// ClassifierFallback, when set, labels a batch whenever the primary
	// fails it or the primary's circuit breaker is open.
	ClassifierFallback     classifier.Classifier
	ClassifierFallbackName string
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	lexicon        *lexicon.Lexicon

	// Subsystems, initialised in New.
	reconstructor *reconstruct.Reconstructor
	classifiers   *resilience.Classifiers
	recognizer    *recognize.Recognizer
	health        *health.Handler
	server        *server.Server
	httpServer    *http.Server

	ready chan struct{}
	addr  net.Addr

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLexicon injects a lexicon instead of loading one from config.
func WithLexicon(lx *lexicon.Lexicon) Option {
	return func(a *App) { a.lexicon = lx }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg and providers. Everything shared across
// requests (lexicon, spelling model, confusion tables) is built here, before
// the server accepts any traffic.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		ready:     make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Lexicon ───────────────────────────────────────────────────────
	if err := a.initLexicon(); err != nil {
		return nil, fmt.Errorf("app: init lexicon: %w", err)
	}

	// ── 2. Reconstruction pipeline ───────────────────────────────────────
	if err := a.initReconstructor(); err != nil {
		return nil, fmt.Errorf("app: init reconstructor: %w", err)
	}

	// ── 3. Recognition stages ────────────────────────────────────────────
	if err := a.initRecognizer(); err != nil {
		return nil, fmt.Errorf("app: init recognizer: %w", err)
	}

	// ── 4. HTTP server ───────────────────────────────────────────────────
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	observe.Logger(ctx).Info("application initialised",
		"words", a.lexicon.Len(),
		"recognition", a.recognizer != nil,
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initLexicon() error {
	if a.lexicon != nil {
		return nil
	}
	var err error
	if path := a.cfg.Lexicon.Path; path != "" {
		a.lexicon, err = lexicon.Load(path)
	} else {
		a.lexicon, err = lexicon.Default()
	}
	return err
}

func (a *App) initReconstructor() error {
	p := a.cfg.Pipeline
	var err error
	a.reconstructor, err = reconstruct.New(a.lexicon,
		reconstruct.WithWindowSize(p.WindowSize),
		reconstruct.WithCapitalization(p.Capitalization, p.Language),
		reconstruct.WithCorrectorOptions(
			reconstruct.WithSpellChecker(spell.New(a.lexicon)),
			reconstruct.WithMaxTokenLength(p.MaxTokenLength),
		),
		reconstruct.WithMetrics(a.metrics),
	)
	return err
}

// initRecognizer wraps the classifiers in a fallback group and builds the
// recognizer. Without a classifier it does nothing.
func (a *App) initRecognizer() error {
	ps := a.providers
	if ps.Classifier == nil {
		return nil
	}
	if ps.Frames == nil || ps.Hands == nil {
		return errors.New("frame extractor and hand detector are required with a classifier")
	}

	primary := nameOr(ps.ClassifierName, "primary")
	a.classifiers = resilience.NewClassifiers(resilience.BreakerConfig{},
		resilience.OnServe(func(ctx context.Context, backend string) {
			a.metrics.RecordBatch(ctx, backend)
			if backend != primary {
				observe.Logger(ctx).Info("batch labelled by fallback classifier", "backend", backend)
			}
		}),
	)
	a.classifiers.Add(primary, ps.Classifier)
	a.addCloser(ps.Classifier)
	if ps.ClassifierFallback != nil {
		a.classifiers.Add(nameOr(ps.ClassifierFallbackName, "fallback"), ps.ClassifierFallback)
		a.addCloser(ps.ClassifierFallback)
	}
	a.addCloser(ps.Frames)
	a.addCloser(ps.Hands)

	if err := os.MkdirAll(a.cfg.Upload.TempDir, 0o750); err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}

	rc := a.cfg.Recognition
	var err error
	a.recognizer, err = recognize.New(recognize.Config{
		Extractor:      ps.Frames,
		Detector:       ps.Hands,
		Classifier:     a.classifiers,
		ExtractorName:  a.cfg.Providers.Frames.Name,
		DetectorName:   a.cfg.Providers.Hands.Name,
		ClassifierName: nameOr(ps.ClassifierName, "classifier"),
		TempDir:        a.cfg.Upload.TempDir,
		BatchSize:      rc.BatchSize,
		Concurrency:    rc.Concurrency,
		Metrics:        a.metrics,
	})
	return err
}

func (a *App) initServer() error {
	checkers := []health.Checker{health.NonEmpty("lexicon", a.lexicon)}
	if a.classifiers != nil {
		checkers = append(checkers, health.Breakers("classifier", a.classifiers))
	}
	a.health = health.New(checkers...)

	cfg := server.Config{
		Reconstructor:  a.reconstructor,
		Health:         a.health,
		Metrics:        a.metrics,
		MetricsHandler: a.metricsHandler,
		UploadDir:      a.cfg.Upload.TempDir,
		MaxUploadBytes: a.cfg.Upload.MaxBytes,
	}
	if a.recognizer != nil {
		cfg.Recognizer = a.recognizer
	}
	var err error
	if a.server, err = server.New(cfg); err != nil {
		return err
	}

	a.httpServer = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// addCloser registers v for Shutdown if it holds resources.
func (a *App) addCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
}

// Handler returns the HTTP handler, for embedding or tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Reconstructor returns the shared reconstruction pipeline.
func (a *App) Reconstructor() *reconstruct.Reconstructor {
	return a.reconstructor
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on the configured address and serves until ctx is cancelled
// or the server fails. It returns nil on cancellation; call Shutdown
// afterwards to drain connections.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	if t := a.cfg.Server.TLS; t != nil {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("app: load tls key pair: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	}
	a.addr = ln.Addr()
	close(a.ready)
	slog.Info("listening", "addr", a.addr.String(), "tls", a.cfg.Server.TLS != nil)

	errCh := make(chan error, 1)
	go func() { errCh <- a.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Ready is closed once Run is accepting connections.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the listening address. Only valid after Ready is closed.
func (a *App) Addr() net.Addr {
	<-a.ready
	return a.addr
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown fails the readiness probe, waits for in-flight requests and then
// runs the closers in order. It respects the context deadline: if ctx expires
// first, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		a.health.Drain()

		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func nameOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
