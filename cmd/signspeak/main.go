// Command signspeak is the HTTP server that turns Filipino Sign Language
// fingerspelling videos into Tagalog sentences.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/signspeak/internal/app"
	"github.com/MrWong99/signspeak/internal/config"
	"github.com/MrWong99/signspeak/internal/observe"
	"github.com/MrWong99/signspeak/pkg/provider/classifier"
	clsexec "github.com/MrWong99/signspeak/pkg/provider/classifier/exec"
	"github.com/MrWong99/signspeak/pkg/provider/classifier/onnx"
	"github.com/MrWong99/signspeak/pkg/provider/frames"
	"github.com/MrWong99/signspeak/pkg/provider/frames/ffmpeg"
	"github.com/MrWong99/signspeak/pkg/provider/hands"
	"github.com/MrWong99/signspeak/pkg/provider/hands/all"
	handsexec "github.com/MrWong99/signspeak/pkg/provider/hands/exec"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "reload the log level when the config file changes or on SIGHUP")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "signspeak: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "signspeak: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(observe.NewTraceHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level}),
	)))

	slog.Info("signspeak starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		SampleRatio:    cfg.Telemetry.TraceSampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *watch {
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				level.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if len(d.RestartRequired) > 0 {
				slog.Warn("config changes take effect after restart", "sections", d.RestartRequired)
			}
		})
		if err != nil {
			slog.Error("failed to watch config", "err", err)
			return 1
		}
		go w.Run(ctx)
		go reloadOnHangup(ctx, w)
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithMetrics(observe.DefaultMetrics()),
		app.WithMetricsHandler(promhttp.Handler()),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// reloadOnHangup reloads the config each time the process receives SIGHUP.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			changed, err := w.Reload()
			if err != nil {
				slog.Warn("config reload on SIGHUP failed", "err", err)
				continue
			}
			if !changed {
				slog.Info("config unchanged")
			}
		}
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── Frames ────────────────────────────────────────────────────────────────

	reg.RegisterFrames("ffmpeg", func(entry config.ProviderEntry) (frames.Extractor, error) {
		return ffmpeg.New(entry.Command, ffmpeg.WithStride(cfg.Recognition.Stride))
	})

	// ── Hands ─────────────────────────────────────────────────────────────────

	reg.RegisterHands("all", func(config.ProviderEntry) (hands.Detector, error) {
		return all.New(), nil
	})

	reg.RegisterHands("exec", func(entry config.ProviderEntry) (hands.Detector, error) {
		var opts []handsexec.Option
		if entry.Model != "" {
			opts = append(opts, handsexec.WithModel(entry.Model))
		}
		return handsexec.New(entry.Command, opts...)
	})

	// ── Classifier ────────────────────────────────────────────────────────────

	reg.RegisterClassifier("exec", func(entry config.ProviderEntry) (classifier.Classifier, error) {
		var opts []clsexec.Option
		if entry.Model != "" {
			opts = append(opts, clsexec.WithModel(entry.Model))
		}
		return clsexec.New(entry.Command, opts...)
	})

	reg.RegisterClassifier("onnx", func(entry config.ProviderEntry) (classifier.Classifier, error) {
		opts, err := onnxOptions(entry)
		if err != nil {
			return nil, err
		}
		return onnx.New(entry.Model, opts...)
	})

	for _, kind := range []string{"frames", "hands", "classifier"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// onnxOptions maps the onnx provider's options block:
//
//	options:
//	  library_path: /usr/lib/libonnxruntime.so
//	  input_name: input_1
//	  output_name: dense_2
//	  input_size: 224
//	  layout: nhwc
//	  threads: 2
func onnxOptions(entry config.ProviderEntry) ([]onnx.Option, error) {
	var opts []onnx.Option

	lib, err := entry.StringOption("library_path", "")
	if err != nil {
		return nil, err
	}
	if lib != "" {
		opts = append(opts, onnx.WithLibraryPath(lib))
	}

	in, err := entry.StringOption("input_name", "input")
	if err != nil {
		return nil, err
	}
	out, err := entry.StringOption("output_name", "output")
	if err != nil {
		return nil, err
	}
	opts = append(opts, onnx.WithTensorNames(in, out))

	size, err := entry.IntOption("input_size", onnx.DefaultInputSize)
	if err != nil {
		return nil, err
	}
	opts = append(opts, onnx.WithInputSize(size))

	layout, err := entry.StringOption("layout", string(onnx.NHWC))
	if err != nil {
		return nil, err
	}
	opts = append(opts, onnx.WithLayout(onnx.Layout(layout)))

	threads, err := entry.IntOption("threads", 0)
	if err != nil {
		return nil, err
	}
	return append(opts, onnx.WithIntraOpThreads(threads)), nil
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// Without a classifier nothing is built: recognition is disabled.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	pc := cfg.Providers
	if !pc.Classifier.Configured() {
		return ps, nil
	}

	var err error
	if ps.Frames, err = reg.CreateFrames(pc.Frames); err != nil {
		return nil, fmt.Errorf("create frames provider %q: %w", pc.Frames.Name, err)
	}
	slog.Info("provider created", "kind", "frames", "name", pc.Frames.Name)

	if ps.Hands, err = reg.CreateHands(pc.Hands); err != nil {
		return nil, fmt.Errorf("create hands provider %q: %w", pc.Hands.Name, err)
	}
	slog.Info("provider created", "kind", "hands", "name", pc.Hands.Name)

	if ps.Classifier, err = reg.CreateClassifier(pc.Classifier); err != nil {
		return nil, fmt.Errorf("create classifier %q: %w", pc.Classifier.Name, err)
	}
	ps.ClassifierName = pc.Classifier.Name
	slog.Info("provider created", "kind", "classifier", "name", pc.Classifier.Name)

	if pc.ClassifierFallback.Configured() {
		if ps.ClassifierFallback, err = reg.CreateClassifier(pc.ClassifierFallback); err != nil {
			return nil, fmt.Errorf("create fallback classifier %q: %w", pc.ClassifierFallback.Name, err)
		}
		ps.ClassifierFallbackName = pc.ClassifierFallback.Name + "-fallback"
		slog.Info("provider created", "kind", "classifier_fallback", "name", pc.ClassifierFallback.Name)
	}
	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        SignSpeak startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Frames", cfg.Providers.Frames.Name, "")
	printProvider("Hands", cfg.Providers.Hands.Name, cfg.Providers.Hands.Model)
	printProvider("Classifier", cfg.Providers.Classifier.Name, cfg.Providers.Classifier.Model)
	printProvider("Fallback", cfg.Providers.ClassifierFallback.Name, cfg.Providers.ClassifierFallback.Model)
	lex := cfg.Lexicon.Path
	if lex == "" {
		lex = "(built-in tl)"
	}
	printRow("Lexicon", lex)
	printRow("Window / stride", fmt.Sprintf("%d / %d", cfg.Pipeline.WindowSize, cfg.Recognition.Stride))
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
